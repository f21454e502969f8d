package priceCache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/invest_ledger/config"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/jonboulle/clockwork"
)

var ErrCacheWrite = errors.New("cache write failure")

const (
	DefaultTTL              = 5 * time.Minute
	DefaultRefreshThreshold = 4 * time.Minute
	DefaultBatchSize        = 25
)

type Store interface {
	Get(ctx context.Context, symbol string) (model.CachedPrice, error)
	PutBatch(ctx context.Context, prices []model.CachedPrice) error
	Delete(ctx context.Context, symbol string) error
}

// PriceCache is advisory: it never fetches on its own and its failures never
// propagate as anything but logged, non-fatal errors.
type PriceCache struct {
	store            Store
	clock            clockwork.Clock
	ttl              time.Duration
	refreshThreshold time.Duration
	batchSize        int
}

func New(cfg *config.Config, store Store, clock clockwork.Clock) *PriceCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &PriceCache{
		store:            store,
		clock:            clock,
		ttl:              cfg.Cache.PriceTTL,
		refreshThreshold: cfg.Cache.PriceRefreshThreshold,
		batchSize:        cfg.Cache.BatchSize,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.refreshThreshold <= 0 || c.refreshThreshold >= c.ttl {
		c.refreshThreshold = DefaultRefreshThreshold
	}
	if c.batchSize <= 0 || c.batchSize > DefaultBatchSize {
		c.batchSize = DefaultBatchSize
	}

	return c
}

// Get returns false when symbol is absent, unreadable or older than its TTL.
func (c *PriceCache) Get(ctx context.Context, symbol string) (model.CachedPrice, bool) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PriceCache.Get"

	price, err := c.store.Get(ctx, symbol)
	if err != nil {
		slog.Debug("price not in cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return model.CachedPrice{}, false
	}

	age := c.clock.Now().Unix() - price.ObservedAt
	if age > price.TTLSeconds {
		slog.Debug("cached price expired", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.Int64("age", age))
		return model.CachedPrice{}, false
	}

	price.NeedsRefresh = age > int64(c.refreshThreshold/time.Second)

	return price, true
}

func (c *PriceCache) Set(ctx context.Context, quote model.Quote) error {
	return c.put(ctx, []model.Quote{quote})
}

// SetMany writes quotes in batches of at most batchSize. A failed batch is skipped
// and the rest are still written; the joined batch errors are returned.
func (c *PriceCache) SetMany(ctx context.Context, quotes []model.Quote) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PriceCache.SetMany"

	var errs []error
	for start := 0; start < len(quotes); start += c.batchSize {
		end := min(start+c.batchSize, len(quotes))
		if err := c.put(ctx, quotes[start:end]); err != nil {
			slog.Warn("cache batch skipped", slog.String("rqID", rqID), slog.String("op", op), slog.Int("batchStart", start), slog.String("err", err.Error()))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (c *PriceCache) Delete(ctx context.Context, symbol string) error {
	if err := c.store.Delete(ctx, symbol); err != nil {
		slog.Warn(
			"can't invalidate cached price",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("symbol", symbol),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%w: delete %s: %w", ErrCacheWrite, symbol, err)
	}
	return nil
}

func (c *PriceCache) put(ctx context.Context, quotes []model.Quote) error {
	observedAt := c.clock.Now().Unix()
	ttlSeconds := int64(c.ttl / time.Second)

	prices := make([]model.CachedPrice, 0, len(quotes))
	for _, q := range quotes {
		prices = append(prices, model.CachedPrice{
			Symbol:     q.Symbol,
			Name:       q.Name,
			Price:      q.Price,
			PageToken:  q.PageToken,
			ObservedAt: observedAt,
			TTLSeconds: ttlSeconds,
		})
	}

	if err := c.store.PutBatch(ctx, prices); err != nil {
		slog.Warn(
			"can't write prices to cache",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.Int("size", len(prices)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}

	return nil
}
