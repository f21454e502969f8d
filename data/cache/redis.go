package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var ErrCacheMiss = errors.New("cache miss")

const priceKeyPrefix = "price:"

type priceRecord struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	PageToken  string          `json:"pageToken,omitempty"`
	ObservedAt int64           `json:"observedAt"`
	TTLSeconds int64           `json:"ttlSeconds"`
}

// RedisCache stores last known prices. Redis expiry is set to the record's TTL
// but readers must still compare the record age themselves.
type RedisCache struct {
	redis *redis.Client
}

func NewRedisCache(redisClient *redis.Client) *RedisCache {
	return &RedisCache{redis: redisClient}
}

func priceKey(symbol string) string {
	return priceKeyPrefix + symbol
}

// PutBatch writes prices in a single pipeline.
func (r *RedisCache) PutBatch(ctx context.Context, prices []model.CachedPrice) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start PutBatch", slog.String("rqID", rqID), slog.Int("size", len(prices)))

	pipe := r.redis.Pipeline()
	for _, price := range prices {
		priceJson, err := json.Marshal(priceRecord{
			Name:       price.Name,
			Price:      price.Price,
			PageToken:  price.PageToken,
			ObservedAt: price.ObservedAt,
			TTLSeconds: price.TTLSeconds,
		})
		if err != nil {
			slog.Error(
				"can't marshall price in PutBatch",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.Any("price", price),
			)
			return fmt.Errorf("can't marshall price %s: %w", price.Symbol, err)
		}

		pipe.Set(ctx, priceKey(price.Symbol), priceJson, time.Duration(price.TTLSeconds)*time.Second)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("PutBatch completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) Get(ctx context.Context, symbol string) (model.CachedPrice, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("Get price start", slog.String("rqID", rqID), slog.String("symbol", symbol))

	res, err := r.redis.Get(ctx, priceKey(symbol)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.CachedPrice{}, ErrCacheMiss
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", priceKey(symbol)))
		return model.CachedPrice{}, err
	}

	record := priceRecord{}
	err = json.Unmarshal([]byte(res), &record)
	if err != nil {
		slog.Error(
			"can't unmarshall price in Get",
			slog.String("rqID", rqID),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.CachedPrice{}, fmt.Errorf("can't unmarshall price %s: %w", symbol, err)
	}

	slog.Debug("Get price finished", slog.String("rqID", rqID))

	return model.CachedPrice{
		Symbol:     symbol,
		Name:       record.Name,
		Price:      record.Price,
		PageToken:  record.PageToken,
		ObservedAt: record.ObservedAt,
		TTLSeconds: record.TTLSeconds,
	}, nil
}

func (r *RedisCache) Delete(ctx context.Context, symbol string) error {
	err := r.redis.Del(ctx, priceKey(symbol)).Err()
	if err != nil {
		slog.Error(
			"failed on redis.Del",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("err", err.Error()),
			slog.String("key", priceKey(symbol)),
		)
	}
	return err
}
