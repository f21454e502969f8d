package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/invest_ledger/internal/externalApi"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/service"
	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/shopspring/decimal"
)

// resolveLivePrice serves a fresh cache hit as is. Otherwise the price is fetched and
// written back; a cached entry that only needs refresh is still served if the fetch fails.
func (s *LedgerService) resolveLivePrice(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.resolveLivePrice"

	cached, ok := s.cache.Get(ctx, symbol)
	if ok && !cached.NeedsRefresh {
		return cached.Quote(), nil
	}

	quote, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		if ok && !errors.Is(err, service.ErrNotFound) {
			slog.Warn(
				"can't refresh price, using cached one",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("symbol", symbol),
				slog.String("err", err.Error()),
			)
			return cached.Quote(), nil
		}
		return model.Quote{}, err
	}

	if err = s.cache.Set(ctx, quote); err != nil {
		slog.Warn("can't cache price", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}

	return quote, nil
}

func (s *LedgerService) fetchQuote(ctx context.Context, symbol string) (model.Quote, error) {
	quote, err := s.marketData.FetchPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.Quote{}, fmt.Errorf("%w: symbol %s: %w", service.ErrNotFound, symbol, err)
		}
		return model.Quote{}, fmt.Errorf("fetch price %s: %w", symbol, err)
	}

	if quote.Symbol == "" {
		quote.Symbol = symbol
	}

	return quote, nil
}

// GetPortfolioValuation prices every holding at its live price and adds the cash balance.
func (s *LedgerService) GetPortfolioValuation(ctx context.Context, portfolioID int64) (valuation model.PortfolioValuation, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetPortfolioValuation"

	slog.Debug("GetPortfolioValuation start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("GetPortfolioValuation finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("totalValue", valuation.TotalValue.String()))
	}()

	portfolio, err := s.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return model.PortfolioValuation{}, repoError(fmt.Sprintf("portfolio %d", portfolioID), err)
	}

	holdings, err := s.repo.GetHoldings(ctx, portfolioID)
	if err != nil {
		return model.PortfolioValuation{}, repoError("get holdings", err)
	}

	valuation = model.PortfolioValuation{
		PortfolioID:   portfolioID,
		Balance:       portfolio.Balance,
		HoldingsValue: decimal.Zero,
		Holdings:      make([]model.HoldingValuation, 0, len(holdings)),
	}

	fetched := make([]model.Quote, 0, len(holdings))
	for _, holding := range holdings {
		cached, ok := s.cache.Get(ctx, holding.Symbol)

		quote := cached.Quote()
		if !ok || cached.NeedsRefresh {
			fresh, err := s.fetchQuote(ctx, holding.Symbol)
			switch {
			case err == nil:
				quote = fresh
				fetched = append(fetched, fresh)
			case ok:
				slog.Warn("can't refresh price, using cached one", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", holding.Symbol), slog.String("err", err.Error()))
			default:
				return model.PortfolioValuation{}, err
			}
		}

		total := quote.Price.Mul(decimal.NewFromInt(int64(holding.Quantity)))
		valuation.HoldingsValue = valuation.HoldingsValue.Add(total)
		valuation.Holdings = append(valuation.Holdings, model.HoldingValuation{
			Holding:    holding,
			Name:       quote.Name,
			Price:      quote.Price,
			TotalPrice: total,
		})
	}

	if err = s.cache.SetMany(ctx, fetched); err != nil {
		slog.Warn("can't cache prices", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	valuation.TotalValue = valuation.Balance.Add(valuation.HoldingsValue)

	return valuation, nil
}

// RefreshPrices re-fetches every traded symbol whose cached price is missing or due for refresh.
func (s *LedgerService) RefreshPrices(ctx context.Context) error {
	ctx = utils.EnsureRqID(ctx)
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RefreshPrices"

	symbols, err := s.repo.GetTradedSymbols(ctx)
	if err != nil {
		return repoError("get traded symbols", err)
	}

	var (
		fresh []model.Quote
		errs  []error
	)
	for _, symbol := range symbols {
		if cached, ok := s.cache.Get(ctx, symbol); ok && !cached.NeedsRefresh {
			continue
		}

		quote, err := s.fetchQuote(ctx, symbol)
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, externalApi.ErrCircuitOpen) || ctx.Err() != nil {
				break
			}
			continue
		}
		fresh = append(fresh, quote)
	}

	if err = s.cache.SetMany(ctx, fresh); err != nil {
		errs = append(errs, err)
	}

	slog.Info(
		"prices refreshed",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int("traded", len(symbols)),
		slog.Int("refreshed", len(fresh)),
		slog.Int("failed", len(errs)),
	)

	return errors.Join(errs...)
}

func (s *LedgerService) InvalidatePrice(ctx context.Context, symbol string) error {
	return s.cache.Delete(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}
