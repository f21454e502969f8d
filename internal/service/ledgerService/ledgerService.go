package ledgerService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/invest_ledger/config"
	"github.com/KotFed0t/invest_ledger/data/repository"
	"github.com/KotFed0t/invest_ledger/internal/externalApi"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/service"
	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -package=ledgerService_test -destination=mock_market_data_test.go . MarketData
type MarketData interface {
	FetchPrice(ctx context.Context, symbol string) (model.Quote, error)
	ExecutePurchase(ctx context.Context, symbol string, req model.PurchaseRequest) (model.PurchaseConfirmation, error)
}

type PriceCache interface {
	Get(ctx context.Context, symbol string) (model.CachedPrice, bool)
	Set(ctx context.Context, quote model.Quote) error
	SetMany(ctx context.Context, quotes []model.Quote) error
	Delete(ctx context.Context, symbol string) error
}

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
	CreatePortfolio(ctx context.Context, userID int64, name string, balance decimal.Decimal) (portfolioID int64, err error)
	GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error)
	GetPortfolioForUpdate(ctx context.Context, portfolioID int64) (model.Portfolio, error)
	UpdatePortfolioBalance(ctx context.Context, portfolioID int64, delta decimal.Decimal) error
	UpsertStock(ctx context.Context, symbol, name string) (stockID int64, err error)
	GetStockBySymbol(ctx context.Context, symbol string) (model.Stock, error)
	GetTradedSymbols(ctx context.Context) ([]string, error)
	InsertTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	GetHolding(ctx context.Context, portfolioID, stockID int64) (quantity int, err error)
	GetHoldings(ctx context.Context, portfolioID int64) ([]model.Holding, error)
	ListTransactions(ctx context.Context, portfolioID int64, limit, offset int) (transactions []model.Transaction, hasNextPage bool, err error)
}

type LedgerService struct {
	repo       Repository
	cache      PriceCache
	marketData MarketData
	clock      clockwork.Clock
	tolerance  decimal.Decimal
	locks      *portfolioLocks
}

func New(cfg *config.Config, repo Repository, cache PriceCache, marketData MarketData, clock clockwork.Clock) *LedgerService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &LedgerService{
		repo:       repo,
		cache:      cache,
		marketData: marketData,
		clock:      clock,
		tolerance:  cfg.Ledger.PriceTolerance,
		locks:      newPortfolioLocks(),
	}
}

func (s *LedgerService) CreatePortfolio(ctx context.Context, userID int64, name string, balance decimal.Decimal) (portfolioID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.CreatePortfolio"

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("name", name))
	defer func() {
		slog.Debug("CreatePortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	}()

	if balance.IsNegative() {
		return 0, fmt.Errorf("%w: negative balance %s", service.ErrInvalidTrade, balance)
	}

	portfolioID, err = s.repo.CreatePortfolio(ctx, userID, name, balance)
	if err != nil {
		slog.Error("got error from repo.CreatePortfolio", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, repoError("create portfolio", err)
	}

	return portfolioID, nil
}

// BuyStock settles a purchase: the requested price must be within tolerance of the live
// price, the upstream purchase must be confirmed, and only then is the trade recorded.
func (s *LedgerService) BuyStock(ctx context.Context, req model.TradeRequest) (trade model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.BuyStock"

	slog.Debug("BuyStock start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("request", req))
	defer func() {
		if err != nil {
			slog.Warn("BuyStock rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("BuyStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", trade.TransactionID))
		}
	}()

	req, err = normalizeTrade(req)
	if err != nil {
		return model.Transaction{}, err
	}

	unlock := s.locks.lock(req.PortfolioID)
	defer unlock()

	idempotencyKey := uuid.NewString()
	var (
		confirmation model.PurchaseConfirmation
		// the provider may confirm without an id
		purchased bool
	)

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		portfolio, err := s.repo.GetPortfolioForUpdate(ctx, req.PortfolioID)
		if err != nil {
			return repoError(fmt.Sprintf("portfolio %d", req.PortfolioID), err)
		}

		live, err := s.resolveLivePrice(ctx, req.Symbol)
		if err != nil {
			return err
		}

		if err = s.checkTolerance(req.Price, live.Price); err != nil {
			return err
		}

		total := req.TotalAmount()
		if portfolio.Balance.LessThan(total) {
			return fmt.Errorf("%w: balance %s, required %s", service.ErrInsufficientFunds, portfolio.Balance, total)
		}

		confirmation, err = s.marketData.ExecutePurchase(ctx, req.Symbol, model.PurchaseRequest{
			PortfolioID:    req.PortfolioID,
			Price:          req.Price,
			Quantity:       req.Quantity,
			IdempotencyKey: idempotencyKey,
		})
		if err != nil {
			if errors.Is(err, externalApi.ErrPriceMismatch) {
				return fmt.Errorf("%w: %w", service.ErrPriceValidationFailed, err)
			}
			return fmt.Errorf("execute purchase: %w", err)
		}
		purchased = true

		stockID, err := s.repo.UpsertStock(ctx, req.Symbol, live.Name)
		if err != nil {
			return repoError("upsert stock", err)
		}

		trade, err = s.repo.InsertTransaction(ctx, model.Transaction{
			PortfolioID:    req.PortfolioID,
			StockID:        stockID,
			StockSymbol:    req.Symbol,
			Type:           model.TradeTypeBuy,
			Quantity:       req.Quantity,
			Price:          req.Price,
			TotalAmount:    total,
			Status:         model.TransactionStatusCompleted,
			IdempotencyKey: idempotencyKey,
			Date:           s.clock.Now().UTC(),
		})
		if err != nil {
			return repoError("insert transaction", err)
		}

		if err = s.repo.UpdatePortfolioBalance(ctx, req.PortfolioID, total.Neg()); err != nil {
			return repoError("debit balance", err)
		}

		return nil
	})
	if err != nil {
		if purchased {
			slog.Error(
				"purchase confirmed upstream but not recorded",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("confirmationID", confirmation.ConfirmationID),
				slog.String("idempotencyKey", idempotencyKey),
				slog.Int64("portfolioID", req.PortfolioID),
				slog.String("symbol", req.Symbol),
				slog.String("err", err.Error()),
			)
			if !errors.Is(err, service.ErrPersistence) {
				err = fmt.Errorf("%w: %w", service.ErrPersistence, err)
			}
		}
		return model.Transaction{}, err
	}

	return trade, nil
}

// SellStock records a sale of an owned position. No upstream call is made.
func (s *LedgerService) SellStock(ctx context.Context, req model.TradeRequest) (trade model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.SellStock"

	slog.Debug("SellStock start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("request", req))
	defer func() {
		if err != nil {
			slog.Warn("SellStock rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SellStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", trade.TransactionID))
		}
	}()

	req, err = normalizeTrade(req)
	if err != nil {
		return model.Transaction{}, err
	}

	unlock := s.locks.lock(req.PortfolioID)
	defer unlock()

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetPortfolioForUpdate(ctx, req.PortfolioID); err != nil {
			return repoError(fmt.Sprintf("portfolio %d", req.PortfolioID), err)
		}

		stock, err := s.repo.GetStockBySymbol(ctx, req.Symbol)
		if err != nil {
			return repoError("stock "+req.Symbol, err)
		}

		live, err := s.resolveLivePrice(ctx, req.Symbol)
		if err != nil {
			return err
		}

		if err = s.checkTolerance(req.Price, live.Price); err != nil {
			return err
		}

		holding, err := s.repo.GetHolding(ctx, req.PortfolioID, stock.StockID)
		if err != nil {
			return repoError("get holding", err)
		}
		if req.Quantity > holding {
			return fmt.Errorf("%w: holding %d, requested %d", service.ErrInsufficientHoldings, holding, req.Quantity)
		}

		total := req.TotalAmount()
		trade, err = s.repo.InsertTransaction(ctx, model.Transaction{
			PortfolioID: req.PortfolioID,
			StockID:     stock.StockID,
			StockSymbol: stock.Symbol,
			Type:        model.TradeTypeSell,
			Quantity:    req.Quantity,
			Price:       req.Price,
			TotalAmount: total,
			Status:      model.TransactionStatusCompleted,
			Date:        s.clock.Now().UTC(),
		})
		if err != nil {
			return repoError("insert transaction", err)
		}

		if err = s.repo.UpdatePortfolioBalance(ctx, req.PortfolioID, total); err != nil {
			return repoError("credit balance", err)
		}

		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}

	return trade, nil
}

func (s *LedgerService) GetHoldings(ctx context.Context, portfolioID int64) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetHoldings"

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		slog.Debug("GetHoldings finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(holdings)))
	}()

	if _, err = s.repo.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, repoError(fmt.Sprintf("portfolio %d", portfolioID), err)
	}

	holdings, err = s.repo.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, repoError("get holdings", err)
	}

	return holdings, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, portfolioID int64, limit, offset int) (transactions []model.Transaction, hasNextPage bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.ListTransactions"

	slog.Debug("ListTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID), slog.Int("limit", limit), slog.Int("offset", offset))
	defer func() {
		slog.Debug("ListTransactions finished", slog.String("rqID", rqID), slog.String("op", op), slog.Bool("hasNextPage", hasNextPage))
	}()

	if limit <= 0 || offset < 0 {
		return nil, false, fmt.Errorf("%w: limit %d, offset %d", service.ErrInvalidTrade, limit, offset)
	}

	if _, err = s.repo.GetPortfolio(ctx, portfolioID); err != nil {
		return nil, false, repoError(fmt.Sprintf("portfolio %d", portfolioID), err)
	}

	transactions, hasNextPage, err = s.repo.ListTransactions(ctx, portfolioID, limit, offset)
	if err != nil {
		return nil, false, repoError("list transactions", err)
	}

	return transactions, hasNextPage, nil
}

func (s *LedgerService) checkTolerance(requested, live decimal.Decimal) error {
	band := live.Mul(s.tolerance)
	if requested.Sub(live).Abs().GreaterThan(band) {
		return fmt.Errorf("%w: requested %s, live %s", service.ErrPriceValidationFailed, requested, live)
	}
	return nil
}

func normalizeTrade(req model.TradeRequest) (model.TradeRequest, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))

	switch {
	case req.Symbol == "":
		return req, fmt.Errorf("%w: empty symbol", service.ErrInvalidTrade)
	case req.Quantity <= 0:
		return req, fmt.Errorf("%w: quantity %d", service.ErrInvalidTrade, req.Quantity)
	case !req.Price.IsPositive():
		return req, fmt.Errorf("%w: price %s", service.ErrInvalidTrade, req.Price)
	}

	return req, nil
}

func repoError(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", service.ErrNotFound, what)
	}
	return fmt.Errorf("%w: %s: %w", service.ErrPersistence, what, err)
}
