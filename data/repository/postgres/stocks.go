package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/invest_ledger/internal/converter/dbConverter"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/model/dbModel"
	"github.com/KotFed0t/invest_ledger/utils"
)

// UpsertStock registers symbol and refreshes its name when a non-empty one is given.
func (r *Postgres) UpsertStock(ctx context.Context, symbol, name string) (stockID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertStock"
	query := `
		INSERT INTO stocks (symbol, name) VALUES ($1, $2)
		ON CONFLICT (symbol) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE stocks.name END
		RETURNING stock_id
		`

	slog.Debug("UpsertStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("UpsertStock failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertStock completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, symbol, name).Scan(&stockID)
	if err != nil {
		return 0, mapError(err)
	}

	return stockID, nil
}

func (r *Postgres) GetStockBySymbol(ctx context.Context, symbol string) (stock model.Stock, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetStockBySymbol"
	query := `SELECT stock_id, symbol, name FROM stocks WHERE symbol = $1`

	slog.Debug("GetStockBySymbol start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("GetStockBySymbol failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetStockBySymbol completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbStock := dbModel.Stock{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbStock, query, symbol)
	if err != nil {
		return model.Stock{}, mapError(err)
	}

	return dbConverter.ConvertStock(dbStock), nil
}

// GetTradedSymbols returns every symbol that appears in at least one transaction.
func (r *Postgres) GetTradedSymbols(ctx context.Context) (symbols []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTradedSymbols"
	query := `
		SELECT DISTINCT s.symbol
		FROM transactions t
		JOIN stocks s ON s.stock_id = t.stock_id
		ORDER BY s.symbol
		`

	slog.Debug("GetTradedSymbols start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("GetTradedSymbols failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTradedSymbols completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("count", len(symbols)))
		}
	}()

	err = r.txOrDb(ctx).SelectContext(ctx, &symbols, query)
	if err != nil {
		return nil, err
	}

	return symbols, nil
}
