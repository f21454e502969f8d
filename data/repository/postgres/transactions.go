package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/KotFed0t/invest_ledger/internal/converter/dbConverter"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/model/dbModel"
	"github.com/KotFed0t/invest_ledger/utils"
)

const completedHoldingsExpr = `COALESCE(SUM(CASE WHEN t.type = 'BUY' THEN t.quantity ELSE -t.quantity END), 0)`

func (r *Postgres) InsertTransaction(ctx context.Context, tx model.Transaction) (inserted model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(portfolio_id, stock_id, type, quantity, price, total_amount, status, idempotency_key, dt_create)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING transaction_id
	`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Any("transaction", tx),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", inserted.TransactionID))
		}
	}()

	idempotencyKey := sql.NullString{String: tx.IdempotencyKey, Valid: tx.IdempotencyKey != ""}

	err = r.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		tx.PortfolioID,
		tx.StockID,
		tx.Type,
		tx.Quantity,
		tx.Price,
		tx.TotalAmount,
		tx.Status,
		idempotencyKey,
		tx.Date,
	).Scan(&tx.TransactionID)
	if err != nil {
		return model.Transaction{}, mapError(err)
	}

	return tx, nil
}

// GetHolding returns the net quantity of stockID held by portfolioID, derived from
// its completed transactions.
func (r *Postgres) GetHolding(ctx context.Context, portfolioID, stockID int64) (quantity int, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHolding"
	query := `
		SELECT ` + completedHoldingsExpr + `
		FROM transactions t
		WHERE t.portfolio_id = $1
			AND t.stock_id = $2
			AND t.status = 'COMPLETED'
		`

	slog.Debug("GetHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID), slog.Int64("stockID", stockID))
	defer func() {
		if err != nil {
			slog.Error("GetHolding failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHolding completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("quantity", quantity))
		}
	}()

	err = r.txOrDb(ctx).GetContext(ctx, &quantity, query, portfolioID, stockID)
	if err != nil {
		return 0, err
	}

	return quantity, nil
}

func (r *Postgres) GetHoldings(ctx context.Context, portfolioID int64) (holdings []model.Holding, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetHoldings"
	query := `
		SELECT t.stock_id, s.symbol, ` + completedHoldingsExpr + ` AS quantity
		FROM transactions t
		JOIN stocks s ON s.stock_id = t.stock_id
		WHERE t.portfolio_id = $1
			AND t.status = 'COMPLETED'
		GROUP BY t.stock_id, s.symbol
		HAVING ` + completedHoldingsExpr + ` > 0
		ORDER BY s.symbol
		`

	slog.Debug("GetHoldings start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("GetHoldings failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetHoldings completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var holding dbModel.Holding
		err = rows.StructScan(&holding)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, dbConverter.ConvertHolding(portfolioID, holding))
	}

	return holdings, rows.Err()
}

func (r *Postgres) ListTransactions(ctx context.Context, portfolioID int64, limit, offset int) (transactions []model.Transaction, hasNextPage bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListTransactions"
	params := map[string]any{
		"portfolioID": portfolioID,
		"limit":       limit,
		"offset":      offset,
	}
	query := `
		SELECT t.transaction_id, t.portfolio_id, t.stock_id, s.symbol, t.type, t.quantity,
			t.price, t.total_amount, t.status, t.idempotency_key, t.dt_create
		FROM transactions t
		JOIN stocks s ON s.stock_id = t.stock_id
		WHERE t.portfolio_id = $1
		ORDER BY t.transaction_id DESC
		LIMIT $2
		OFFSET $3
		`

	slog.Debug("ListTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("ListTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	// выбираем на 1 больше, чтобы знать есть ли next page
	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, portfolioID, limit+1, offset)
	if err != nil {
		return nil, false, err
	}

	defer rows.Close()

	transactions = make([]model.Transaction, 0, limit)
	for rows.Next() {
		var dbTx dbModel.Transaction
		err = rows.StructScan(&dbTx)
		if err != nil {
			return nil, false, err
		}

		if len(transactions) == limit {
			hasNextPage = true
			break
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(dbTx))
	}

	return transactions, hasNextPage, rows.Err()
}

func (r *Postgres) CountTransactions(ctx context.Context, portfolioID int64) (count int, err error) {
	query := `SELECT COUNT(*) FROM transactions WHERE portfolio_id = $1`

	err = r.txOrDb(ctx).GetContext(ctx, &count, query, portfolioID)
	if err != nil {
		slog.Error(
			"CountTransactions failed",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("op", "Postgres.CountTransactions"),
			slog.String("err", err.Error()),
		)
		return 0, err
	}

	return count, nil
}
