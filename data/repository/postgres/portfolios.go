package postgres

import (
	"context"
	"log/slog"

	"github.com/KotFed0t/invest_ledger/data/repository"
	"github.com/KotFed0t/invest_ledger/internal/converter/dbConverter"
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/model/dbModel"
	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/shopspring/decimal"
)

func (r *Postgres) CreatePortfolio(ctx context.Context, userID int64, name string, balance decimal.Decimal) (portfolioID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CreatePortfolio"
	query := `INSERT INTO portfolios(user_id, name, balance) VALUES($1, $2, $3) RETURNING portfolio_id`

	slog.Debug("CreatePortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("CreatePortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreatePortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID, name, balance).Scan(&portfolioID)
	if err != nil {
		return 0, mapError(err)
	}

	return portfolioID, nil
}

func (r *Postgres) getPortfolio(ctx context.Context, portfolioID int64, query string) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.getPortfolio"

	slog.Debug("getPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("portfolioID", portfolioID))
	defer func() {
		if err != nil {
			slog.Error("getPortfolio failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("getPortfolio completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPortfolio := dbModel.Portfolio{}
	err = r.txOrDb(ctx).GetContext(ctx, &dbPortfolio, query, portfolioID)
	if err != nil {
		return model.Portfolio{}, mapError(err)
	}

	return dbConverter.ConvertPortfolio(dbPortfolio), nil
}

func (r *Postgres) GetPortfolio(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	query := `
		SELECT portfolio_id, user_id, name, balance
		FROM portfolios
		WHERE portfolio_id = $1
		`

	return r.getPortfolio(ctx, portfolioID, query)
}

// GetPortfolioForUpdate locks the portfolio row until the surrounding transaction ends,
// serializing trades of one portfolio.
func (r *Postgres) GetPortfolioForUpdate(ctx context.Context, portfolioID int64) (model.Portfolio, error) {
	query := `
		SELECT portfolio_id, user_id, name, balance
		FROM portfolios
		WHERE portfolio_id = $1` + r.forUpdate()

	return r.getPortfolio(ctx, portfolioID, query)
}

func (r *Postgres) UpdatePortfolioBalance(ctx context.Context, portfolioID int64, delta decimal.Decimal) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePortfolioBalance"
	params := map[string]any{
		"portfolioID": portfolioID,
		"delta":       delta,
	}
	query := `
		UPDATE portfolios
		SET balance = balance + $1
		WHERE portfolio_id = $2
		`

	slog.Debug("UpdatePortfolioBalance start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("UpdatePortfolioBalance failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePortfolioBalance completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, delta, portfolioID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
