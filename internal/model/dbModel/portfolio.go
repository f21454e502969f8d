package dbModel

import (
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID int64           `db:"portfolio_id"`
	UserID      int64           `db:"user_id"`
	Name        string          `db:"name"`
	Balance     decimal.Decimal `db:"balance"`
}

type Holding struct {
	StockID  int64  `db:"stock_id"`
	Symbol   string `db:"symbol"`
	Quantity int    `db:"quantity"`
}
