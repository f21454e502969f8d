package dbModel

import (
	"database/sql"
	"time"

	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	TransactionID  int64                   `db:"transaction_id"`
	PortfolioID    int64                   `db:"portfolio_id"`
	StockID        int64                   `db:"stock_id"`
	Symbol         string                  `db:"symbol"`
	Type           model.TradeType         `db:"type"`
	Quantity       int                     `db:"quantity"`
	Price          decimal.Decimal         `db:"price"`
	TotalAmount    decimal.Decimal         `db:"total_amount"`
	Status         model.TransactionStatus `db:"status"`
	IdempotencyKey sql.NullString          `db:"idempotency_key"`
	DtCreate       time.Time               `db:"dt_create"`
}
