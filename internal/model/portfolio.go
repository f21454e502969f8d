package model

import (
	"github.com/shopspring/decimal"
)

type Portfolio struct {
	PortfolioID int64
	UserID      int64
	Name        string
	Balance     decimal.Decimal
}

// Holding is derived from transaction history and never persisted.
type Holding struct {
	PortfolioID int64
	StockID     int64
	Symbol      string
	Quantity    int
}

type HoldingValuation struct {
	Holding
	Name       string
	Price      decimal.Decimal
	TotalPrice decimal.Decimal
}

type PortfolioValuation struct {
	PortfolioID   int64
	Balance       decimal.Decimal
	HoldingsValue decimal.Decimal
	TotalValue    decimal.Decimal
	Holdings      []HoldingValuation
}
