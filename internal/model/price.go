package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a price observed at the market data provider.
type Quote struct {
	Symbol    string
	Name      string
	Price     decimal.Decimal
	PageToken string
}

// CachedPrice is the cache record of a Quote. ObservedAt is in unix seconds.
type CachedPrice struct {
	Symbol       string
	Name         string
	Price        decimal.Decimal
	PageToken    string
	ObservedAt   int64
	TTLSeconds   int64
	NeedsRefresh bool
}

func (c CachedPrice) ExpiresAt() time.Time {
	return time.Unix(c.ObservedAt+c.TTLSeconds, 0)
}

func (c CachedPrice) Quote() Quote {
	return Quote{Symbol: c.Symbol, Name: c.Name, Price: c.Price, PageToken: c.PageToken}
}

type PurchaseRequest struct {
	PortfolioID    int64
	Price          decimal.Decimal
	Quantity       int
	IdempotencyKey string
}

type PurchaseConfirmation struct {
	ConfirmationID    string
	ConfirmedPrice    decimal.Decimal
	ConfirmedQuantity int
}
