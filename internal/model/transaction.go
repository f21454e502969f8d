package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TradeType int

const (
	TradeTypeBuy TradeType = iota + 1
	TradeTypeSell
)

func (t TradeType) String() string {
	switch t {
	case TradeTypeBuy:
		return "BUY"
	case TradeTypeSell:
		return "SELL"
	default:
		return fmt.Sprintf("TradeType(%d)", int(t))
	}
}

func ParseTradeType(s string) (TradeType, error) {
	switch s {
	case "BUY":
		return TradeTypeBuy, nil
	case "SELL":
		return TradeTypeSell, nil
	default:
		return 0, fmt.Errorf("unknown trade type %q", s)
	}
}

func (t TradeType) Value() (driver.Value, error) {
	if t != TradeTypeBuy && t != TradeTypeSell {
		return nil, fmt.Errorf("invalid trade type %d", int(t))
	}
	return t.String(), nil
}

func (t *TradeType) Scan(src any) error {
	s, err := scanString(src)
	if err != nil {
		return err
	}
	*t, err = ParseTradeType(s)
	return err
}

type TransactionStatus int

const (
	TransactionStatusPending TransactionStatus = iota + 1
	TransactionStatusCompleted
	// TransactionStatusFailed marks a trade recorded after its external leg is known to have failed.
	TransactionStatusFailed
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionStatusPending:
		return "PENDING"
	case TransactionStatusCompleted:
		return "COMPLETED"
	case TransactionStatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("TransactionStatus(%d)", int(s))
	}
}

// IsTerminal reports whether no further transitions are allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch s {
	case "PENDING":
		return TransactionStatusPending, nil
	case "COMPLETED":
		return TransactionStatusCompleted, nil
	case "FAILED":
		return TransactionStatusFailed, nil
	default:
		return 0, fmt.Errorf("unknown transaction status %q", s)
	}
}

func (s TransactionStatus) Value() (driver.Value, error) {
	if s < TransactionStatusPending || s > TransactionStatusFailed {
		return nil, fmt.Errorf("invalid transaction status %d", int(s))
	}
	return s.String(), nil
}

func (s *TransactionStatus) Scan(src any) error {
	str, err := scanString(src)
	if err != nil {
		return err
	}
	*s, err = ParseTransactionStatus(str)
	return err
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported scan type %T", src)
	}
}

type Transaction struct {
	TransactionID  int64
	PortfolioID    int64
	StockID        int64
	StockSymbol    string
	Type           TradeType
	Quantity       int
	Price          decimal.Decimal
	TotalAmount    decimal.Decimal
	Status         TransactionStatus
	IdempotencyKey string
	Date           time.Time
}

// TradeRequest is the input of a buy or sell.
type TradeRequest struct {
	PortfolioID int64
	Symbol      string
	Quantity    int
	Price       decimal.Decimal
}

func (r TradeRequest) TotalAmount() decimal.Decimal {
	return r.Price.Mul(decimal.NewFromInt(int64(r.Quantity)))
}
