package marketDataModel

import "github.com/shopspring/decimal"

type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	PageToken string          `json:"pageToken,omitempty"`
}

type QuotesPage struct {
	Quotes        []Quote `json:"quotes"`
	NextPageToken string  `json:"nextPageToken"`
}

type PurchaseRequest struct {
	PortfolioID int64           `json:"portfolioId"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type PurchaseConfirmation struct {
	ConfirmationID    string          `json:"confirmationId"`
	ConfirmedPrice    decimal.Decimal `json:"confirmedPrice"`
	ConfirmedQuantity int             `json:"confirmedQuantity"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
