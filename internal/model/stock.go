package model

type Stock struct {
	StockID int64
	Symbol  string
	Name    string
}
