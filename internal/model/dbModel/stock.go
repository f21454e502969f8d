package dbModel

type Stock struct {
	StockID int64  `db:"stock_id"`
	Symbol  string `db:"symbol"`
	Name    string `db:"name"`
}
