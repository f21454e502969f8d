package dbConverter

import (
	"github.com/KotFed0t/invest_ledger/internal/model"
	"github.com/KotFed0t/invest_ledger/internal/model/dbModel"
)

func ConvertPortfolio(dbPortfolio dbModel.Portfolio) model.Portfolio {
	return model.Portfolio{
		PortfolioID: dbPortfolio.PortfolioID,
		UserID:      dbPortfolio.UserID,
		Name:        dbPortfolio.Name,
		Balance:     dbPortfolio.Balance,
	}
}

func ConvertStock(dbStock dbModel.Stock) model.Stock {
	return model.Stock{
		StockID: dbStock.StockID,
		Symbol:  dbStock.Symbol,
		Name:    dbStock.Name,
	}
}

func ConvertHolding(portfolioID int64, dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		PortfolioID: portfolioID,
		StockID:     dbHolding.StockID,
		Symbol:      dbHolding.Symbol,
		Quantity:    dbHolding.Quantity,
	}
}

func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	return model.Transaction{
		TransactionID:  dbTx.TransactionID,
		PortfolioID:    dbTx.PortfolioID,
		StockID:        dbTx.StockID,
		StockSymbol:    dbTx.Symbol,
		Type:           dbTx.Type,
		Quantity:       dbTx.Quantity,
		Price:          dbTx.Price,
		TotalAmount:    dbTx.TotalAmount,
		Status:         dbTx.Status,
		IdempotencyKey: dbTx.IdempotencyKey.String,
		Date:           dbTx.DtCreate,
	}
}
