package service

import "errors"

var (
	ErrNotFound              = errors.New("error not found")
	ErrInvalidTrade          = errors.New("error invalid trade request")
	ErrPriceValidationFailed = errors.New("error price validation failed")
	ErrInsufficientHoldings  = errors.New("error insufficient holdings")
	ErrInsufficientFunds     = errors.New("error insufficient funds")
	ErrPersistence           = errors.New("error persistence failure")
)
