package tests

import (
	"github.com/shopspring/decimal"
)

type WalletOperationRequest struct {
	WalletId      string          `json:"walletId"`
	OperationType string          `json:"operationType"`
	Amount        decimal.Decimal `json:"amount"`
}

type BalanceResponse struct {
	WalletId string          `json:"walletId"`
	Balance  decimal.Decimal `json:"balance"`
	Cached   bool            `json:"cached"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
