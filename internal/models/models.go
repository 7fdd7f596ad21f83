package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OperationType string

const (
	DEPOSIT  OperationType = "DEPOSIT"
	WITHDRAW OperationType = "WITHDRAW"
)

type WalletOperationRequest struct {
	WalletId      string          `json:"walletId" binding:"required,uuid"`
	OperationType OperationType   `json:"operationType" binding:"required,oneof=DEPOSIT WITHDRAW"`
	// Positivity is enforced by the processor: validator cannot compare a
	// decimal.Decimal, so a gt tag here would panic at bind time.
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Wallet is one balance row. Version counts committed writes: it starts at 0
// and the store bumps it by exactly 1 on every successful upsert.
type Wallet struct {
	WalletId uuid.UUID       `json:"walletId"`
	Balance  decimal.Decimal `json:"balance"`
	Version  int64           `json:"version"`
}

// NewWalletTemplate returns the in-memory zero state used for a wallet whose
// row does not exist yet. The template itself is never persisted; the row is
// materialized only by the first successful operation.
func NewWalletTemplate(walletId uuid.UUID) Wallet {
	return Wallet{WalletId: walletId, Balance: decimal.Zero, Version: 0}
}
