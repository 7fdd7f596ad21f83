package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"wallet-service/internal/db"
	"wallet-service/internal/models"
)

// ErrWalletNotFound means no row was ever committed for the wallet id.
var ErrWalletNotFound = errors.New("wallet not found")

const (
	lockAndFetchQuery = "SELECT balance, version FROM wallets WHERE wallet_id=$1 FOR UPDATE"
	upsertQuery       = "INSERT INTO wallets (wallet_id, balance, version) VALUES ($1, $2, 1) " +
		"ON CONFLICT (wallet_id) DO UPDATE SET balance=$2, version=wallets.version+1"
	fetchQuery = "SELECT balance, version FROM wallets WHERE wallet_id=$1"
)

// TxWalletStore gives the processor its two row operations inside one open
// transaction, so the row lock taken by LockAndFetch is held until the
// transaction commits or rolls back.
type TxWalletStore struct {
	tx db.TxProvider
}

func NewTxWalletStore(tx db.TxProvider) *TxWalletStore {
	return &TxWalletStore{tx: tx}
}

// LockAndFetch reads the wallet row under FOR UPDATE. An absent row yields a
// zero-balance, version-0 template and found=false; nothing is written.
func (s *TxWalletStore) LockAndFetch(ctx context.Context, walletId uuid.UUID) (models.Wallet, bool, error) {
	wallet := models.NewWalletTemplate(walletId)
	err := s.tx.QueryRow(ctx, lockAndFetchQuery, walletId).Scan(&wallet.Balance, &wallet.Version)
	if err != nil {
		if isNoRows(err) {
			return wallet, false, nil
		}
		return wallet, false, fmt.Errorf("lock-fetch wallet %s: %w", walletId, err)
	}
	return wallet, true, nil
}

// UpsertWithVersionBump writes the new balance: inserts (id, balance, 1) for a
// fresh wallet, otherwise sets the balance and bumps version by exactly 1.
func (s *TxWalletStore) UpsertWithVersionBump(ctx context.Context, walletId uuid.UUID, newBalance decimal.Decimal) error {
	if _, err := s.tx.Exec(ctx, upsertQuery, walletId, newBalance); err != nil {
		return fmt.Errorf("upsert wallet %s: %w", walletId, err)
	}
	return nil
}

// BalanceReader is the non-locking read path. It runs on the pool, outside
// any transaction and outside the serializer.
type BalanceReader struct {
	db db.DBProvider
}

func NewBalanceReader(dbProvider db.DBProvider) *BalanceReader {
	return &BalanceReader{db: dbProvider}
}

func (r *BalanceReader) Read(ctx context.Context, walletId uuid.UUID) (models.Wallet, error) {
	wallet := models.Wallet{WalletId: walletId}
	err := r.db.QueryRow(ctx, fetchQuery, walletId).Scan(&wallet.Balance, &wallet.Version)
	if err != nil {
		if isNoRows(err) {
			return wallet, ErrWalletNotFound
		}
		return wallet, fmt.Errorf("read wallet %s: %w", walletId, err)
	}
	return wallet, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || err.Error() == "no rows in result set"
}
