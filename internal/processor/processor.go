package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"wallet-service/internal/cache"
	"wallet-service/internal/db"
	"wallet-service/internal/models"
	"wallet-service/internal/store"
)

// Processor applies one balance transition: lock-fetch the row, compute the
// new balance, validate it, and persist it with a write timeout and bounded
// exponential backoff. Business rejections are terminal and never retried.
type Processor struct {
	DB    db.DBProvider
	Cache *cache.BalanceCache

	PersistTimeout time.Duration
	RetryBase      time.Duration
	MaxRetries     uint64
}

func NewProcessor(dbProvider db.DBProvider, c *cache.BalanceCache) *Processor {
	viper.AutomaticEnv()
	viper.SetDefault("PERSIST_TIMEOUT_MS", 50)
	viper.SetDefault("RETRY_BASE_MS", 100)
	viper.SetDefault("PERSIST_MAX_RETRIES", 3)
	return &Processor{
		DB:             dbProvider,
		Cache:          c,
		PersistTimeout: time.Duration(viper.GetInt("PERSIST_TIMEOUT_MS")) * time.Millisecond,
		RetryBase:      time.Duration(viper.GetInt("RETRY_BASE_MS")) * time.Millisecond,
		MaxRetries:     uint64(viper.GetInt("PERSIST_MAX_RETRIES")),
	}
}

func (p *Processor) Execute(ctx context.Context, req models.WalletOperationRequest) error {
	walletId, err := uuid.Parse(req.WalletId)
	if err != nil {
		return fmt.Errorf("invalid walletId %q: %w", req.WalletId, err)
	}
	if !req.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if req.OperationType != models.DEPOSIT && req.OperationType != models.WITHDRAW {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, req.OperationType)
	}

	backoff := retry.WithMaxRetries(p.MaxRetries, retry.NewExponential(p.RetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptErr := p.attempt(ctx, walletId, req)
		if attemptErr == nil || errors.Is(attemptErr, ErrInsufficientFunds) {
			return attemptErr
		}
		log.Printf("Wallet %s %s attempt failed, will retry: %v", walletId, req.OperationType, attemptErr)
		return retry.RetryableError(attemptErr)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	p.Cache.Invalidate(walletId)
	return nil
}

// attempt runs steps 1-3 inside a single transaction so the FOR UPDATE lock
// is held until commit or rollback. The write timeout covers only the
// persistence sub-step, not lock acquisition.
func (p *Processor) attempt(ctx context.Context, walletId uuid.UUID, req models.WalletOperationRequest) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Printf("Failed to rollback transaction: %v", rollbackErr)
			}
		}
	}()

	walletStore := store.NewTxWalletStore(tx)
	wallet, _, err := walletStore.LockAndFetch(ctx, walletId)
	if err != nil {
		return err
	}

	var newBalance decimal.Decimal
	switch req.OperationType {
	case models.DEPOSIT:
		newBalance = wallet.Balance.Add(req.Amount)
	case models.WITHDRAW:
		newBalance = wallet.Balance.Sub(req.Amount)
		if newBalance.IsNegative() {
			return fmt.Errorf("%w: wallet %s", ErrInsufficientFunds, walletId)
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.PersistTimeout)
	defer cancel()

	if err := walletStore.UpsertWithVersionBump(writeCtx, walletId, newBalance); err != nil {
		return err
	}
	if err := tx.Commit(writeCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	committed = true
	return nil
}
