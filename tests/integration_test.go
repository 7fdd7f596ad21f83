package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverURL = "http://localhost:8080"

func requireServer(t *testing.T) {
	t.Helper()

	configPath := filepath.Join("..", "config.env")
	viper.SetConfigFile(configPath)
	viper.SetConfigType("env")
	if err := viper.ReadInConfig(); err != nil {
		t.Logf("Cant read config.env, ENV variables will be used: %v", err)
	}

	resp, err := http.Get(serverURL + "/api/v1/wallets/" + uuid.New().String())
	if err != nil {
		t.Skipf("Server not reachable at %s: %v", serverURL, err)
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Error closing response body: %v", closeErr)
	}
}

// walletVersion reads the write counter straight from the wallets table,
// since the HTTP balance response does not expose it. Returns false when the
// DB is not reachable from the test environment.
func walletVersion(t *testing.T, walletID string) (int64, bool) {
	t.Helper()

	viper.AutomaticEnv()
	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		viper.GetString("DB_USER"),
		viper.GetString("DB_PASSWORD"),
		viper.GetString("DB_HOST"),
		viper.GetString("DB_PORT"),
		viper.GetString("DB_NAME"))

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Logf("DB not reachable, skipping version check: %v", err)
		return 0, false
	}
	defer func() {
		if closeErr := conn.Close(ctx); closeErr != nil {
			t.Logf("Error closing DB connection: %v", closeErr)
		}
	}()

	var version int64
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT version FROM wallets WHERE wallet_id=$1", walletID).Scan(&version))
	return version, true
}

func postOperation(t *testing.T, walletID, operationType string, amount decimal.Decimal) *http.Response {
	t.Helper()

	req := WalletOperationRequest{
		WalletId:      walletID,
		OperationType: operationType,
		Amount:        amount,
	}
	reqBody, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := http.Post(serverURL+"/api/v1/wallet", "application/json", bytes.NewBuffer(reqBody))
	require.NoError(t, err)
	return resp
}

func getBalance(t *testing.T, walletID string) (int, BalanceResponse) {
	t.Helper()

	resp, err := http.Get(serverURL + "/api/v1/wallets/" + walletID)
	require.NoError(t, err)
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Logf("Error closing response body: %v", closeErr)
		}
	}()

	var balanceResp BalanceResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&balanceResp))
	}
	return resp.StatusCode, balanceResp
}

func TestDepositThenRead(t *testing.T) {
	requireServer(t)

	walletID := uuid.New().String()
	resp := postOperation(t, walletID, "DEPOSIT", decimal.NewFromInt(1000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	status, balanceResp := getBalance(t, walletID)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, walletID, balanceResp.WalletId)
	assert.True(t, balanceResp.Balance.Equal(decimal.NewFromInt(1000)))

	if version, ok := walletVersion(t, walletID); ok {
		assert.Equal(t, int64(1), version, "first committed write should set version to 1")
	}
}

func TestWithdrawFromFundedWallet(t *testing.T) {
	requireServer(t)

	walletID := uuid.New().String()
	resp := postOperation(t, walletID, "DEPOSIT", decimal.NewFromInt(2000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	resp = postOperation(t, walletID, "WITHDRAW", decimal.NewFromInt(1000))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	status, balanceResp := getBalance(t, walletID)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, balanceResp.Balance.Equal(decimal.NewFromInt(1000)))

	if version, ok := walletVersion(t, walletID); ok {
		assert.Equal(t, int64(2), version, "each committed write should bump version by exactly 1")
	}
}

func TestWithdrawFromFreshWallet_NoRowCreated(t *testing.T) {
	requireServer(t)

	walletID := uuid.New().String()
	resp := postOperation(t, walletID, "WITHDRAW", decimal.NewFromInt(1000))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, errResp.Error, "insufficient funds")

	// The rejected withdraw must not have materialized a row
	status, _ := getBalance(t, walletID)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestReadUnknownWallet(t *testing.T) {
	requireServer(t)

	status, _ := getBalance(t, uuid.New().String())
	assert.Equal(t, http.StatusNotFound, status)
}

func TestConcurrentDepositsToFreshWallet(t *testing.T) {
	requireServer(t)

	walletID := uuid.New().String()
	numDeposits := 50
	amount := decimal.NewFromInt(10)

	var wg sync.WaitGroup
	errorCount := 0
	var mu sync.Mutex

	for i := 0; i < numDeposits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := postOperation(t, walletID, "DEPOSIT", amount)
			defer func() {
				if closeErr := resp.Body.Close(); closeErr != nil {
					t.Logf("Error closing response body: %v", closeErr)
				}
			}()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				mu.Lock()
				errorCount++
				t.Logf("Request failed with status %d: %s", resp.StatusCode, string(body))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 0, errorCount, "No requests should have failed")

	status, balanceResp := getBalance(t, walletID)
	require.Equal(t, http.StatusOK, status)
	expected := amount.Mul(decimal.NewFromInt(int64(numDeposits)))
	assert.True(t, balanceResp.Balance.Equal(expected),
		"Final balance should be %s, got %s", expected, balanceResp.Balance)

	if version, ok := walletVersion(t, walletID); ok {
		assert.Equal(t, int64(numDeposits), version,
			"version should equal the number of committed writes")
	}
}

func TestWalletConcurrency(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping load test in short mode")
	}
	requireServer(t)

	walletID := uuid.New().String()
	initialAmount := decimal.NewFromInt(1000000)
	smallAmount := decimal.NewFromInt(1)
	numOperations := 5000

	// Rate limiting: max 1000 RPS
	maxRPS := 1000
	rateLimiter := time.NewTicker(time.Second / time.Duration(maxRPS))
	defer rateLimiter.Stop()

	t.Logf("Starting load test with wallet ID: %s", walletID)

	resp := postOperation(t, walletID, "DEPOSIT", initialAmount)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	status, balanceResp := getBalance(t, walletID)
	require.Equal(t, http.StatusOK, status)
	require.True(t, balanceResp.Balance.Equal(initialAmount))

	var wg sync.WaitGroup
	errorCount := 0
	successCount := 0
	var mu sync.Mutex

	makeOperation := func(operationType string) {
		defer wg.Done()
		<-rateLimiter.C

		req := WalletOperationRequest{
			WalletId:      walletID,
			OperationType: operationType,
			Amount:        smallAmount,
		}
		reqBody, err := json.Marshal(req)
		if err != nil {
			mu.Lock()
			errorCount++
			mu.Unlock()
			return
		}
		resp, err := http.Post(serverURL+"/api/v1/wallet", "application/json", bytes.NewBuffer(reqBody))
		if err != nil {
			mu.Lock()
			errorCount++
			t.Logf("Error making request: %v", err)
			mu.Unlock()
			return
		}
		defer func() {
			if closeErr := resp.Body.Close(); closeErr != nil {
				t.Logf("Error closing response body: %v", closeErr)
			}
		}()

		mu.Lock()
		if resp.StatusCode == http.StatusOK {
			successCount++
		} else {
			errorCount++
			body, _ := io.ReadAll(resp.Body)
			t.Logf("Request failed with status %d: %s", resp.StatusCode, string(body))
		}
		mu.Unlock()
	}

	t.Logf("Starting %d withdraw and %d deposit operations", numOperations, numOperations)
	for i := 0; i < numOperations; i++ {
		wg.Add(2)
		go makeOperation("WITHDRAW")
		go makeOperation("DEPOSIT")
	}
	wg.Wait()

	t.Logf("Operations completed. Success: %d, Errors: %d", successCount, errorCount)

	// Let the queue drain before the final read
	time.Sleep(2 * time.Second)

	status, balanceResp = getBalance(t, walletID)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, 0, errorCount, "No requests should have failed")
	assert.Equal(t, numOperations*2, successCount, "All operations should have succeeded")
	assert.True(t, balanceResp.Balance.Equal(initialAmount),
		fmt.Sprintf("Final balance should equal initial balance after equal deposits and withdrawals. Expected: %s, Got: %s",
			initialAmount, balanceResp.Balance))
}
