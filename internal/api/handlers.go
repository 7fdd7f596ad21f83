package api

import (
	"errors"
	"net/http"
	"time"

	"wallet-service/internal/cache"
	"wallet-service/internal/models"
	"wallet-service/internal/processor"
	"wallet-service/internal/serializer"
	"wallet-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Handler struct {
	Cache  *cache.BalanceCache
	Queue  *serializer.Serializer
	Reader *store.BalanceReader

	// ResponseDelay is an optional latency floor applied after a successful
	// operation, for callers that read back immediately through an eventually
	// consistent layer. Zero by default.
	ResponseDelay time.Duration
}

func NewHandler(c *cache.BalanceCache, q *serializer.Serializer, r *store.BalanceReader) *Handler {
	viper.AutomaticEnv()
	viper.SetDefault("HTTP_RESPONSE_DELAY_MS", 0)
	return &Handler{
		Cache:         c,
		Queue:         q,
		Reader:        r,
		ResponseDelay: time.Duration(viper.GetInt("HTTP_RESPONSE_DELAY_MS")) * time.Millisecond,
	}
}

func (h *Handler) HandleWalletOperation(c *gin.Context) {
	var req models.WalletOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := uuid.Parse(req.WalletId); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid walletId format"})
		return
	}

	err := h.Queue.Submit(req)
	switch {
	case err == nil:
	case errors.Is(err, processor.ErrInsufficientFunds),
		errors.Is(err, processor.ErrUnknownOperation),
		errors.Is(err, processor.ErrNonPositiveAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, serializer.ErrQueueFull), errors.Is(err, serializer.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.ResponseDelay > 0 {
		time.Sleep(h.ResponseDelay)
	}
	c.Status(http.StatusOK)
}

func (h *Handler) HandleGetBalance(c *gin.Context) {
	walletIdStr := c.Param("walletId")
	walletId, err := uuid.Parse(walletIdStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid walletId format"})
		return
	}
	if balance, ok := h.Cache.Get(walletId); ok {
		c.JSON(http.StatusOK, gin.H{"walletId": walletId, "balance": balance, "cached": true})
		return
	}
	wallet, err := h.Reader.Read(c, walletId)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.Cache.Set(walletId, wallet.Balance)
	c.JSON(http.StatusOK, gin.H{"walletId": walletId, "balance": wallet.Balance, "cached": false})
}
