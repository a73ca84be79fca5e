package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
	"jaudi-finance-backend/internal/syncer"
	"jaudi-finance-backend/internal/transfer"
)

type TransactionHandler struct {
	transfers *transfer.Service
	sync      *syncer.Synchronizer
	container *state.Container
	records   store.RecordStore
	log       zerolog.Logger
}

func NewTransactionHandler(transfers *transfer.Service, sync *syncer.Synchronizer, container *state.Container, records store.RecordStore, log zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transfers: transfers,
		sync:      sync,
		container: container,
		records:   records,
		log:       log,
	}
}

func (h *TransactionHandler) RegisterRoutes(router *gin.RouterGroup) {
	txs := router.Group("/transactions")
	{
		txs.POST("", h.create)
		txs.GET("", h.list)
		txs.GET("/search", h.search)
		txs.GET("/stats", h.stats)
		txs.GET("/:id", h.get)
		txs.POST("/:id/cancel", h.cancel)
		txs.POST("/:id/sync", h.forceSync)
		txs.POST("/quote", h.quote)
	}
}

func (h *TransactionHandler) create(c *gin.Context) {
	var input transfer.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid transfer payload"))
		return
	}

	tx, err := h.transfers.Create(c.Request.Context(), c.GetString(middleware.ContextUserID), input)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusCreated, tx)
}

type quoteRequest struct {
	Amount   float64 `json:"amount" binding:"required,gt=0"`
	Currency string  `json:"currency" binding:"required"`
}

func (h *TransactionHandler) quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid quote payload"))
		return
	}
	q, err := h.transfers.QuoteTransfer(c.Request.Context(), req.Amount, req.Currency)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, q)
}

// list serves from local state; it reflects queued offline transfers the
// durable store may not have seen yet.
func (h *TransactionHandler) list(c *gin.Context) {
	if status := c.Query("status"); status != "" {
		respond(c, http.StatusOK, h.container.TransactionsByStatus(models.TransactionStatus(status)))
		return
	}
	respond(c, http.StatusOK, h.container.Transactions())
}

func (h *TransactionHandler) get(c *gin.Context) {
	id := c.Param("id")
	if tx, ok := h.container.TransactionByID(id); ok {
		respond(c, http.StatusOK, tx)
		return
	}
	tx, err := h.records.TransactionByID(c.Request.Context(), id)
	if err == store.ErrNotFound {
		middleware.AbortWithError(c, apperrors.Newf(apperrors.ErrCodeNotFound, "transaction %s not found", id))
		return
	}
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to load transaction"))
		return
	}
	respond(c, http.StatusOK, tx)
}

func (h *TransactionHandler) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "query parameter q is required"))
		return
	}
	results, err := h.records.SearchTransactions(c.Request.Context(), c.GetString(middleware.ContextUserID), query)
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "search failed"))
		return
	}
	respond(c, http.StatusOK, results)
}

func (h *TransactionHandler) stats(c *gin.Context) {
	from := time.Time{}
	to := time.Now().UTC()
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "from must be RFC3339"))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			middleware.AbortWithError(c, apperrors.New(apperrors.ErrCodeValidation, "to must be RFC3339"))
			return
		}
		to = parsed
	}

	stats, err := h.records.TransactionStats(c.Request.Context(), c.GetString(middleware.ContextUserID), from, to)
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to compute stats"))
		return
	}
	respond(c, http.StatusOK, stats)
}

func (h *TransactionHandler) cancel(c *gin.Context) {
	tx, err := h.transfers.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, tx)
}

func (h *TransactionHandler) forceSync(c *gin.Context) {
	id := c.Param("id")
	if err := h.sync.ForceSyncTransaction(c.Request.Context(), id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	tx, _ := h.container.TransactionByID(id)
	respond(c, http.StatusOK, tx)
}
