package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
	"jaudi-finance-backend/internal/syncer"
)

type SyncHandler struct {
	sync      *syncer.Synchronizer
	container *state.Container
	records   store.RecordStore
	log       zerolog.Logger
}

func NewSyncHandler(sync *syncer.Synchronizer, container *state.Container, records store.RecordStore, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, container: container, records: records, log: log}
}

func (h *SyncHandler) RegisterRoutes(router *gin.RouterGroup) {
	sync := router.Group("/sync")
	{
		sync.GET("/status", h.status)
		sync.POST("/trigger", h.trigger)
		sync.GET("/failed", h.failed)
		sync.POST("/failed/retry", h.retryFailed)
		sync.DELETE("/failed", h.clearFailed)
		sync.POST("/wipe", h.wipe)
	}
}

func (h *SyncHandler) status(c *gin.Context) {
	respond(c, http.StatusOK, h.sync.Status())
}

// trigger starts a drain in the background. A drain already in flight makes
// this a no-op; the status endpoint shows which happened.
func (h *SyncHandler) trigger(c *gin.Context) {
	go func() {
		if err := h.sync.SyncPendingItems(context.Background()); err != nil {
			h.log.Error().Err(err).Msg("triggered sync failed")
		}
	}()
	respond(c, http.StatusAccepted, h.sync.Status())
}

func (h *SyncHandler) failed(c *gin.Context) {
	items, err := h.records.FailedSyncItems(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to load dead letters"))
		return
	}
	respond(c, http.StatusOK, items)
}

func (h *SyncHandler) retryFailed(c *gin.Context) {
	if err := h.sync.RetryFailedSyncItems(c.Request.Context()); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	respond(c, http.StatusOK, h.sync.Status())
}

func (h *SyncHandler) clearFailed(c *gin.Context) {
	if err := h.sync.ClearFailedSyncItems(c.Request.Context()); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to clear dead letters"))
		return
	}
	respond(c, http.StatusOK, gin.H{"cleared": true})
}

// wipe erases all locally held records and resets app state. Exchange rates
// survive in both stores.
func (h *SyncHandler) wipe(c *gin.Context) {
	if err := h.records.Wipe(c.Request.Context()); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to wipe store"))
		return
	}
	h.container.Logout()
	h.log.Warn().Str("user_id", c.GetString(middleware.ContextUserID)).Msg("local data wiped")
	respond(c, http.StatusOK, gin.H{"wiped": true})
}
