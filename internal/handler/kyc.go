package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/common/middleware"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
)

type KYCHandler struct {
	container *state.Container
	records   store.RecordStore
	client    api.Client
	log       zerolog.Logger
}

func NewKYCHandler(container *state.Container, records store.RecordStore, client api.Client, log zerolog.Logger) *KYCHandler {
	return &KYCHandler{container: container, records: records, client: client, log: log}
}

func (h *KYCHandler) RegisterRoutes(router *gin.RouterGroup) {
	kyc := router.Group("/kyc")
	{
		kyc.POST("/documents", h.upload)
		kyc.GET("/documents", h.list)
	}
}

type uploadRequest struct {
	Type          models.DocumentType `json:"type" binding:"required"`
	FrontImageURI string              `json:"frontImageUri" binding:"required"`
	BackImageURI  string              `json:"backImageUri"`
}

// upload stores the captured document locally. Online it is pushed to the
// authority right away; offline the container queues it for the next drain.
func (h *KYCHandler) upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid document payload"))
		return
	}
	switch req.Type {
	case models.DocumentTypePassport, models.DocumentTypeNationalID, models.DocumentTypeDriversLicense, models.DocumentTypeUtilityBill:
	default:
		middleware.AbortWithError(c, apperrors.Newf(apperrors.ErrCodeValidation, "unknown document type %q", req.Type))
		return
	}

	doc := models.KYCDocument{
		ID:            models.NewKYCDocumentID(),
		UserID:        c.GetString(middleware.ContextUserID),
		Type:          req.Type,
		FrontImageURI: req.FrontImageURI,
		BackImageURI:  req.BackImageURI,
		Status:        models.KYCStatusPending,
		UploadedAt:    time.Now().UTC(),
		SyncStatus:    models.SyncStatePending,
	}

	if h.container.Online() {
		if err := h.client.BatchSync(c.Request.Context(), api.BatchRequest{KYCDocuments: []models.KYCDocument{doc}}); err == nil {
			doc.SyncStatus = models.SyncStateSynced
		} else {
			h.log.Warn().Err(err).Str("document_id", doc.ID).Msg("document upload failed, queueing")
		}
	}

	h.container.AddKYCDocument(doc)
	if doc.SyncStatus == models.SyncStatePending && h.container.Online() {
		// the container only queues offline adds; a failed online upload
		// needs its queue item written explicitly
		if data, err := json.Marshal(doc); err == nil {
			h.container.AddToSyncQueue(models.SyncItemKYC, models.SyncActionCreate, data)
		}
	}
	if err := h.records.CreateKYCDocument(c.Request.Context(), doc); err != nil {
		h.log.Error().Err(err).Str("document_id", doc.ID).Msg("failed to persist kyc document")
	}
	respond(c, http.StatusCreated, doc)
}

func (h *KYCHandler) list(c *gin.Context) {
	docs := h.container.KYCDocuments()
	if len(docs) == 0 {
		stored, err := h.records.KYCDocumentsByUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
		if err != nil {
			middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to load documents"))
			return
		}
		docs = stored
	}
	respond(c, http.StatusOK, docs)
}
