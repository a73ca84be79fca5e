// Package transfer creates and manages money transfers. Online creations
// settle against the remote authority immediately; offline creations are
// parked as processing and queued for replay.
package transfer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/rates"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
)

// feeRate is the flat transfer fee fraction.
const feeRate = 0.02

// CreateInput is the caller-supplied part of a new transfer.
type CreateInput struct {
	RecipientName  string  `json:"recipientName" binding:"required"`
	RecipientPhone string  `json:"recipientPhone" binding:"required"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	Currency       string  `json:"currency" binding:"required"`
	Description    string  `json:"description"`
}

// Quote is the price breakdown shown before confirmation.
type Quote struct {
	Amount       float64 `json:"amount"`
	Fee          float64 `json:"fee"`
	TotalAmount  float64 `json:"totalAmount"`
	ExchangeRate float64 `json:"exchangeRate"`
	Converted    float64 `json:"converted"`
	Currency     string  `json:"currency"`
}

type Service struct {
	container *state.Container
	records   store.RecordStore
	client    api.Client
	rates     *rates.Service
	base      string
	log       zerolog.Logger
}

func NewService(container *state.Container, records store.RecordStore, client api.Client, rateSvc *rates.Service, baseCurrency string, log zerolog.Logger) *Service {
	return &Service{
		container: container,
		records:   records,
		client:    client,
		rates:     rateSvc,
		base:      baseCurrency,
		log:       log,
	}
}

// QuoteTransfer prices a prospective transfer without creating anything.
func (s *Service) QuoteTransfer(ctx context.Context, amount float64, currency string) (Quote, error) {
	if amount <= 0 {
		return Quote{}, apperrors.New(apperrors.ErrCodeValidation, "amount must be positive")
	}
	rate, err := s.rates.Rate(ctx, currency, s.base)
	if err != nil {
		return Quote{}, err
	}
	fee := amount * feeRate
	return Quote{
		Amount:       amount,
		Fee:          fee,
		TotalAmount:  amount + fee,
		ExchangeRate: rate.Rate,
		Converted:    amount * rate.Rate,
		Currency:     currency,
	}, nil
}

// Create builds the transaction locally first, then settles it remotely
// when the authority is reachable. A remote failure during an online create
// degrades to the offline path instead of losing the transfer.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (models.Transaction, error) {
	if input.Amount <= 0 {
		return models.Transaction{}, apperrors.New(apperrors.ErrCodeValidation, "amount must be positive")
	}
	if input.RecipientName == "" || input.RecipientPhone == "" {
		return models.Transaction{}, apperrors.New(apperrors.ErrCodeValidation, "recipient name and phone are required")
	}

	rate, err := s.rates.Rate(ctx, input.Currency, s.base)
	if err != nil {
		return models.Transaction{}, err
	}

	now := time.Now().UTC()
	fee := input.Amount * feeRate
	tx := models.Transaction{
		ID:             models.NewTransactionID(),
		UserID:         userID,
		RecipientName:  input.RecipientName,
		RecipientPhone: input.RecipientPhone,
		Amount:         input.Amount,
		Currency:       input.Currency,
		ExchangeRate:   rate.Rate,
		Fee:            fee,
		TotalAmount:    input.Amount + fee,
		Status:         models.TransactionStatusCreated,
		SyncStatus:     models.SyncStatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx.Reference = tx.ID

	if s.container.Online() {
		if _, err := s.client.CreateTransaction(ctx, tx); err == nil {
			tx.Status = models.TransactionStatusCompleted
			tx.SyncStatus = models.SyncStateSynced
			s.container.AddTransaction(tx)
			if err := s.records.CreateTransaction(ctx, tx); err != nil {
				s.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to persist completed transaction")
			}
			s.log.Info().Str("transaction_id", tx.ID).Msg("transfer settled online")
			return tx, nil
		}
		s.log.Warn().Str("transaction_id", tx.ID).Msg("remote create failed, queueing transfer")
	}

	tx.Status = models.TransactionStatusProcessing
	tx.SyncStatus = models.SyncStatePending
	s.container.AddTransaction(tx)
	if err := s.records.CreateTransaction(ctx, tx); err != nil {
		s.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to persist queued transaction")
	}
	s.log.Info().Str("transaction_id", tx.ID).Msg("transfer queued for sync")
	return tx, nil
}

// Cancel aborts a transfer that has not completed yet.
func (s *Service) Cancel(ctx context.Context, id string) (models.Transaction, error) {
	current, ok := s.container.TransactionByID(id)
	if !ok {
		stored, err := s.records.TransactionByID(ctx, id)
		if err != nil {
			return models.Transaction{}, apperrors.Newf(apperrors.ErrCodeNotFound, "transaction %s not found", id)
		}
		current = stored
	}
	if current.Terminal() {
		return models.Transaction{}, apperrors.Newf(apperrors.ErrCodeConflict, "transaction %s is already %s", id, current.Status)
	}

	cancelled := models.TransactionStatusCancelled
	update := models.TransactionUpdate{Status: &cancelled}
	updated, _ := s.container.UpdateTransaction(id, update)
	if stored, err := s.records.UpdateTransaction(ctx, id, update); err == nil {
		updated = stored
	} else if err != store.ErrNotFound {
		s.log.Error().Err(err).Str("transaction_id", id).Msg("failed to persist cancellation")
	}

	if s.container.Online() {
		if _, err := s.client.UpdateTransaction(ctx, id, update); err != nil {
			s.log.Warn().Err(err).Str("transaction_id", id).Msg("remote cancel failed, queueing")
			s.enqueueUpdate(updated)
		}
	} else {
		s.enqueueUpdate(updated)
	}
	return updated, nil
}

func (s *Service) enqueueUpdate(tx models.Transaction) {
	data, err := json.Marshal(tx)
	if err != nil {
		s.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to marshal transaction update")
		return
	}
	s.container.AddToSyncQueue(models.SyncItemTransaction, models.SyncActionUpdate, data)
}
