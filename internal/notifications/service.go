// Package notifications handles push-token registration and applies inbound
// push payloads to local state.
package notifications

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
)

type tokenPayload struct {
	Token string `json:"token"`
}

type Service struct {
	container *state.Container
	records   store.RecordStore
	client    api.Client
	log       zerolog.Logger
}

func NewService(container *state.Container, records store.RecordStore, client api.Client, log zerolog.Logger) *Service {
	return &Service{container: container, records: records, client: client, log: log}
}

// RegisterToken registers a device push token with the remote authority,
// queueing the registration when the call cannot be made or fails.
func (s *Service) RegisterToken(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "token is required")
	}

	if s.container.Online() {
		if err := s.client.RegisterFCMToken(ctx, token); err == nil {
			s.log.Info().Msg("push token registered")
			return nil
		}
		s.log.Warn().Msg("push token registration failed, queueing")
	}

	data, err := json.Marshal(tokenPayload{Token: token})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode token")
	}
	s.container.AddToSyncQueue(models.SyncItemNotification, models.SyncActionRegisterToken, data)
	return nil
}

// Apply folds an inbound push payload into local state.
func (s *Service) Apply(ctx context.Context, payload models.NotificationPayload) error {
	switch payload.Type {
	case models.NotificationTransactionUpdate:
		return s.applyTransactionUpdate(ctx, payload)
	case models.NotificationKYCUpdate:
		return s.applyKYCUpdate(ctx)
	case models.NotificationSecurityAlert:
		s.log.Warn().Str("title", payload.Title).Str("body", payload.Body).Msg("security alert received")
		return nil
	default:
		s.log.Debug().Str("type", string(payload.Type)).Msg("unhandled notification type")
		return nil
	}
}

func (s *Service) applyTransactionUpdate(ctx context.Context, payload models.NotificationPayload) error {
	if payload.TransactionID == "" {
		return apperrors.New(apperrors.ErrCodeValidation, "notification missing transaction id")
	}
	status, ok := payload.Data["status"]
	if !ok {
		return nil
	}

	newStatus := models.TransactionStatus(status)
	update := models.TransactionUpdate{Status: &newStatus}
	s.container.UpdateTransaction(payload.TransactionID, update)
	if _, err := s.records.UpdateTransaction(ctx, payload.TransactionID, update); err != nil && err != store.ErrNotFound {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to apply transaction update")
	}
	s.log.Info().Str("transaction_id", payload.TransactionID).Str("status", status).Msg("transaction updated from push")
	return nil
}

// applyKYCUpdate refreshes the user profile so a reviewed document shows up
// immediately. Offline the local copy is already the best we have.
func (s *Service) applyKYCUpdate(ctx context.Context) error {
	if !s.container.Online() {
		return nil
	}
	user, ok := s.container.User()
	if !ok {
		return nil
	}
	stored, err := s.records.UserByID(ctx, user.ID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to refresh user")
	}
	s.container.SetUser(stored)
	return nil
}
