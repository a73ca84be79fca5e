// Package syncer drains the offline mutation queue against the remote
// authority. A drain runs at most once at a time, replays items in FIFO
// order and walks each failed item through retry backoff until it either
// lands or is dead-lettered.
package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store"
)

// Status is the externally visible drain summary.
type Status struct {
	Pending    int  `json:"pending"`
	Online     bool `json:"online"`
	InProgress bool `json:"inProgress"`
}

type Synchronizer struct {
	container *state.Container
	records   store.RecordStore
	client    api.Client
	log       zerolog.Logger

	maxRetries int
	baseDelay  time.Duration

	// schedule defers a retry; swapped out in tests
	schedule func(d time.Duration, fn func())

	mu         sync.Mutex
	inProgress bool
}

func New(container *state.Container, records store.RecordStore, client api.Client, maxRetries int, baseDelay time.Duration, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		container:  container,
		records:    records,
		client:     client,
		log:        log,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		schedule:   func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// SetScheduler replaces the retry scheduler. Tests use it to capture delays
// instead of sleeping through them.
func (s *Synchronizer) SetScheduler(fn func(d time.Duration, fn func())) {
	s.schedule = fn
}

func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	inProgress := s.inProgress
	s.mu.Unlock()
	return Status{
		Pending:    s.container.PendingSyncCount(),
		Online:     s.container.Online(),
		InProgress: inProgress,
	}
}

// SyncPendingItems drains the queue once. A second call while a drain is
// running returns immediately; so does a call while offline. Individual
// item failures are contained and never stop the pass.
func (s *Synchronizer) SyncPendingItems(ctx context.Context) error {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return nil
	}
	s.inProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inProgress = false
		s.mu.Unlock()
	}()

	if !s.container.Online() {
		return nil
	}

	if err := s.ReconcileProcessing(ctx); err != nil {
		s.log.Error().Err(err).Msg("reconciliation failed")
	}

	items := s.container.PendingSyncItems()
	if len(items) == 0 {
		return nil
	}
	s.log.Info().Int("count", len(items)).Msg("draining sync queue")

	for _, item := range items {
		s.processItem(ctx, item)
	}
	return nil
}

// ReconcileProcessing settles transactions stuck in processing once the
// authority is reachable again. The flat promotion to completed stands in
// for a remote settlement query; it is isolated here so the lookup can be
// swapped in without touching the drain.
func (s *Synchronizer) ReconcileProcessing(ctx context.Context) error {
	completed := models.TransactionStatusCompleted
	synced := models.SyncStateSynced
	update := models.TransactionUpdate{Status: &completed, SyncStatus: &synced}

	for _, tx := range s.container.TransactionsByStatus(models.TransactionStatusProcessing) {
		if _, ok := s.container.UpdateTransaction(tx.ID, update); !ok {
			continue
		}
		if _, err := s.records.UpdateTransaction(ctx, tx.ID, update); err != nil && err != store.ErrNotFound {
			s.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to settle transaction in store")
		}
		s.log.Info().Str("transaction_id", tx.ID).Msg("transaction settled after reconnect")
	}
	return nil
}

// ForceSyncTransaction pushes one transaction immediately, bypassing the
// queue order. Unlike the background drain it reports failures to the caller.
func (s *Synchronizer) ForceSyncTransaction(ctx context.Context, id string) error {
	if !s.container.Online() {
		return apperrors.New(apperrors.ErrCodeOffline, "cannot sync while offline")
	}
	tx, ok := s.container.TransactionByID(id)
	if !ok {
		return apperrors.Newf(apperrors.ErrCodeNotFound, "transaction %s not found", id)
	}

	// prefer the queued item so a success also clears the queue
	for _, item := range s.container.PendingSyncItems() {
		if item.Type != models.SyncItemTransaction {
			continue
		}
		var queued models.Transaction
		if err := json.Unmarshal(item.Data, &queued); err != nil {
			continue
		}
		if queued.ID == id {
			if err := s.handleItem(ctx, item); err != nil {
				return err
			}
			s.container.RemoveFromSyncQueue(item.ID)
			return nil
		}
	}

	if tx.SyncStatus == models.SyncStateSynced {
		return nil
	}
	if _, err := s.client.CreateTransaction(ctx, tx); err != nil {
		return err
	}
	s.markTransactionSynced(ctx, tx.ID)
	return nil
}

// RetryFailedSyncItems moves every dead letter back onto the live queue
// with a fresh retry budget, then runs a drain.
func (s *Synchronizer) RetryFailedSyncItems(ctx context.Context) error {
	items, err := s.records.FailedSyncItems(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to load dead letters")
	}
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		item.RetryCount = 0
		item.Status = models.SyncItemStatusPending
		s.container.PushSyncItem(item)
	}
	if err := s.records.ClearFailedSyncItems(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStorage, "failed to clear dead letters")
	}
	s.log.Info().Int("count", len(items)).Msg("dead letters re-enqueued")
	return s.SyncPendingItems(ctx)
}

func (s *Synchronizer) ClearFailedSyncItems(ctx context.Context) error {
	return s.records.ClearFailedSyncItems(ctx)
}

// processItem runs one item to a terminal outcome for this pass: dequeue on
// success, retry bookkeeping on failure. Never returns an error; the drain
// must survive any single item.
func (s *Synchronizer) processItem(ctx context.Context, item models.SyncItem) {
	err := s.handleItem(ctx, item)
	if err == nil {
		s.container.RemoveFromSyncQueue(item.ID)
		return
	}
	s.log.Warn().Err(err).Str("item_id", item.ID).Str("type", string(item.Type)).Msg("sync item failed")
	if !apperrors.IsTransientErr(err) {
		// a malformed payload or rejected request cannot succeed on replay
		s.deadLetter(ctx, item, err)
		return
	}
	s.handleFailure(ctx, item)
}

// handleFailure either schedules a delayed re-attempt or dead-letters the
// item. The decision and the delay both use the retry count the failure
// arrived with; the counter is bumped afterwards, so an item gets exactly
// maxRetries retries on top of the initial attempt and the delay doubles
// from baseDelay upwards.
func (s *Synchronizer) handleFailure(ctx context.Context, item models.SyncItem) {
	if item.RetryCount >= s.maxRetries {
		exhausted := apperrors.Newf(apperrors.ErrCodeRetryExhausted, "gave up after %d retries", item.RetryCount).
			WithContext("item_id", item.ID)
		s.deadLetter(ctx, item, exhausted)
		return
	}

	delay := s.baseDelay * (1 << item.RetryCount)
	updated, ok := s.container.IncrementSyncRetry(item.ID)
	if !ok {
		return
	}

	s.log.Info().Str("item_id", updated.ID).Dur("delay", delay).Int("retry", updated.RetryCount).Msg("retry scheduled")
	id := updated.ID
	s.schedule(delay, func() {
		// re-read at fire time; the item may have drained or been cleared
		current, ok := s.container.SyncItemByID(id)
		if !ok || !s.container.Online() {
			return
		}
		s.processItem(context.Background(), current)
	})
}

func (s *Synchronizer) deadLetter(ctx context.Context, item models.SyncItem, cause error) {
	item.Status = models.SyncItemStatusDeadLetter
	if err := s.records.StoreFailedSyncItem(ctx, item); err != nil {
		s.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to dead-letter sync item")
	}
	s.container.RemoveFromSyncQueue(item.ID)
	s.log.Error().Err(cause).Str("item_id", item.ID).Int("retries", item.RetryCount).Msg("sync item dead-lettered")
}

func (s *Synchronizer) handleItem(ctx context.Context, item models.SyncItem) error {
	switch item.Type {
	case models.SyncItemTransaction:
		return s.syncTransaction(ctx, item)
	case models.SyncItemKYC:
		return s.syncKYCDocument(ctx, item)
	case models.SyncItemUser:
		return s.syncUser(ctx, item)
	case models.SyncItemNotification:
		// no remote effect required; the item only records intent
		return nil
	default:
		s.log.Warn().Str("item_id", item.ID).Str("type", string(item.Type)).Msg("unknown sync item type, dropping")
		return nil
	}
}

func (s *Synchronizer) syncTransaction(ctx context.Context, item models.SyncItem) error {
	var tx models.Transaction
	if err := json.Unmarshal(item.Data, &tx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "malformed transaction payload")
	}

	switch item.Action {
	case models.SyncActionUpdate:
		update := models.TransactionUpdate{
			Status:      &tx.Status,
			Description: &tx.Description,
		}
		if _, err := s.client.UpdateTransaction(ctx, tx.ID, update); err != nil {
			return err
		}
	default:
		// a transaction settled by reconciliation needs no remote create
		if current, ok := s.container.TransactionByID(tx.ID); ok && current.SyncStatus == models.SyncStateSynced {
			return nil
		}
		if _, err := s.client.CreateTransaction(ctx, tx); err != nil {
			return err
		}
	}

	s.markTransactionSynced(ctx, tx.ID)
	return nil
}

func (s *Synchronizer) markTransactionSynced(ctx context.Context, id string) {
	synced := models.SyncStateSynced
	update := models.TransactionUpdate{SyncStatus: &synced}
	s.container.UpdateTransaction(id, update)
	if _, err := s.records.UpdateTransaction(ctx, id, update); err != nil && err != store.ErrNotFound {
		s.log.Error().Err(err).Str("transaction_id", id).Msg("failed to mark transaction synced in store")
	}
}

func (s *Synchronizer) syncKYCDocument(ctx context.Context, item models.SyncItem) error {
	var doc models.KYCDocument
	if err := json.Unmarshal(item.Data, &doc); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "malformed kyc payload")
	}
	if err := s.client.BatchSync(ctx, api.BatchRequest{KYCDocuments: []models.KYCDocument{doc}}); err != nil {
		return err
	}

	synced := models.SyncStateSynced
	update := models.KYCDocumentUpdate{SyncStatus: &synced}
	s.container.UpdateKYCDocument(doc.ID, update)
	if _, err := s.records.UpdateKYCDocument(ctx, doc.ID, update); err != nil && err != store.ErrNotFound {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("failed to mark document synced in store")
	}
	return nil
}

func (s *Synchronizer) syncUser(ctx context.Context, item models.SyncItem) error {
	var user models.User
	if err := json.Unmarshal(item.Data, &user); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "malformed user payload")
	}
	return s.client.BatchSync(ctx, api.BatchRequest{UserUpdates: []models.User{user}})
}
