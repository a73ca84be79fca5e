// Package state holds the observable application state: connectivity and
// auth flags, the signed-in user, local transactions and KYC documents, the
// exchange-rate cache and the sync queue. The container's mutex is the
// serialization boundary; every read hands out value copies and every
// mutation persists a fresh snapshot.
package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
)

// PostureChecker reports the device/host security posture at startup.
type PostureChecker interface {
	Check(ctx context.Context) (models.SecurityCheck, error)
}

type Container struct {
	mu        sync.Mutex
	log       zerolog.Logger
	snapshots SnapshotStore

	online        bool
	authenticated bool
	user          *models.User
	transactions  []models.Transaction
	kycDocuments  []models.KYCDocument
	rates         []models.ExchangeRate
	queue         *SyncQueue

	// fired async on every offline-to-online transition
	syncTrigger func()
}

func NewContainer(snapshots SnapshotStore, log zerolog.Logger) *Container {
	if snapshots == nil {
		snapshots = NoopSnapshotStore{}
	}
	return &Container{
		log:       log,
		snapshots: snapshots,
		queue:     NewSyncQueue(),
	}
}

// SetSyncTrigger registers the callback fired when connectivity returns.
// Must be called before the monitor starts pushing status changes.
func (c *Container) SetSyncTrigger(fn func()) {
	c.mu.Lock()
	c.syncTrigger = fn
	c.mu.Unlock()
}

// Initialize runs the boot sequence: posture check first, then snapshot
// restore. A compromised posture aborts startup; this is the one fatal path.
func (c *Container) Initialize(ctx context.Context, posture PostureChecker) error {
	if posture != nil {
		check, err := posture.Check(ctx)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "security posture check failed")
		}
		if check.Compromised() {
			return apperrors.New(apperrors.ErrCodeSecurityViolation, "device integrity check failed")
		}
	}

	snap, ok, err := c.snapshots.Load()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSnapshot, "failed to restore state snapshot")
	}
	if !ok {
		return nil
	}

	c.mu.Lock()
	c.user = snap.User
	c.authenticated = snap.User != nil
	c.transactions = snap.Transactions
	c.kycDocuments = snap.KYCDocuments
	c.rates = snap.ExchangeRates
	c.queue.Restore(snap.SyncQueue)
	c.mu.Unlock()

	c.log.Info().
		Int("transactions", len(snap.Transactions)).
		Int("queued", len(snap.SyncQueue)).
		Msg("state restored from snapshot")
	return nil
}

// persistLocked writes the current snapshot. Callers hold c.mu. Persistence
// failures are logged, never propagated; in-memory state stays authoritative.
func (c *Container) persistLocked() {
	snap := Snapshot{
		User:          c.user,
		Transactions:  append([]models.Transaction(nil), c.transactions...),
		KYCDocuments:  append([]models.KYCDocument(nil), c.kycDocuments...),
		ExchangeRates: append([]models.ExchangeRate(nil), c.rates...),
		SyncQueue:     c.queue.Snapshot(),
	}
	if err := c.snapshots.Save(snap); err != nil {
		c.log.Error().Err(err).Msg("failed to persist state snapshot")
	}
}

// --- connectivity ---

// SetOnlineStatus records the connectivity flag. The registered sync trigger
// fires asynchronously on each offline-to-online edge, never on the reverse
// edge or a repeated reading.
func (c *Container) SetOnlineStatus(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	trigger := c.syncTrigger
	c.mu.Unlock()

	if online && !wasOnline {
		c.log.Info().Msg("connectivity restored")
		if trigger != nil {
			go trigger()
		}
	}
	if !online && wasOnline {
		c.log.Warn().Msg("connectivity lost")
	}
}

func (c *Container) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// --- auth / user ---

func (c *Container) SetAuthenticated(authenticated bool) {
	c.mu.Lock()
	c.authenticated = authenticated
	c.mu.Unlock()
}

func (c *Container) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *Container) SetUser(user models.User) {
	c.mu.Lock()
	c.user = &user
	c.persistLocked()
	c.mu.Unlock()
}

func (c *Container) User() (models.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return models.User{}, false
	}
	return *c.user, true
}

// --- transactions ---

// AddTransaction prepends the transaction to local state. When offline the
// matching queue item is written under the same lock hold, so state and
// queue can never disagree about a pending transfer.
func (c *Container) AddTransaction(tx models.Transaction) (models.SyncItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transactions = append([]models.Transaction{tx}, c.transactions...)

	var item models.SyncItem
	queued := false
	if !c.online {
		data, err := json.Marshal(tx)
		if err != nil {
			c.log.Error().Err(err).Str("transaction_id", tx.ID).Msg("failed to marshal transaction for queue")
		} else {
			item = c.queue.Enqueue(models.SyncItemTransaction, models.SyncActionCreate, data)
			queued = true
		}
	}
	c.persistLocked()
	return item, queued
}

func (c *Container) UpdateTransaction(id string, update models.TransactionUpdate) (models.Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.transactions {
		if c.transactions[i].ID == id {
			update.Apply(&c.transactions[i])
			tx := c.transactions[i]
			c.persistLocked()
			return tx, true
		}
	}
	return models.Transaction{}, false
}

func (c *Container) TransactionByID(id string) (models.Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tx := range c.transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return models.Transaction{}, false
}

// Transactions returns the local transactions, newest first.
func (c *Container) Transactions() []models.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Transaction, len(c.transactions))
	copy(out, c.transactions)
	return out
}

// TransactionsByStatus filters the local transactions.
func (c *Container) TransactionsByStatus(status models.TransactionStatus) []models.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Transaction
	for _, tx := range c.transactions {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out
}

// --- kyc documents ---

// AddKYCDocument stores the document locally and, when offline, enqueues
// its upload under the same lock hold.
func (c *Container) AddKYCDocument(doc models.KYCDocument) (models.SyncItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.kycDocuments = append(c.kycDocuments, doc)

	var item models.SyncItem
	queued := false
	if !c.online {
		data, err := json.Marshal(doc)
		if err != nil {
			c.log.Error().Err(err).Str("document_id", doc.ID).Msg("failed to marshal kyc document for queue")
		} else {
			item = c.queue.Enqueue(models.SyncItemKYC, models.SyncActionCreate, data)
			queued = true
		}
	}
	c.persistLocked()
	return item, queued
}

func (c *Container) UpdateKYCDocument(id string, update models.KYCDocumentUpdate) (models.KYCDocument, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.kycDocuments {
		if c.kycDocuments[i].ID == id {
			update.Apply(&c.kycDocuments[i])
			doc := c.kycDocuments[i]
			c.persistLocked()
			return doc, true
		}
	}
	return models.KYCDocument{}, false
}

func (c *Container) KYCDocuments() []models.KYCDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.KYCDocument, len(c.kycDocuments))
	copy(out, c.kycDocuments)
	return out
}

// --- exchange rates ---

func (c *Container) SetExchangeRates(rates []models.ExchangeRate) {
	c.mu.Lock()
	c.rates = append([]models.ExchangeRate(nil), rates...)
	c.persistLocked()
	c.mu.Unlock()
}

func (c *Container) ExchangeRates() []models.ExchangeRate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ExchangeRate, len(c.rates))
	copy(out, c.rates)
	return out
}

// --- sync queue ---

func (c *Container) AddToSyncQueue(itemType models.SyncItemType, action models.SyncAction, data json.RawMessage) models.SyncItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	item := c.queue.Enqueue(itemType, action, data)
	c.persistLocked()
	return item
}

// PushSyncItem re-enqueues an existing item, keeping its id and retry count.
func (c *Container) PushSyncItem(item models.SyncItem) {
	c.mu.Lock()
	c.queue.Push(item)
	c.persistLocked()
	c.mu.Unlock()
}

func (c *Container) RemoveFromSyncQueue(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.queue.Dequeue(id)
	if removed {
		c.persistLocked()
	}
	return removed
}

func (c *Container) IncrementSyncRetry(id string) (models.SyncItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.queue.IncrementRetry(id)
	if ok {
		c.persistLocked()
	}
	return item, ok
}

func (c *Container) SyncItemByID(id string) (models.SyncItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.ItemByID(id)
}

// PendingSyncItems returns the queued items in FIFO order.
func (c *Container) PendingSyncItems() []models.SyncItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Snapshot()
}

func (c *Container) PendingSyncCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

func (c *Container) ClearSyncQueue() {
	c.mu.Lock()
	c.queue.Clear()
	c.persistLocked()
	c.mu.Unlock()
}

// --- session ---

// Logout resets the session: auth flag, user, transactions, documents and
// queue are dropped. The rate cache survives so the next session starts
// with usable conversion figures.
func (c *Container) Logout() {
	c.mu.Lock()
	c.authenticated = false
	c.user = nil
	c.transactions = nil
	c.kycDocuments = nil
	c.queue.Clear()
	c.persistLocked()
	c.mu.Unlock()
	c.log.Info().Msg("session cleared")
}
