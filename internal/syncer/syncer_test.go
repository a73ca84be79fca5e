package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaudi-finance-backend/internal/api"
	apperrors "jaudi-finance-backend/internal/common/errors"
	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/state"
	"jaudi-finance-backend/internal/store/memory"
)

type fakeClient struct {
	mu          sync.Mutex
	failIDs     map[string]bool
	failAll     bool
	createCalls []string
	updateCalls []string
	batchCalls  int
	block       chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{failIDs: map[string]bool{}}
}

func (f *fakeClient) CreateTransaction(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failIDs[tx.ID] {
		f.createCalls = append(f.createCalls, tx.ID)
		return models.Transaction{}, apperrors.New(apperrors.ErrCodeRemoteAPI, "remote rejected")
	}
	f.createCalls = append(f.createCalls, tx.ID)
	return tx, nil
}

func (f *fakeClient) UpdateTransaction(_ context.Context, id string, _ models.TransactionUpdate) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failIDs[id] {
		return models.Transaction{}, apperrors.New(apperrors.ErrCodeRemoteAPI, "remote rejected")
	}
	f.updateCalls = append(f.updateCalls, id)
	return models.Transaction{ID: id}, nil
}

func (f *fakeClient) BatchSync(context.Context, api.BatchRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return apperrors.New(apperrors.ErrCodeRemoteAPI, "remote rejected")
	}
	f.batchCalls++
	return nil
}

func (f *fakeClient) Login(context.Context, string, string) (api.LoginResult, error) {
	return api.LoginResult{}, nil
}
func (f *fakeClient) Register(context.Context, api.RegisterRequest) (api.LoginResult, error) {
	return api.LoginResult{}, nil
}
func (f *fakeClient) GetTransactions(context.Context) ([]models.Transaction, error) { return nil, nil }
func (f *fakeClient) GetExchangeRates(context.Context) ([]models.ExchangeRate, error) {
	return nil, nil
}
func (f *fakeClient) RegisterFCMToken(context.Context, string) error { return nil }
func (f *fakeClient) HealthCheck(context.Context) bool               { return true }
func (f *fakeClient) SetAuthToken(string)                            {}

func (f *fakeClient) creates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.createCalls...)
}

type fixture struct {
	container *state.Container
	records   *memory.Store
	client    *fakeClient
	sync      *Synchronizer
	delays    []time.Duration
	retries   []func()
	mu        sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		container: state.NewContainer(state.NoopSnapshotStore{}, zerolog.Nop()),
		records:   memory.New(),
		client:    newFakeClient(),
	}
	f.sync = New(f.container, f.records, f.client, 3, 5*time.Second, zerolog.Nop())
	f.sync.SetScheduler(func(d time.Duration, fn func()) {
		f.mu.Lock()
		f.delays = append(f.delays, d)
		f.retries = append(f.retries, fn)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) fireNextRetry(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	require.NotEmpty(t, f.retries)
	fn := f.retries[len(f.retries)-1]
	f.mu.Unlock()
	fn()
}

func enqueueTransaction(t *testing.T, c *state.Container, id string) models.SyncItem {
	t.Helper()
	tx := models.Transaction{ID: id, UserID: "user-1", Amount: 10, Status: models.TransactionStatusProcessing, SyncStatus: models.SyncStatePending}
	data, err := json.Marshal(tx)
	require.NoError(t, err)
	return c.AddToSyncQueue(models.SyncItemTransaction, models.SyncActionCreate, data)
}

func TestDrainProcessesFIFO(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	enqueueTransaction(t, f.container, "txn-a")
	enqueueTransaction(t, f.container, "txn-b")
	enqueueTransaction(t, f.container, "txn-c")

	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Equal(t, []string{"txn-a", "txn-b", "txn-c"}, f.client.creates())
	assert.Zero(t, f.container.PendingSyncCount())
}

func TestDrainSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)
	enqueueTransaction(t, f.container, "txn-a")

	f.client.block = make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = f.sync.SyncPendingItems(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return f.sync.Status().InProgress }, time.Second, time.Millisecond)

	// concurrent call is a no-op while the first drain holds the guard
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))
	assert.Empty(t, f.client.creates())

	close(f.client.block)
	<-done
	f.client.block = nil

	assert.Equal(t, []string{"txn-a"}, f.client.creates())
	assert.False(t, f.sync.Status().InProgress)
}

func TestDrainSkipsWhenOffline(t *testing.T) {
	f := newFixture(t)
	enqueueTransaction(t, f.container, "txn-a")

	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Empty(t, f.client.creates())
	assert.Equal(t, 1, f.container.PendingSyncCount())
}

func TestRetryBackoffDoublesThenDeadLetters(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)
	f.client.failAll = true

	item := enqueueTransaction(t, f.container, "txn-a")

	// initial failure arrives with retryCount 0: first retry after baseDelay
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))
	require.Len(t, f.delays, 1)
	assert.Equal(t, 5*time.Second, f.delays[0])
	assert.Equal(t, 1, f.container.PendingSyncCount())

	// each further failure doubles the delay
	f.fireNextRetry(t)
	require.Len(t, f.delays, 2)
	assert.Equal(t, 10*time.Second, f.delays[1])

	f.fireNextRetry(t)
	require.Len(t, f.delays, 3)
	assert.Equal(t, 20*time.Second, f.delays[2])

	// the failure arriving with retryCount 3 dead-letters instead of retrying
	f.fireNextRetry(t)
	require.Len(t, f.delays, 3)

	// initial attempt plus three retries hit the remote
	assert.Len(t, f.client.creates(), 4)
	assert.Zero(t, f.container.PendingSyncCount())
	dead, err := f.records.FailedSyncItems(context.Background())
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, item.ID, dead[0].ID)
	assert.Equal(t, 3, dead[0].RetryCount)
	assert.Equal(t, models.SyncItemStatusDeadLetter, dead[0].Status)
}

func TestMalformedItemDeadLettersWithoutRetry(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	f.container.AddToSyncQueue(models.SyncItemTransaction, models.SyncActionCreate, json.RawMessage(`not json`))
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Empty(t, f.delays)
	assert.Zero(t, f.container.PendingSyncCount())
	dead, err := f.records.FailedSyncItems(context.Background())
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, models.SyncItemStatusDeadLetter, dead[0].Status)
	assert.Zero(t, dead[0].RetryCount)
}

func TestRetrySkipsDrainedItem(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)
	f.client.failAll = true

	item := enqueueTransaction(t, f.container, "txn-a")
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))
	require.Len(t, f.retries, 1)

	// the item drains through another path before the retry fires
	f.container.RemoveFromSyncQueue(item.ID)
	before := len(f.client.creates())
	f.fireNextRetry(t)
	assert.Equal(t, before, len(f.client.creates()))
}

func TestFailureOfOneItemDoesNotStopDrain(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)
	f.client.failIDs["txn-bad"] = true

	enqueueTransaction(t, f.container, "txn-bad")
	enqueueTransaction(t, f.container, "txn-good")

	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Equal(t, []string{"txn-bad", "txn-good"}, f.client.creates())
	assert.Equal(t, 1, f.container.PendingSyncCount())
}

func TestReconcileProcessingSettlesTransactions(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	tx := models.Transaction{ID: "txn-a", UserID: "user-1", Status: models.TransactionStatusProcessing, SyncStatus: models.SyncStatePending}
	f.container.AddTransaction(tx)
	require.NoError(t, f.records.CreateTransaction(context.Background(), tx))

	require.NoError(t, f.sync.ReconcileProcessing(context.Background()))

	got, ok := f.container.TransactionByID("txn-a")
	require.True(t, ok)
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.Equal(t, models.SyncStateSynced, got.SyncStatus)

	stored, err := f.records.TransactionByID(context.Background(), "txn-a")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)
	assert.Equal(t, models.SyncStateSynced, stored.SyncStatus)
}

func TestReconnectDrainSettlesQueuedTransfer(t *testing.T) {
	f := newFixture(t)

	// created offline: processing in state, matching queue item
	tx := models.Transaction{ID: "txn-a", UserID: "user-1", Status: models.TransactionStatusProcessing, SyncStatus: models.SyncStatePending}
	item, queued := f.container.AddTransaction(tx)
	require.True(t, queued)
	require.NoError(t, f.records.CreateTransaction(context.Background(), tx))

	f.container.SetOnlineStatus(true)
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	// reconciliation settled the transaction, so the queued create passed
	// through without a remote call
	assert.Empty(t, f.client.creates())
	assert.Zero(t, f.container.PendingSyncCount())
	_, stillQueued := f.container.SyncItemByID(item.ID)
	assert.False(t, stillQueued)

	got, _ := f.container.TransactionByID("txn-a")
	assert.Equal(t, models.TransactionStatusCompleted, got.Status)
	assert.Equal(t, models.SyncStateSynced, got.SyncStatus)
}

func TestUnknownItemTypeRemoved(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	f.container.AddToSyncQueue("mystery", models.SyncActionCreate, json.RawMessage(`{}`))
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Zero(t, f.container.PendingSyncCount())
}

func TestNotificationItemPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	f.container.AddToSyncQueue(models.SyncItemNotification, models.SyncActionRegisterToken, json.RawMessage(`{"token":"abc"}`))
	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Zero(t, f.container.PendingSyncCount())
}

func TestKYCItemBatchSyncsAndMarksSynced(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	doc := models.KYCDocument{ID: "doc-1", UserID: "user-1", Status: models.KYCStatusPending, SyncStatus: models.SyncStatePending}
	f.container.AddKYCDocument(doc)
	require.NoError(t, f.records.CreateKYCDocument(context.Background(), doc))

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	f.container.AddToSyncQueue(models.SyncItemKYC, models.SyncActionCreate, data)

	require.NoError(t, f.sync.SyncPendingItems(context.Background()))

	assert.Equal(t, 1, f.client.batchCalls)
	docs := f.container.KYCDocuments()
	require.Len(t, docs, 1)
	assert.Equal(t, models.SyncStateSynced, docs[0].SyncStatus)
}

func TestForceSyncTransactionOffline(t *testing.T) {
	f := newFixture(t)
	err := f.sync.ForceSyncTransaction(context.Background(), "txn-a")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeOffline, apperrors.CodeOf(err))
}

func TestForceSyncTransactionNotFound(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)
	err := f.sync.ForceSyncTransaction(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func TestForceSyncTransactionDrainsQueuedItem(t *testing.T) {
	f := newFixture(t)

	tx := models.Transaction{ID: "txn-a", UserID: "user-1", Status: models.TransactionStatusProcessing, SyncStatus: models.SyncStatePending}
	f.container.AddTransaction(tx)
	f.container.SetOnlineStatus(true)

	require.NoError(t, f.sync.ForceSyncTransaction(context.Background(), "txn-a"))

	assert.Equal(t, []string{"txn-a"}, f.client.creates())
	assert.Zero(t, f.container.PendingSyncCount())
	got, _ := f.container.TransactionByID("txn-a")
	assert.Equal(t, models.SyncStateSynced, got.SyncStatus)
}

func TestRetryFailedSyncItemsReplaysDeadLetters(t *testing.T) {
	f := newFixture(t)
	f.container.SetOnlineStatus(true)

	tx := models.Transaction{ID: "txn-a", UserID: "user-1"}
	data, err := json.Marshal(tx)
	require.NoError(t, err)
	dead := models.SyncItem{
		ID:         "sync-dead",
		Type:       models.SyncItemTransaction,
		Action:     models.SyncActionCreate,
		Data:       data,
		Timestamp:  time.Now().UTC(),
		RetryCount: 3,
		Status:     models.SyncItemStatusDeadLetter,
	}
	require.NoError(t, f.records.StoreFailedSyncItem(context.Background(), dead))

	require.NoError(t, f.sync.RetryFailedSyncItems(context.Background()))

	assert.Equal(t, []string{"txn-a"}, f.client.creates())
	assert.Zero(t, f.container.PendingSyncCount())
	remaining, err := f.records.FailedSyncItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
