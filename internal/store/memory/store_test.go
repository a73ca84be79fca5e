package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/store"
)

func seedTransaction(id, userID string, amount float64, status models.TransactionStatus, createdAt time.Time) models.Transaction {
	return models.Transaction{
		ID:             id,
		UserID:         userID,
		RecipientName:  "Fatmata Sesay",
		RecipientPhone: "+23277111222",
		Amount:         amount,
		Fee:            amount * 0.02,
		Currency:       "USD",
		Status:         status,
		Reference:      id,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestUserCRUD(t *testing.T) {
	s := New()
	ctx := context.Background()

	user := models.User{ID: "user-1", Email: "Ada@Example.com"}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.ErrorIs(t, s.CreateUser(ctx, user), store.ErrDuplicate)

	got, err := s.UserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	// email lookup is case-insensitive
	got, err = s.UserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	newPhone := "+23278000111"
	updated, err := s.UpdateUser(ctx, "user-1", models.UserUpdate{PhoneNumber: &newPhone})
	require.NoError(t, err)
	assert.Equal(t, newPhone, updated.PhoneNumber)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionsByUserNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-old", "user-1", 10, models.TransactionStatusCompleted, base.Add(-time.Hour))))
	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-new", "user-1", 20, models.TransactionStatusCompleted, base)))
	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-other", "user-2", 30, models.TransactionStatusCompleted, base)))

	txs, err := s.TransactionsByUser(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "txn-new", txs[0].ID)
	assert.Equal(t, "txn-old", txs[1].ID)

	limited, err := s.TransactionsByUser(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTransactionUpdateAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-1", "user-1", 10, models.TransactionStatusProcessing, time.Now().UTC())))

	completed := models.TransactionStatusCompleted
	synced := models.SyncStateSynced
	updated, err := s.UpdateTransaction(ctx, "txn-1", models.TransactionUpdate{Status: &completed, SyncStatus: &synced})
	require.NoError(t, err)
	assert.Equal(t, completed, updated.Status)
	assert.Equal(t, synced, updated.SyncStatus)

	require.NoError(t, s.DeleteTransaction(ctx, "txn-1"))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "txn-1"), store.ErrNotFound)
}

func TestSearchTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := seedTransaction("txn-1", "user-1", 10, models.TransactionStatusCompleted, time.Now().UTC())
	tx.RecipientName = "Mohamed Conteh"
	require.NoError(t, s.CreateTransaction(ctx, tx))

	byName, err := s.SearchTransactions(ctx, "user-1", "conteh")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	byRef, err := s.SearchTransactions(ctx, "user-1", "txn-1")
	require.NoError(t, err)
	assert.Len(t, byRef, 1)

	none, err := s.SearchTransactions(ctx, "user-1", "nomatch")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-1", "user-1", 100, models.TransactionStatusCompleted, now)))
	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-2", "user-1", 50, models.TransactionStatusFailed, now)))
	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-3", "user-1", 25, models.TransactionStatusProcessing, now)))

	stats, err := s.TransactionStats(ctx, "user-1", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalTransactions)
	assert.Equal(t, 1, stats.SuccessfulTransactions)
	assert.Equal(t, 1, stats.FailedTransactions)
	assert.Equal(t, 100.0, stats.TotalAmount)
}

func TestExchangeRateCache(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveExchangeRate(ctx, models.ExchangeRate{FromCurrency: "USD", ToCurrency: "SLE", Rate: 22.5}))
	require.NoError(t, s.SaveExchangeRate(ctx, models.ExchangeRate{FromCurrency: "EUR", ToCurrency: "SLE", Rate: 24.75}))
	// overwrite is a replace, not a second entry
	require.NoError(t, s.SaveExchangeRate(ctx, models.ExchangeRate{FromCurrency: "USD", ToCurrency: "SLE", Rate: 23.0}))

	all, err := s.ExchangeRates(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	usd, err := s.ExchangeRates(ctx, "USD", "SLE")
	require.NoError(t, err)
	require.Len(t, usd, 1)
	assert.Equal(t, 23.0, usd[0].Rate)
}

func TestFailedSyncItems(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := models.SyncItem{ID: "sync-1", Type: models.SyncItemTransaction, Status: models.SyncItemStatusDeadLetter, RetryCount: 3}
	require.NoError(t, s.StoreFailedSyncItem(ctx, item))

	items, err := s.FailedSyncItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.SyncItemStatusDeadLetter, items[0].Status)

	require.NoError(t, s.ClearFailedSyncItems(ctx))
	items, err = s.FailedSyncItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWipeRetainsRates(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, models.User{ID: "user-1", Email: "a@b.c"}))
	require.NoError(t, s.CreateTransaction(ctx, seedTransaction("txn-1", "user-1", 10, models.TransactionStatusCompleted, time.Now().UTC())))
	require.NoError(t, s.SaveExchangeRate(ctx, models.ExchangeRate{FromCurrency: "USD", ToCurrency: "SLE", Rate: 22.5}))

	require.NoError(t, s.Wipe(ctx))

	_, err := s.UserByID(ctx, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.TransactionByID(ctx, "txn-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rates, err := s.ExchangeRates(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, rates, 1)
}
