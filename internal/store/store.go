// Package store defines the durable record store contract: typed CRUD with
// indexed lookup for the entities the sync core persists. Implementations
// must locate records by their business identifier, apply multi-field
// updates atomically and hand out value copies only.
package store

import (
	"context"
	"errors"
	"time"

	"jaudi-finance-backend/internal/models"
)

var (
	// ErrNotFound is returned when a record with the given business
	// identifier does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when creating a record whose identifier is
	// already taken.
	ErrDuplicate = errors.New("record already exists")
)

// RecordStore is the durable store consumed by the state container, the
// synchronizer and the delivery layer.
type RecordStore interface {
	// Users
	CreateUser(ctx context.Context, user models.User) error
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (models.User, error)

	// Transactions
	CreateTransaction(ctx context.Context, tx models.Transaction) error
	TransactionByID(ctx context.Context, id string) (models.Transaction, error)
	TransactionsByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
	TransactionsByStatus(ctx context.Context, userID string, status models.TransactionStatus) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update models.TransactionUpdate) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	SearchTransactions(ctx context.Context, userID, query string) ([]models.Transaction, error)
	TransactionStats(ctx context.Context, userID string, from, to time.Time) (models.TransactionStats, error)

	// KYC documents
	CreateKYCDocument(ctx context.Context, doc models.KYCDocument) error
	KYCDocumentByID(ctx context.Context, id string) (models.KYCDocument, error)
	KYCDocumentsByUser(ctx context.Context, userID string) ([]models.KYCDocument, error)
	UpdateKYCDocument(ctx context.Context, id string, update models.KYCDocumentUpdate) (models.KYCDocument, error)

	// Exchange-rate cache
	SaveExchangeRate(ctx context.Context, rate models.ExchangeRate) error
	ExchangeRates(ctx context.Context, from, to string) ([]models.ExchangeRate, error)

	// Dead-letter store for retry-exhausted sync items.
	StoreFailedSyncItem(ctx context.Context, item models.SyncItem) error
	FailedSyncItems(ctx context.Context) ([]models.SyncItem, error)
	ClearFailedSyncItems(ctx context.Context) error

	// Maintenance; outside the hot path.
	Wipe(ctx context.Context) error
}
