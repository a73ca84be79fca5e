// Package memory implements the record store on plain maps. It backs tests
// and local development where no Redis is available; semantics mirror the
// Redis implementation exactly.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/store"
)

type Store struct {
	mu sync.RWMutex

	users        map[string]models.User
	emails       map[string]string
	transactions map[string]models.Transaction
	kycDocs      map[string]models.KYCDocument
	rates        map[string]models.ExchangeRate
	failedItems  []models.SyncItem
}

func New() *Store {
	return &Store{
		users:        make(map[string]models.User),
		emails:       make(map[string]string),
		transactions: make(map[string]models.Transaction),
		kycDocs:      make(map[string]models.KYCDocument),
		rates:        make(map[string]models.ExchangeRate),
	}
}

// --- users ---

func (s *Store) CreateUser(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return store.ErrDuplicate
	}
	email := strings.ToLower(user.Email)
	if _, ok := s.emails[email]; ok {
		return store.ErrDuplicate
	}
	s.users[user.ID] = user
	s.emails[email] = user.ID
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UpdateUser(_ context.Context, id string, update models.UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	update.Apply(&user)
	s.users[id] = user
	return user, nil
}

// --- transactions ---

func (s *Store) CreateTransaction(_ context.Context, tx models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[tx.ID]; ok {
		return store.ErrDuplicate
	}
	s.transactions[tx.ID] = tx
	return nil
}

func (s *Store) TransactionByID(_ context.Context, id string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (s *Store) TransactionsByUser(_ context.Context, userID string, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txs := s.userTransactionsLocked(userID)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *Store) TransactionsByStatus(_ context.Context, userID string, status models.TransactionStatus) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []models.Transaction
	for _, tx := range s.userTransactionsLocked(userID) {
		if tx.Status == status {
			matched = append(matched, tx)
		}
	}
	return matched, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id string, update models.TransactionUpdate) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	update.Apply(&tx)
	s.transactions[id] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) SearchTransactions(_ context.Context, userID, query string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query = strings.ToLower(query)
	var matched []models.Transaction
	for _, tx := range s.userTransactionsLocked(userID) {
		if strings.Contains(strings.ToLower(tx.RecipientName), query) ||
			strings.Contains(strings.ToLower(tx.Reference), query) ||
			strings.Contains(strings.ToLower(tx.RecipientPhone), query) {
			matched = append(matched, tx)
		}
	}
	return matched, nil
}

func (s *Store) TransactionStats(_ context.Context, userID string, from, to time.Time) (models.TransactionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.TransactionStats
	for _, tx := range s.userTransactionsLocked(userID) {
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		stats.TotalTransactions++
		switch tx.Status {
		case models.TransactionStatusCompleted:
			stats.SuccessfulTransactions++
			stats.TotalAmount += tx.Amount
		case models.TransactionStatusFailed, models.TransactionStatusCancelled:
			stats.FailedTransactions++
		}
	}
	return stats, nil
}

func (s *Store) userTransactionsLocked(userID string) []models.Transaction {
	var txs []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID == userID {
			txs = append(txs, tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs
}

// --- kyc documents ---

func (s *Store) CreateKYCDocument(_ context.Context, doc models.KYCDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kycDocs[doc.ID]; ok {
		return store.ErrDuplicate
	}
	s.kycDocs[doc.ID] = doc
	return nil
}

func (s *Store) KYCDocumentByID(_ context.Context, id string) (models.KYCDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.kycDocs[id]
	if !ok {
		return models.KYCDocument{}, store.ErrNotFound
	}
	return doc, nil
}

func (s *Store) KYCDocumentsByUser(_ context.Context, userID string) ([]models.KYCDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []models.KYCDocument
	for _, doc := range s.kycDocs {
		if doc.UserID == userID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadedAt.Before(docs[j].UploadedAt) })
	return docs, nil
}

func (s *Store) UpdateKYCDocument(_ context.Context, id string, update models.KYCDocumentUpdate) (models.KYCDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.kycDocs[id]
	if !ok {
		return models.KYCDocument{}, store.ErrNotFound
	}
	update.Apply(&doc)
	s.kycDocs[id] = doc
	return doc, nil
}

// --- exchange-rate cache ---

func (s *Store) SaveExchangeRate(_ context.Context, rate models.ExchangeRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rate.FromCurrency+":"+rate.ToCurrency] = rate
	return nil
}

func (s *Store) ExchangeRates(_ context.Context, from, to string) ([]models.ExchangeRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rates []models.ExchangeRate
	for _, rate := range s.rates {
		if from != "" && rate.FromCurrency != from {
			continue
		}
		if to != "" && rate.ToCurrency != to {
			continue
		}
		rates = append(rates, rate)
	}
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].FromCurrency != rates[j].FromCurrency {
			return rates[i].FromCurrency < rates[j].FromCurrency
		}
		return rates[i].ToCurrency < rates[j].ToCurrency
	})
	return rates, nil
}

// --- dead-letter store ---

func (s *Store) StoreFailedSyncItem(_ context.Context, item models.SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedItems = append(s.failedItems, item)
	return nil
}

func (s *Store) FailedSyncItems(_ context.Context) ([]models.SyncItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.SyncItem, len(s.failedItems))
	copy(items, s.failedItems)
	return items, nil
}

func (s *Store) ClearFailedSyncItems(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedItems = nil
	return nil
}

func (s *Store) Wipe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]models.User)
	s.emails = make(map[string]string)
	s.transactions = make(map[string]models.Transaction)
	s.kycDocs = make(map[string]models.KYCDocument)
	s.failedItems = nil
	return nil
}
