// Package redis implements the record store on top of Redis. Records are
// JSON blobs keyed by entity id; secondary lookups go through index sets
// maintained alongside the blob in a single pipeline.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"jaudi-finance-backend/internal/models"
	"jaudi-finance-backend/internal/store"
)

const (
	keyPrefixUser        = "user:"
	keyPrefixUserEmail   = "user:email:"
	keyPrefixTransaction = "transaction:"
	keyPrefixKYCDoc      = "kyc:"
	keyPrefixUserTxs     = "user:transactions:"
	keyPrefixUserDocs    = "user:kyc:"
	keyPrefixRates       = "rates:"
	keyAllUsers          = "users:all"
	keyFailedSyncItems   = "sync:failed"
)

type Store struct {
	client *redis.Client

	// serializes read-modify-write updates; single process owns the data
	mu sync.Mutex
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func userKey(id string) string         { return keyPrefixUser + id }
func emailKey(email string) string     { return keyPrefixUserEmail + strings.ToLower(email) }
func transactionKey(id string) string  { return keyPrefixTransaction + id }
func kycDocKey(id string) string       { return keyPrefixKYCDoc + id }
func userTxsKey(userID string) string  { return keyPrefixUserTxs + userID }
func userDocsKey(userID string) string { return keyPrefixUserDocs + userID }
func ratesKey(from, to string) string  { return keyPrefixRates + from + ":" + to }

// --- users ---

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	exists, err := s.client.Exists(ctx, userKey(user.ID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return store.ErrDuplicate
	}
	taken, err := s.client.Exists(ctx, emailKey(user.Email)).Result()
	if err != nil {
		return err
	}
	if taken > 0 {
		return store.ErrDuplicate
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, userKey(user.ID), data, 0)
	pipe.Set(ctx, emailKey(user.Email), user.ID, 0)
	pipe.SAdd(ctx, keyAllUsers, user.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) UserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return user, store.ErrNotFound
	}
	if err != nil {
		return user, err
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return user, err
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	id, err := s.client.Get(ctx, emailKey(email)).Result()
	if err == redis.Nil {
		return models.User{}, store.ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.UserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	update.Apply(&user)

	data, err := json.Marshal(user)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := s.client.Set(ctx, userKey(id), data, 0).Err(); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// --- transactions ---

func (s *Store) CreateTransaction(ctx context.Context, tx models.Transaction) error {
	exists, err := s.client.Exists(ctx, transactionKey(tx.ID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return store.ErrDuplicate
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, transactionKey(tx.ID), data, 0)
	pipe.SAdd(ctx, userTxsKey(tx.UserID), tx.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) TransactionByID(ctx context.Context, id string) (models.Transaction, error) {
	var tx models.Transaction
	data, err := s.client.Get(ctx, transactionKey(id)).Bytes()
	if err == redis.Nil {
		return tx, store.ErrNotFound
	}
	if err != nil {
		return tx, err
	}
	if err := json.Unmarshal(data, &tx); err != nil {
		return tx, err
	}
	return tx, nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *Store) TransactionsByStatus(ctx context.Context, userID string, status models.TransactionStatus) ([]models.Transaction, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	filtered := txs[:0]
	for _, tx := range txs {
		if tx.Status == status {
			filtered = append(filtered, tx)
		}
	}
	return filtered, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, id string, update models.TransactionUpdate) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.TransactionByID(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	update.Apply(&tx)

	data, err := json.Marshal(tx)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	if err := s.client.Set(ctx, transactionKey(id), data, 0).Err(); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.TransactionByID(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, transactionKey(id))
	pipe.SRem(ctx, userTxsKey(tx.UserID), id)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) SearchTransactions(ctx context.Context, userID, query string) ([]models.Transaction, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	matched := txs[:0]
	for _, tx := range txs {
		if strings.Contains(strings.ToLower(tx.RecipientName), query) ||
			strings.Contains(strings.ToLower(tx.Reference), query) ||
			strings.Contains(strings.ToLower(tx.RecipientPhone), query) {
			matched = append(matched, tx)
		}
	}
	return matched, nil
}

func (s *Store) TransactionStats(ctx context.Context, userID string, from, to time.Time) (models.TransactionStats, error) {
	txs, err := s.userTransactions(ctx, userID)
	if err != nil {
		return models.TransactionStats{}, err
	}
	var stats models.TransactionStats
	for _, tx := range txs {
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

func (s *Store) userTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	ids, err := s.client.SMembers(ctx, userTxsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	txs := make([]models.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := s.TransactionByID(ctx, id)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	// newest first
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	return txs, nil
}

// --- kyc documents ---

func (s *Store) CreateKYCDocument(ctx context.Context, doc models.KYCDocument) error {
	exists, err := s.client.Exists(ctx, kycDocKey(doc.ID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return store.ErrDuplicate
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal kyc document: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, kycDocKey(doc.ID), data, 0)
	pipe.SAdd(ctx, userDocsKey(doc.UserID), doc.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) KYCDocumentByID(ctx context.Context, id string) (models.KYCDocument, error) {
	var doc models.KYCDocument
	data, err := s.client.Get(ctx, kycDocKey(id)).Bytes()
	if err == redis.Nil {
		return doc, store.ErrNotFound
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (s *Store) KYCDocumentsByUser(ctx context.Context, userID string) ([]models.KYCDocument, error) {
	ids, err := s.client.SMembers(ctx, userDocsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]models.KYCDocument, 0, len(ids))
	for _, id := range ids {
		doc, err := s.KYCDocumentByID(ctx, id)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UploadedAt.Before(docs[j].UploadedAt) })
	return docs, nil
}

func (s *Store) UpdateKYCDocument(ctx context.Context, id string, update models.KYCDocumentUpdate) (models.KYCDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.KYCDocumentByID(ctx, id)
	if err != nil {
		return models.KYCDocument{}, err
	}
	update.Apply(&doc)

	data, err := json.Marshal(doc)
	if err != nil {
		return models.KYCDocument{}, fmt.Errorf("failed to marshal kyc document: %w", err)
	}
	if err := s.client.Set(ctx, kycDocKey(id), data, 0).Err(); err != nil {
		return models.KYCDocument{}, err
	}
	return doc, nil
}

// --- exchange-rate cache ---

func (s *Store) SaveExchangeRate(ctx context.Context, rate models.ExchangeRate) error {
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("failed to marshal exchange rate: %w", err)
	}
	return s.client.Set(ctx, ratesKey(rate.FromCurrency, rate.ToCurrency), data, 0).Err()
}

func (s *Store) ExchangeRates(ctx context.Context, from, to string) ([]models.ExchangeRate, error) {
	pattern := keyPrefixRates + "*"
	if from != "" || to != "" {
		if from == "" {
			from = "*"
		}
		if to == "" {
			to = "*"
		}
		pattern = keyPrefixRates + from + ":" + to
	}

	var rates []models.ExchangeRate
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rate models.ExchangeRate
		if err := json.Unmarshal(data, &rate); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	if err := iter.Err(); err != nil {
		return nil, err
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

func (s *Store) StoreFailedSyncItem(ctx context.Context, item models.SyncItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal sync item: %w", err)
	}
	return s.client.RPush(ctx, keyFailedSyncItems, data).Err()
}

func (s *Store) FailedSyncItems(ctx context.Context) ([]models.SyncItem, error) {
	raw, err := s.client.LRange(ctx, keyFailedSyncItems, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	items := make([]models.SyncItem, 0, len(raw))
	for _, blob := range raw {
		var item models.SyncItem
		if err := json.Unmarshal([]byte(blob), &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) ClearFailedSyncItems(ctx context.Context) error {
	return s.client.Del(ctx, keyFailedSyncItems).Err()
}

// Wipe drops user, transaction, KYC and dead-letter keys. Cached exchange
// rates survive so a wiped device still shows conversion figures.
func (s *Store) Wipe(ctx context.Context) error {
	prefixes := []string{
		keyPrefixUser, keyPrefixTransaction, keyPrefixKYCDoc,
		keyPrefixUserTxs, keyPrefixUserDocs,
	}
	for _, prefix := range prefixes {
		iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return s.client.Del(ctx, keyAllUsers, keyFailedSyncItems).Err()
}
