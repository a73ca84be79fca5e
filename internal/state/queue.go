package state

import (
	"encoding/json"
	"sync"
	"time"

	"jaudi-finance-backend/internal/models"
)

// SyncQueue is the in-memory FIFO of pending mutations. Items keep their
// insertion order; a replayed or duplicate mutation just lands behind the
// first. All methods are safe for concurrent use.
type SyncQueue struct {
	mu    sync.Mutex
	items []models.SyncItem
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// Enqueue appends a new item to the tail and returns a copy of it.
func (q *SyncQueue) Enqueue(itemType models.SyncItemType, action models.SyncAction, data json.RawMessage) models.SyncItem {
	item := models.SyncItem{
		ID:        models.NewSyncItemID(),
		Type:      itemType,
		Action:    action,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Status:    models.SyncItemStatusPending,
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	return item
}

// Push appends an existing item, preserving its id and retry count. Used
// when re-enqueueing dead letters and when restoring a persisted queue.
func (q *SyncQueue) Push(item models.SyncItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Dequeue removes the item with the given id. Removing an id that is no
// longer queued is a no-op.
func (q *SyncQueue) Dequeue(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// IncrementRetry bumps the retry counter of the item with the given id and
// returns the updated copy.
func (q *SyncQueue) IncrementRetry(id string) (models.SyncItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].RetryCount++
			return q.items[i], true
		}
	}
	return models.SyncItem{}, false
}

// ItemByID returns a copy of the queued item with the given id.
func (q *SyncQueue) ItemByID(id string) (models.SyncItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.SyncItem{}, false
}

// Snapshot returns the queued items in FIFO order.
func (q *SyncQueue) Snapshot() []models.SyncItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]models.SyncItem, len(q.items))
	copy(items, q.items)
	return items
}

func (q *SyncQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *SyncQueue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Restore replaces the queue contents wholesale. Used at boot.
func (q *SyncQueue) Restore(items []models.SyncItem) {
	q.mu.Lock()
	q.items = append([]models.SyncItem(nil), items...)
	q.mu.Unlock()
}
