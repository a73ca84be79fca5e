package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"jaudi-finance-backend/internal/models"
)

// Snapshot is the persisted application state blob. It is written wholesale
// after every mutation and restored wholesale at boot.
type Snapshot struct {
	User          *models.User          `json:"user"`
	Transactions  []models.Transaction  `json:"transactions"`
	KYCDocuments  []models.KYCDocument  `json:"kycDocuments"`
	ExchangeRates []models.ExchangeRate `json:"exchangeRates"`
	SyncQueue     []models.SyncItem     `json:"syncQueue"`
}

// SnapshotStore persists the state blob between restarts.
type SnapshotStore interface {
	Save(snap Snapshot) error
	// Load returns the persisted snapshot, or ok=false when none exists yet.
	Load() (snap Snapshot, ok bool, err error)
}

// FileSnapshotStore writes the snapshot to a single JSON file. Writes go to
// a temp file first and land via rename, so a crash leaves either the old
// blob or the new one, never a torn write.
type FileSnapshotStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSnapshotStore(path string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileSnapshotStore{path: path}, nil
}

func (s *FileSnapshotStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileSnapshotStore) Load() (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

// NoopSnapshotStore discards snapshots. Used in tests that do not exercise
// persistence.
type NoopSnapshotStore struct{}

func (NoopSnapshotStore) Save(Snapshot) error           { return nil }
func (NoopSnapshotStore) Load() (Snapshot, bool, error) { return Snapshot{}, false, nil }
