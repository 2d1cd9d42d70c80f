package umgram

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SnapshotNamespace is the key under which the circle list is persisted.
// Stores that hold multiple namespaces (sqlite) use it as the row key; the
// file store uses it as the filename stem.
const SnapshotNamespace = "explore.circles"

// CircleSnapshot is the persisted shape of a circle. Pending and confirmed
// circles serialize identically; the id string carries the distinction.
type CircleSnapshot struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// SnapshotStore persists the whole circle list between runs. Save always
// overwrites the previous snapshot; there is no per-circle merging.
type SnapshotStore interface {
	Save(circles []CircleSnapshot) error
	Load() ([]CircleSnapshot, error)
}

// ============================================================================
// File store
// ============================================================================

// FileSnapshotStore keeps the snapshot as a single JSON file. It is the
// default store for CLI use.
type FileSnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewFileSnapshotStore creates a store rooted at dir. The snapshot lives in
// dir/explore.circles.json; dir is created on first save.
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{path: filepath.Join(dir, SnapshotNamespace+".json")}
}

func (s *FileSnapshotStore) Save(circles []CircleSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if circles == nil {
		circles = []CircleSnapshot{}
	}
	data, err := json.Marshal(circles)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Load returns the last saved list, or an empty list when no snapshot
// exists yet.
func (s *FileSnapshotStore) Load() ([]CircleSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []CircleSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var circles []CircleSnapshot
	if err := json.Unmarshal(data, &circles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return circles, nil
}

// ============================================================================
// Memory store
// ============================================================================

// MemorySnapshotStore keeps the snapshot in memory. Useful for tests and for
// callers that do not want persistence.
type MemorySnapshotStore struct {
	mu      sync.Mutex
	circles []CircleSnapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

func (s *MemorySnapshotStore) Save(circles []CircleSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circles = append([]CircleSnapshot(nil), circles...)
	return nil
}

func (s *MemorySnapshotStore) Load() ([]CircleSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CircleSnapshot(nil), s.circles...), nil
}

// ============================================================================
// SQLite store
// ============================================================================

// SQLiteSnapshotStore keeps snapshots in a sqlite database, one row per
// namespace. Multiple features can share the database file.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

// NewSQLiteSnapshotStore opens (or creates) the database at dbPath and
// ensures the snapshot table exists.
func NewSQLiteSnapshotStore(dbPath string) (*SQLiteSnapshotStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot db: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			namespace TEXT PRIMARY KEY,
			payload   TEXT NOT NULL,
			saved_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init snapshot schema: %w", err)
	}
	return &SQLiteSnapshotStore{db: db}, nil
}

func (s *SQLiteSnapshotStore) Save(circles []CircleSnapshot) error {
	if circles == nil {
		circles = []CircleSnapshot{}
	}
	payload, err := json.Marshal(circles)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO snapshots (namespace, payload, saved_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		SnapshotNamespace, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Load() ([]CircleSnapshot, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM snapshots WHERE namespace = ?`, SnapshotNamespace).Scan(&payload)
	if err == sql.ErrNoRows {
		return []CircleSnapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var circles []CircleSnapshot
	if err := json.Unmarshal([]byte(payload), &circles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return circles, nil
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
