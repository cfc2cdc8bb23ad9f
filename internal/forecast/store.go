package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/windwatch/internal/domain"
)

// StateStore persists the prediction lock state between restarts.
type StateStore interface {
	Load(ctx context.Context) (domain.PredictionLockState, error)
	Save(ctx context.Context, state domain.PredictionLockState) error
}

// FileStore keeps the lock state in a single JSON file. Saves replace the
// file atomically so a crash never leaves a half-written state behind.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the state. A missing file is an empty state, not an error.
func (s *FileStore) Load(_ context.Context) (domain.PredictionLockState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.PredictionLockState{}, nil
	}
	if err != nil {
		return domain.PredictionLockState{}, fmt.Errorf("read lock state: %w", err)
	}

	var state domain.PredictionLockState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.PredictionLockState{}, fmt.Errorf("decode lock state %s: %w", s.path, err)
	}
	return state, nil
}

// Save writes the state to a temp file in the same directory and renames it
// over the target.
func (s *FileStore) Save(_ context.Context, state domain.PredictionLockState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lock state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".lock-state-*.json")
	if err != nil {
		return fmt.Errorf("create temp lock state: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write lock state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close lock state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace lock state: %w", err)
	}
	return nil
}

// MemoryStore keeps the state in memory only. Used when no state path is
// configured.
type MemoryStore struct {
	mu    sync.Mutex
	state domain.PredictionLockState
	saves int
}

func (s *MemoryStore) Load(_ context.Context) (domain.PredictionLockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *MemoryStore) Save(_ context.Context, state domain.PredictionLockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saves++
	return nil
}

// Saves returns how many times the state was saved.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
