// Package snapshot persists the single-slot crash-recovery snapshot of a
// running wait.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrCorrupt indicates the stored snapshot could not be decoded
var ErrCorrupt = errors.New("snapshot: corrupt")

// TimerSnapshot records which wait is running and when it started.
// It is only meaningful when IsRunning is true.
type TimerSnapshot struct {
	RecordID  string    `yaml:"record_id"`
	StartTime time.Time `yaml:"start_time"`
	IsRunning bool      `yaml:"is_running"`
}

// FileStore keeps the snapshot in a YAML file. Writes go to a temporary file
// that is renamed over the target, so a reader never sees a partial write.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Save overwrites the stored snapshot
func (s *FileStore) Save(snap TimerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	serialized, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot yaml: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(serialized); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot file: %w", err)
	}

	return nil
}

// Load returns the stored snapshot, or nil if there is none
func (s *FileStore) Load() (*TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rawData, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var snap TimerSnapshot
	if err := yaml.Unmarshal(rawData, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.RecordID == "" {
		return nil, fmt.Errorf("%w: missing record_id", ErrCorrupt)
	}

	return &snap, nil
}

// Clear removes the stored snapshot. Clearing an empty store is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot file: %w", err)
	}
	return nil
}

// MemoryStore is a process-local snapshot store
type MemoryStore struct {
	mu   sync.Mutex
	snap *TimerSnapshot
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save overwrites the stored snapshot
func (s *MemoryStore) Save(snap TimerSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = &snap
	return nil
}

// Load returns a copy of the stored snapshot, or nil
func (s *MemoryStore) Load() (*TimerSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap == nil {
		return nil, nil
	}
	snap := *s.snap
	return &snap, nil
}

// Clear empties the store
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = nil
	return nil
}
