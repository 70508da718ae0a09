package testutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/snapshot"
)

// MockRecordStore provides an in-memory record store for testing
type MockRecordStore struct {
	mu          sync.Mutex
	records     map[string]*db.WaitRecord
	insertError error
	closeError  error
	queryError  error
	insertCount int
	closeCount  int
}

func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{
		records: make(map[string]*db.WaitRecord),
	}
}

func (m *MockRecordStore) SetInsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertError = err
}

func (m *MockRecordStore) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

func (m *MockRecordStore) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryError = err
}

// Put stores a copy of record, bypassing the single open record check
func (m *MockRecordStore) Put(record db.WaitRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = &record
}

func (m *MockRecordStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

// Get returns a copy of the record with id, or nil
func (m *MockRecordStore) Get(id string) *db.WaitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

func (m *MockRecordStore) InsertRecord(record *db.WaitRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertError != nil {
		return m.insertError
	}
	if _, ok := m.records[record.ID]; ok {
		return fmt.Errorf("%w: %s", db.ErrDuplicate, record.ID)
	}
	for _, existing := range m.records {
		if existing.IsOpen() && record.IsOpen() {
			return fmt.Errorf("%w: open record %s exists", db.ErrDuplicate, existing.ID)
		}
	}

	copied := *record
	m.records[record.ID] = &copied
	m.insertCount++
	return nil
}

func (m *MockRecordStore) CloseRecord(id string, endTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closeError != nil {
		return m.closeError
	}
	record, ok := m.records[id]
	if !ok {
		return db.ErrNotFound
	}
	if !record.IsOpen() {
		return db.ErrAlreadyClosed
	}

	end := endTime
	record.EndTime = &end
	m.closeCount++
	return nil
}

func (m *MockRecordStore) QueryOpenByID(id string) (*db.WaitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queryError != nil {
		return nil, m.queryError
	}
	record, ok := m.records[id]
	if !ok || !record.IsOpen() {
		return nil, db.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *MockRecordStore) QueryOpen() ([]db.WaitRecord, error) {
	return m.query(func(r *db.WaitRecord) bool { return r.IsOpen() })
}

func (m *MockRecordStore) QueryClosed() ([]db.WaitRecord, error) {
	return m.query(func(r *db.WaitRecord) bool { return !r.IsOpen() })
}

func (m *MockRecordStore) query(keep func(*db.WaitRecord) bool) ([]db.WaitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queryError != nil {
		return nil, m.queryError
	}

	result := make([]db.WaitRecord, 0)
	for _, record := range m.records {
		if keep(record) {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result, nil
}

func (m *MockRecordStore) InsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCount
}

func (m *MockRecordStore) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}

// MockSnapshotStore provides an in-memory snapshot store with injectable
// failures
type MockSnapshotStore struct {
	mu         sync.Mutex
	snap       *snapshot.TimerSnapshot
	saveError  error
	loadError  error
	clearError error
	saveCount  int
	clearCount int
}

func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{}
}

func (m *MockSnapshotStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

func (m *MockSnapshotStore) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

func (m *MockSnapshotStore) SetClearError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearError = err
}

// Seed sets the stored snapshot without counting a save
func (m *MockSnapshotStore) Seed(snap snapshot.TimerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
}

func (m *MockSnapshotStore) Save(snap snapshot.TimerSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCount++
	if m.saveError != nil {
		return m.saveError
	}
	m.snap = &snap
	return nil
}

func (m *MockSnapshotStore) Load() (*snapshot.TimerSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadError != nil {
		return nil, m.loadError
	}
	if m.snap == nil {
		return nil, nil
	}
	copied := *m.snap
	return &copied, nil
}

func (m *MockSnapshotStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearCount++
	if m.clearError != nil {
		return m.clearError
	}
	m.snap = nil
	return nil
}

// Current returns the stored snapshot without going through Load
func (m *MockSnapshotStore) Current() *snapshot.TimerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil
	}
	copied := *m.snap
	return &copied
}

func (m *MockSnapshotStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

func (m *MockSnapshotStore) ClearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearCount
}

// ErrInjected is a generic failure for fault injection
var ErrInjected = errors.New("injected failure")

// TestLogger captures slog records for assertions
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		entries: make([]LogEntry, 0),
	}
}

// Logger returns a *slog.Logger that writes to this TestLogger
func (l *TestLogger) Logger() *slog.Logger {
	return slog.New(&testLogHandler{logger: l})
}

func (l *TestLogger) GetEntriesByLevel(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]LogEntry, 0)
	for _, entry := range l.entries {
		if entry.Level == level {
			result = append(result, entry)
		}
	}
	return result
}

func (l *TestLogger) append(entry LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// testLogHandler implements slog.Handler for TestLogger
type testLogHandler struct {
	logger *TestLogger
	attrs  []slog.Attr
}

func (h *testLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Level:   r.Level.String(),
		Message: r.Message,
		Fields:  make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	for _, attr := range h.attrs {
		entry.Fields[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Fields[a.Key] = a.Value.Any()
		return true
	})

	h.logger.append(entry)
	return nil
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &testLogHandler{logger: h.logger, attrs: newAttrs}
}

// Groups are flattened, tests only match on keys
func (h *testLogHandler) WithGroup(_ string) slog.Handler {
	return h
}

// WaitFor waits for a condition to be true with timeout
func WaitFor(t TestingT, condition func() bool, timeout time.Duration, msgAndArgs ...interface{}) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return true
		}

		select {
		case <-ticker.C:
			if time.Now().After(deadline) {
				t.Errorf("timeout waiting for condition: %v", msgAndArgs)
				return false
			}
		}
	}
}

// TestingT is a minimal interface for testing
type TestingT interface {
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}
