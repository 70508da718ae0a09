// Package timer owns the lifecycle of a wait for a reply: starting and
// stopping it, ticking the display, and recovering a wait that was still
// running when the previous process died.
package timer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/livinlefevreloca/ghosted/internal/clock"
	"github.com/livinlefevreloca/ghosted/internal/colormap"
	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/inbox"
	"github.com/livinlefevreloca/ghosted/internal/metrics"
	"github.com/livinlefevreloca/ghosted/internal/snapshot"
	"github.com/livinlefevreloca/ghosted/internal/stats"
	"golang.org/x/time/rate"
)

// RecordStore is the durable collection of wait records
type RecordStore interface {
	InsertRecord(record *db.WaitRecord) error
	CloseRecord(id string, endTime time.Time) error
	QueryOpenByID(id string) (*db.WaitRecord, error)
	QueryOpen() ([]db.WaitRecord, error)
}

// SnapshotStore holds the single crash-recovery snapshot
type SnapshotStore interface {
	Save(snap snapshot.TimerSnapshot) error
	Load() (*snapshot.TimerSnapshot, error)
	Clear() error
}

// Diagnostics reports best-effort failures that did not interrupt timing
type Diagnostics struct {
	SnapshotWriteFailures int
	LastSnapshotError     error
	LastSnapshotErrorAt   time.Time

	// Events dropped because a subscriber's buffer was full
	DroppedEvents int64
}

// Machine is the wait timer state machine. One Machine is created per
// process and shared by reference with whatever drives or renders it.
type Machine struct {
	mu sync.Mutex

	config    Config
	records   RecordStore
	snapshots SnapshotStore
	clock     clock.Clock
	logger    *slog.Logger
	nextQuote func() string

	// State management
	state   State
	current *db.WaitRecord
	pending *snapshot.TimerSnapshot

	// startTime is the origin for elapsed time while running
	startTime        time.Time
	lastSnapshotSave time.Time
	quote            string
	diagnostics      Diagnostics

	// Throttles repeated snapshot failure warnings
	snapshotWarn *rate.Limiter

	// Ticking goroutine control, nil while not running
	stopCh chan struct{}
	doneCh chan struct{}

	subscribers []*inbox.Inbox[Event]
	closed      bool

	// Optional state recorder for testing
	recorder *StateRecorder
}

// New creates the machine and decides its initial state from the stores:
// RestorePending when a running snapshot exists, otherwise Idle. When there
// is no snapshot but the store still holds an open record, the store wins
// and that record is offered for recovery.
func New(config Config, records RecordStore, snapshots SnapshotStore, clk clock.Clock, logger *slog.Logger) (*Machine, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid timer config: %w", err)
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Machine{
		config:    config,
		records:   records,
		snapshots: snapshots,
		clock:     clk,
		logger:    logger,
		nextQuote: RandomQuote,
		state:     &IdleState{},

		snapshotWarn: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
	m.quote = m.nextQuote()

	pending, err := m.loadPending()
	if err != nil {
		return nil, err
	}
	if pending != nil {
		m.pending = pending
		m.state = &RestorePendingState{}
		m.logger.Info("unfinished wait found",
			"record_id", pending.RecordID,
			"start_time", pending.StartTime)
	}

	return m, nil
}

func (m *Machine) loadPending() (*snapshot.TimerSnapshot, error) {
	snap, err := m.snapshots.Load()
	if err != nil {
		if !errors.Is(err, snapshot.ErrCorrupt) {
			return nil, persistenceError("load snapshot", err)
		}
		m.logger.Warn("discarding unreadable snapshot", "error", err)
		m.clearSnapshotLocked()
		snap = nil
	}

	if snap != nil && snap.IsRunning {
		return snap, nil
	}
	if snap != nil {
		m.clearSnapshotLocked()
	}

	open, err := m.records.QueryOpen()
	if err != nil {
		return nil, persistenceError("query open records", err)
	}
	if len(open) == 0 {
		return nil, nil
	}
	if len(open) > 1 {
		m.logger.Error("more than one open record in store",
			"count", len(open),
			"adopting", open[0].ID)
	}

	record := open[0]
	snap = &snapshot.TimerSnapshot{
		RecordID:  record.ID,
		StartTime: record.StartTime,
		IsRunning: true,
	}
	m.logger.Warn("open record without snapshot", "record_id", record.ID)
	m.saveSnapshotLocked(*snap, m.clock.Now())

	return snap, nil
}

// SetQuoteSource replaces the random quote picker
func (m *Machine) SetQuoteSource(next func() string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextQuote = next
	m.quote = next()
}

// Subscribe registers a new observer channel. Events are dropped for a
// subscriber whose buffer is full. The channel is closed by Close.
func (m *Machine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = m.config.EventBufferSize
	}
	ib := inbox.New[Event](buffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		ib.Close()
		return ib.C()
	}
	m.subscribers = append(m.subscribers, ib)
	return ib.C()
}

// Start begins a new wait labelled with the default target
func (m *Machine) Start() (db.WaitRecord, error) {
	return m.StartFor("")
}

// StartFor begins a new wait. The record is durable before this returns.
func (m *Machine) StartFor(target string) (db.WaitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return db.WaitRecord{}, ErrClosed
	}
	idle, ok := m.state.(*IdleState)
	if !ok {
		return db.WaitRecord{}, invalidState("start", m.state)
	}

	if target == "" {
		target = m.config.DefaultTarget
	}
	now := m.clock.Now()
	record := db.NewWaitRecord(target, now)

	if err := m.records.InsertRecord(record); err != nil {
		return db.WaitRecord{}, persistenceError("insert record", err)
	}

	// The record is committed, so the snapshot may now reference it
	m.saveSnapshotLocked(snapshot.TimerSnapshot{
		RecordID:  record.ID,
		StartTime: record.StartTime,
		IsRunning: true,
	}, now)

	m.current = record
	m.startTime = record.StartTime
	m.transitionTo(idle.ToRunning(), record.ID)
	m.startTickersLocked(record.ID)

	metrics.WaitsStarted.Inc()
	metrics.SetRunning(true)
	m.logger.Info("wait started",
		"record_id", record.ID,
		"target", record.TargetName)

	return *record, nil
}

// Stop closes the running wait and returns the closed record. On a store
// failure the machine keeps running.
func (m *Machine) Stop() (db.WaitRecord, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return db.WaitRecord{}, ErrClosed
	}
	running, ok := m.state.(*RunningState)
	if !ok {
		state := m.state
		m.mu.Unlock()
		return db.WaitRecord{}, invalidState("stop", state)
	}

	record := *m.current
	end := m.endTimeLocked(record.StartTime)

	err := m.records.CloseRecord(record.ID, end)
	if err != nil && !isGone(err) {
		m.mu.Unlock()
		return db.WaitRecord{}, persistenceError("close record", err)
	}

	m.current = nil
	m.startTime = time.Time{}
	m.transitionTo(running.ToIdle(), record.ID)
	done := m.detachTickersLocked()
	m.clearSnapshotLocked()
	m.quote = m.nextQuote()
	metrics.SetRunning(false)

	if err != nil {
		m.mu.Unlock()
		<-done
		m.logger.Error("running record was closed or removed outside the timer",
			"record_id", record.ID,
			"error", err)
		return db.WaitRecord{}, fmt.Errorf("%w: record %s is no longer open", ErrConsistencyAnomaly, record.ID)
	}

	record.EndTime = &end
	duration := record.Duration(end)
	metrics.RecordWaitClosed(metrics.OutcomeStopped, duration)
	m.logger.Info("wait stopped",
		"record_id", record.ID,
		"duration", duration)

	m.mu.Unlock()
	<-done

	return record, nil
}

// Restore resumes the wait recorded in the pending snapshot. When the
// referenced record is missing or already closed the machine goes Idle,
// clears the snapshot and returns ErrConsistencyAnomaly.
func (m *Machine) Restore() (db.WaitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return db.WaitRecord{}, ErrClosed
	}
	pendingState, ok := m.state.(*RestorePendingState)
	if !ok {
		return db.WaitRecord{}, invalidState("restore", m.state)
	}

	snap := *m.pending
	record, err := m.lookupOpenLocked(snap.RecordID)
	if err != nil {
		return db.WaitRecord{}, err
	}

	if record == nil {
		m.pending = nil
		m.transitionTo(pendingState.ToIdle(), snap.RecordID)
		m.clearSnapshotLocked()
		metrics.Restores.WithLabelValues(metrics.RestoreAnomaly).Inc()
		m.logger.Warn("snapshot refers to a record that is not open",
			"record_id", snap.RecordID)
		return db.WaitRecord{}, fmt.Errorf("%w: record %s is missing or already closed", ErrConsistencyAnomaly, snap.RecordID)
	}

	now := m.clock.Now()
	m.pending = nil
	m.current = record
	m.startTime = snap.StartTime
	m.transitionTo(pendingState.ToRunning(), record.ID)
	m.saveSnapshotLocked(snap, now)
	m.startTickersLocked(record.ID)

	metrics.Restores.WithLabelValues(metrics.RestoreResumed).Inc()
	metrics.SetRunning(true)
	m.logger.Info("wait restored",
		"record_id", record.ID,
		"elapsed", m.elapsedLocked(now))

	return *record, nil
}

// Discard gives up on the pending wait. If its record is still open it is
// closed now. The snapshot is cleared whether or not the record was found.
// The closed record is returned, or nil when there was nothing to close.
func (m *Machine) Discard() (*db.WaitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	pendingState, ok := m.state.(*RestorePendingState)
	if !ok {
		return nil, invalidState("discard", m.state)
	}

	snap := *m.pending
	record, err := m.lookupOpenLocked(snap.RecordID)
	if err != nil {
		return nil, err
	}

	var closed *db.WaitRecord
	if record != nil {
		end := m.endTimeLocked(record.StartTime)
		err := m.records.CloseRecord(record.ID, end)
		switch {
		case err == nil:
			record.EndTime = &end
			closed = record
		case isGone(err):
			m.logger.Warn("pending record closed before discard", "record_id", record.ID)
		default:
			return nil, persistenceError("close record", err)
		}
	}

	m.pending = nil
	m.transitionTo(pendingState.ToIdle(), snap.RecordID)
	m.clearSnapshotLocked()

	if closed != nil {
		duration := closed.Duration(*closed.EndTime)
		metrics.RecordWaitClosed(metrics.OutcomeDiscarded, duration)
		m.logger.Info("pending wait discarded",
			"record_id", closed.ID,
			"duration", duration)
	} else {
		m.logger.Info("pending wait discarded with no open record", "record_id", snap.RecordID)
	}

	return closed, nil
}

// Close halts ticking and closes subscriber channels. The current record is
// left open, exactly as a process exit would leave it.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	done := m.detachTickersLocked()
	subscribers := m.subscribers
	m.subscribers = nil
	m.mu.Unlock()

	<-done
	for _, ib := range subscribers {
		ib.Close()
	}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StateName returns the current state name
func (m *Machine) StateName() string {
	return m.State().Name()
}

// IsRunning reports whether a wait is being timed
func (m *Machine) IsRunning() bool {
	_, ok := m.State().(*RunningState)
	return ok
}

// Elapsed is now minus the start of the running wait, or zero when idle
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsedLocked(m.clock.Now())
}

// FormattedTime renders the elapsed time as HH:MM:SS
func (m *Machine) FormattedTime() string {
	return stats.FormatClock(m.Elapsed())
}

// BackgroundColor maps the elapsed time to the display color
func (m *Machine) BackgroundColor() colormap.Color {
	return colormap.ForElapsed(m.Elapsed().Seconds())
}

// CurrentQuote returns the rotating status line
func (m *Machine) CurrentQuote() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quote
}

// CurrentRecord returns a copy of the running record, or nil
func (m *Machine) CurrentRecord() *db.WaitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	record := *m.current
	return &record
}

// PendingSnapshot returns a copy of the snapshot awaiting restore or
// discard, or nil
func (m *Machine) PendingSnapshot() *snapshot.TimerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	snap := *m.pending
	return &snap
}

// Diagnostics returns the best-effort failure counters
func (m *Machine) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()

	diag := m.diagnostics
	for _, ib := range m.subscribers {
		diag.DroppedEvents += ib.GetStats().DroppedCount
	}
	return diag
}

// transitionTo performs a state transition for recordID and logs it
func (m *Machine) transitionTo(newState State, recordID string) {
	oldStateName := m.state.Name()
	m.state = newState

	// Record state for testing if recorder is present
	if m.recorder != nil {
		m.recorder.Record(newState)
	}

	m.logger.Debug("state transition",
		"record_id", recordID,
		"from", oldStateName,
		"to", newState.Name())

	m.emitLocked(Event{
		Type:     EventStateChange,
		State:    newState.Name(),
		RecordID: recordID,
		At:       m.clock.Now(),
	})
}

func (m *Machine) elapsedLocked(now time.Time) time.Duration {
	if _, ok := m.state.(*RunningState); !ok {
		return 0
	}
	elapsed := now.Sub(m.startTime)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// endTimeLocked is now, but never before start
func (m *Machine) endTimeLocked(start time.Time) time.Time {
	end := m.clock.Now()
	if end.Before(start) {
		m.logger.Warn("clock is behind wait start, clamping end time",
			"start_time", start,
			"now", end)
		return start
	}
	return end
}

// lookupOpenLocked returns the open record with id, nil if it is missing or
// closed, or a persistence error
func (m *Machine) lookupOpenLocked(id string) (*db.WaitRecord, error) {
	record, err := m.records.QueryOpenByID(id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, persistenceError("query open record", err)
	}
	if record == nil || !record.IsOpen() {
		return nil, nil
	}
	return record, nil
}

func isGone(err error) bool {
	return db.IsNotFound(err) || errors.Is(err, db.ErrAlreadyClosed)
}

// saveSnapshotLocked writes the snapshot. Failures never interrupt timing:
// they are logged, counted and reported to subscribers.
func (m *Machine) saveSnapshotLocked(snap snapshot.TimerSnapshot, now time.Time) {
	m.lastSnapshotSave = now
	if err := m.snapshots.Save(snap); err != nil {
		m.diagnostics.SnapshotWriteFailures++
		m.diagnostics.LastSnapshotError = err
		m.diagnostics.LastSnapshotErrorAt = now
		metrics.SnapshotWriteFailures.Inc()
		if m.snapshotWarn.Allow() {
			m.logger.Warn("failed to save snapshot",
				"record_id", snap.RecordID,
				"failures", m.diagnostics.SnapshotWriteFailures,
				"error", err)
		}
		m.emitLocked(Event{
			Type:     EventSnapshotError,
			State:    m.state.Name(),
			RecordID: snap.RecordID,
			Message:  err.Error(),
			At:       now,
		})
	}
}

func (m *Machine) clearSnapshotLocked() {
	if err := m.snapshots.Clear(); err != nil {
		m.diagnostics.SnapshotWriteFailures++
		m.diagnostics.LastSnapshotError = err
		m.diagnostics.LastSnapshotErrorAt = m.clock.Now()
		metrics.SnapshotWriteFailures.Inc()
		m.logger.Warn("failed to clear snapshot", "error", err)
	}
}

func (m *Machine) emitLocked(event Event) {
	for _, ib := range m.subscribers {
		ib.TrySend(event)
	}
}
