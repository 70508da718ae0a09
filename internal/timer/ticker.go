package timer

import (
	"time"

	"github.com/livinlefevreloca/ghosted/internal/snapshot"
)

// startTickersLocked launches the display goroutine for recordID
func (m *Machine) startTickersLocked(recordID string) {
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(m.stopCh, m.doneCh, recordID)
}

// detachTickersLocked signals the goroutine to exit and returns a channel
// that closes once it has. The caller must release the lock before waiting.
func (m *Machine) detachTickersLocked() <-chan struct{} {
	if m.stopCh == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	close(m.stopCh)
	done := m.doneCh
	m.stopCh = nil
	m.doneCh = nil
	return done
}

func (m *Machine) run(stop <-chan struct{}, done chan<- struct{}, recordID string) {
	defer close(done)

	tick := time.NewTicker(m.config.TickInterval)
	defer tick.Stop()
	quote := time.NewTicker(m.config.QuoteInterval)
	defer quote.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			m.tick(recordID)
		case <-quote.C:
			m.rotateQuote(recordID)
		}
	}
}

// tick recomputes elapsed time from the start and refreshes the snapshot
// when the snapshot interval has passed. A tick that arrives after the wait
// it was started for has ended has no effect.
func (m *Machine) tick(recordID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(recordID) {
		return
	}

	now := m.clock.Now()
	elapsed := m.elapsedLocked(now)

	if now.Sub(m.lastSnapshotSave) >= m.config.SnapshotInterval {
		m.saveSnapshotLocked(m.runningSnapshotLocked(), now)
	}

	m.emitLocked(Event{
		Type:     EventTick,
		State:    m.state.Name(),
		RecordID: recordID,
		Elapsed:  elapsed,
		At:       now,
	})
}

func (m *Machine) rotateQuote(recordID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(recordID) {
		return
	}

	m.quote = m.nextQuote()
	m.emitLocked(Event{
		Type:     EventQuote,
		State:    m.state.Name(),
		RecordID: recordID,
		Quote:    m.quote,
		At:       m.clock.Now(),
	})
}

func (m *Machine) activeLocked(recordID string) bool {
	if m.closed || m.current == nil || m.current.ID != recordID {
		return false
	}
	_, ok := m.state.(*RunningState)
	return ok
}

func (m *Machine) runningSnapshotLocked() snapshot.TimerSnapshot {
	return snapshot.TimerSnapshot{
		RecordID:  m.current.ID,
		StartTime: m.startTime,
		IsRunning: true,
	}
}
