package inbox

import (
	"sync"
	"sync/atomic"
)

// Inbox is a bounded typed channel with non-blocking delivery
// T is the message type that will be sent through the inbox
type Inbox[T any] struct {
	ch    chan T
	stats *Stats

	// mu guards closed so that a send never races a Close
	mu     sync.RWMutex
	closed bool
}

// Stats tracks inbox usage
type Stats struct {
	TotalSent    int64
	DroppedCount int64
}

// New creates a new inbox with the specified buffer size
func New[T any](bufferSize int) *Inbox[T] {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Inbox[T]{
		ch:    make(chan T, bufferSize),
		stats: &Stats{},
	}
}

// TrySend delivers a message only if there is room right now
// Returns false if the message was dropped
func (ib *Inbox[T]) TrySend(msg T) bool {
	ib.mu.RLock()
	defer ib.mu.RUnlock()
	if ib.closed {
		return false
	}

	select {
	case ib.ch <- msg:
		atomic.AddInt64(&ib.stats.TotalSent, 1)
		return true
	default:
		atomic.AddInt64(&ib.stats.DroppedCount, 1)
		return false
	}
}

// C exposes the receive side for range loops and selects
func (ib *Inbox[T]) C() <-chan T {
	return ib.ch
}

// GetStats returns a copy of the current inbox statistics
func (ib *Inbox[T]) GetStats() Stats {
	return Stats{
		TotalSent:    atomic.LoadInt64(&ib.stats.TotalSent),
		DroppedCount: atomic.LoadInt64(&ib.stats.DroppedCount),
	}
}

// Close closes the inbox channel. Later sends are dropped.
func (ib *Inbox[T]) Close() {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if ib.closed {
		return
	}
	ib.closed = true
	close(ib.ch)
}
