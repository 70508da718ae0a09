package db

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTargetName labels a wait when the user gives no name
const DefaultTargetName = "The One"

// WaitRecord is a single wait for a reply. EndTime is nil while the wait is
// open and is set exactly once when it closes.
type WaitRecord struct {
	ID         string
	StartTime  time.Time
	EndTime    *time.Time
	TargetName string
}

// NewWaitRecord creates an open record with a fresh ID
func NewWaitRecord(targetName string, startTime time.Time) *WaitRecord {
	if targetName == "" {
		targetName = DefaultTargetName
	}
	return &WaitRecord{
		ID:         uuid.NewString(),
		StartTime:  startTime,
		TargetName: targetName,
	}
}

// IsOpen reports whether the wait has not ended yet
func (r *WaitRecord) IsOpen() bool {
	return r.EndTime == nil
}

// Duration is EndTime-StartTime for a closed record, or now-StartTime while
// the record is still open
func (r *WaitRecord) Duration(now time.Time) time.Duration {
	if r.EndTime == nil {
		return now.Sub(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}
