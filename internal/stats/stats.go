// Package stats derives aggregate figures from closed wait records.
//
// Everything here is a pure function of its input. Open records are ignored.
package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/livinlefevreloca/ghosted/internal/db"
)

// MaxSimpIndex caps the display score
const MaxSimpIndex = 100

// Snapshot is the aggregate view over a set of closed records
type Snapshot struct {
	Count           int
	TotalWasted     time.Duration
	AverageResponse time.Duration
	Longest         time.Duration
	SimpIndex       int
}

// Compute aggregates the closed records in records. The slice is not
// modified and its order does not matter.
func Compute(records []db.WaitRecord) Snapshot {
	var snap Snapshot

	for i := range records {
		record := &records[i]
		if record.IsOpen() {
			continue
		}

		d := record.EndTime.Sub(record.StartTime)
		snap.Count++
		snap.TotalWasted += d
		if d > snap.Longest {
			snap.Longest = d
		}
	}

	snap.AverageResponse = Average(snap.TotalWasted, snap.Count)
	snap.SimpIndex = SimpIndex(snap.AverageResponse)

	return snap
}

// Average is total/count, or zero when there is nothing to average
func Average(total time.Duration, count int) time.Duration {
	if count <= 0 {
		return 0
	}
	return total / time.Duration(count)
}

// SimpIndex is ten points per hour of average response time, capped at 100.
// It does not weight by record count.
func SimpIndex(average time.Duration) int {
	if average <= 0 {
		return 0
	}
	score := math.Floor(average.Hours() * 10)
	if score >= MaxSimpIndex {
		return MaxSimpIndex
	}
	return int(score)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func split(d time.Duration) (hours, minutes, seconds int) {
	total := int(d / time.Second)
	if total < 0 {
		total = 0
	}
	return total / 3600, total / 60 % 60, total % 60
}

// FormatDuration renders hours and minutes when the duration reaches an
// hour, minutes and seconds when it reaches a minute, and seconds otherwise.
// Sub-second remainders are truncated.
func FormatDuration(d time.Duration) string {
	hours, minutes, seconds := split(d)

	switch {
	case hours > 0:
		return plural(hours, "hour") + " " + plural(minutes, "minute")
	case minutes > 0:
		return plural(minutes, "minute") + " " + plural(seconds, "second")
	default:
		return plural(seconds, "second")
	}
}

// FormatHoursMinutes always renders hours and minutes, as used for the
// total and average figures
func FormatHoursMinutes(d time.Duration) string {
	hours, minutes, _ := split(d)
	return plural(hours, "hour") + " " + plural(minutes, "minute")
}

// FormatClock renders HH:MM:SS. Hours are not wrapped at 24.
func FormatClock(d time.Duration) string {
	hours, minutes, seconds := split(d)
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
