package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/livinlefevreloca/ghosted/internal/db"
)

// =============================================================================
// Test Helpers
// =============================================================================

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func closedRecord(offset, length time.Duration) db.WaitRecord {
	start := baseTime.Add(offset)
	end := start.Add(length)
	return db.WaitRecord{ID: "r", StartTime: start, EndTime: &end, TargetName: db.DefaultTargetName}
}

func openRecord(offset time.Duration) db.WaitRecord {
	return db.WaitRecord{ID: "open", StartTime: baseTime.Add(offset), TargetName: db.DefaultTargetName}
}

// =============================================================================
// Aggregation Tests
// =============================================================================

func TestCompute_Empty(t *testing.T) {
	snap := Compute(nil)

	assert.Equal(t, Snapshot{}, snap)
	assert.Equal(t, 0, snap.SimpIndex)
}

func TestCompute_SumsAndAverages(t *testing.T) {
	records := []db.WaitRecord{
		closedRecord(2*time.Hour, 30*time.Minute),
		closedRecord(time.Hour, 10*time.Minute),
		closedRecord(0, 20*time.Minute),
	}

	snap := Compute(records)

	assert.Equal(t, 3, snap.Count)
	assert.Equal(t, 60*time.Minute, snap.TotalWasted)
	assert.Equal(t, 20*time.Minute, snap.AverageResponse)
	assert.Equal(t, 30*time.Minute, snap.Longest)
	// 20 minutes is a third of an hour: floor(3.33) = 3
	assert.Equal(t, 3, snap.SimpIndex)
}

func TestCompute_IgnoresOpenRecords(t *testing.T) {
	records := []db.WaitRecord{
		openRecord(3 * time.Hour),
		closedRecord(0, time.Hour),
	}

	snap := Compute(records)

	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, time.Hour, snap.TotalWasted)
	assert.Equal(t, time.Hour, snap.AverageResponse)
	assert.Equal(t, 10, snap.SimpIndex)
}

func TestCompute_TotalAndAverageProperty(t *testing.T) {
	var records []db.WaitRecord
	var sum time.Duration
	for i := 1; i <= 25; i++ {
		length := time.Duration(i*i) * 37 * time.Second
		records = append(records, closedRecord(time.Duration(i)*time.Hour, length))
		sum += length

		snap := Compute(records)
		assert.Equal(t, sum, snap.TotalWasted)
		assert.Equal(t, sum/time.Duration(len(records)), snap.AverageResponse)
	}
}

func TestCompute_DoesNotModifyInput(t *testing.T) {
	records := []db.WaitRecord{closedRecord(0, time.Minute), openRecord(time.Hour)}
	before := make([]db.WaitRecord, len(records))
	copy(before, records)

	Compute(records)

	assert.Equal(t, before, records)
}

func TestAverage_ZeroCount(t *testing.T) {
	assert.Equal(t, time.Duration(0), Average(time.Hour, 0))
	assert.Equal(t, 30*time.Minute, Average(time.Hour, 2))
}

// =============================================================================
// SimpIndex Tests
// =============================================================================

func TestSimpIndex(t *testing.T) {
	tests := []struct {
		average time.Duration
		want    int
	}{
		{0, 0},
		{5 * time.Minute, 0},
		{6 * time.Minute, 1},
		{59 * time.Minute, 9},
		{time.Hour, 10},
		{90 * time.Minute, 15},
		{10 * time.Hour, 100},
		{1000 * time.Hour, 100},
		{-time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.average.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, SimpIndex(tt.average))
		})
	}
}

func TestSimpIndex_BoundedAndMonotonic(t *testing.T) {
	prev := SimpIndex(0)
	for d := time.Duration(0); d < 20*time.Hour; d += 77 * time.Second {
		got := SimpIndex(d)
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, MaxSimpIndex)
		assert.GreaterOrEqual(t, got, prev, "not monotonic at %v", d)
		prev = got
	}
}

// =============================================================================
// Formatting Tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{3661, "1 hour 1 minute"},
		{7322, "2 hours 2 minutes"},
		{3600, "1 hour 0 minutes"},
		{125, "2 minutes 5 seconds"},
		{60, "1 minute 0 seconds"},
		{61, "1 minute 1 second"},
		{45, "45 seconds"},
		{1, "1 second"},
		{0, "0 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(time.Duration(tt.seconds)*time.Second))
		})
	}
}

func TestFormatDuration_TruncatesFraction(t *testing.T) {
	assert.Equal(t, "45 seconds", FormatDuration(45*time.Second+999*time.Millisecond))
}

func TestFormatHoursMinutes(t *testing.T) {
	assert.Equal(t, "0 hours 2 minutes", FormatHoursMinutes(125*time.Second))
	assert.Equal(t, "26 hours 1 minute", FormatHoursMinutes(26*time.Hour+time.Minute))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "01:01:01", FormatClock(3661*time.Second))
	assert.Equal(t, "25:00:59", FormatClock(25*time.Hour+59*time.Second))
	assert.Equal(t, "00:00:00", FormatClock(-time.Minute))
}
