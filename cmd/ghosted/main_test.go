package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/livinlefevreloca/ghosted/internal/clock"
	"github.com/livinlefevreloca/ghosted/internal/colormap"
	"github.com/livinlefevreloca/ghosted/internal/config"
	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	dir        string
	configPath string
	dbPath     string
	snapPath   string
	clock      *clock.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "ghosted.toml"),
		dbPath:     filepath.Join(dir, "ghosted.db"),
		snapPath:   filepath.Join(dir, "ghosted.snapshot.yaml"),
		clock:      clock.NewFake(baseTime),
	}

	content := fmt.Sprintf(`
[database]
dsn = %q

[snapshot]
path = %q

[logging]
level = "error"
`, env.dbPath, env.snapPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0644))

	return env
}

// run executes one command. The context is already cancelled so the live
// display exits immediately.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	a := &app{out: &out, errOut: &errOut, clock: e.clock}
	root := a.rootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := root.ExecuteContext(ctx)

	return out.String(), err
}

// seedUnfinishedWait leaves the stores as a killed wait would
func (e *testEnv) seedUnfinishedWait(t *testing.T, start time.Time) *db.WaitRecord {
	t.Helper()

	database, err := db.OpenWithConfig(db.Config{Driver: "sqlite3", DSN: e.dbPath})
	require.NoError(t, err)
	defer database.Close()

	record := db.NewWaitRecord("", start)
	require.NoError(t, database.InsertRecord(record))
	require.NoError(t, snapshot.NewFileStore(e.snapPath).Save(snapshot.TimerSnapshot{
		RecordID:  record.ID,
		StartTime: record.StartTime,
		IsRunning: true,
	}))

	return record
}

func TestColorCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "color", "3600")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, colormap.ForElapsed(3600).Hex()))

	out, err = env.run(t, "", "color", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "#000000")

	_, err = env.run(t, "", "color", "soon")
	assert.Error(t, err)
}

func TestStatsCmd_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total waits:      0")
	assert.Contains(t, out, "Simp index:       0/100")
}

func TestWaitCmd_StartsAndStops(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "wait", "--target", "Alex")
	require.NoError(t, err)
	assert.Contains(t, out, "Waiting for Alex")
	assert.Contains(t, out, "00:00:00")
	assert.Contains(t, out, "You waited 0 seconds for Alex")

	// Stop left no snapshot behind
	_, err = os.Stat(env.snapPath)
	assert.True(t, os.IsNotExist(err))

	out, err = env.run(t, "", "stats", "--json")
	require.NoError(t, err)
	var summary statsOutput
	require.NoError(t, sonic.UnmarshalString(out, &summary))
	assert.Equal(t, 1, summary.Count)

	out, err = env.run(t, "", "history", "--json")
	require.NoError(t, err)
	var history []recordOutput
	require.NoError(t, sonic.UnmarshalString(out, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "Alex", history[0].TargetName)
	assert.False(t, history[0].Open)

	out, err = env.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "TARGET")
	assert.Contains(t, out, "Alex")
}

func TestHistoryCmd_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No waits yet")
}

func TestStatusCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: idle")

	record := env.seedUnfinishedWait(t, baseTime)
	env.clock.Advance(time.Hour)

	out, err = env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: restore_pending")
	assert.Contains(t, out, record.ID)
	assert.Contains(t, out, "1 hour 0 minutes ago")
}

func TestWaitCmd_RefusesWhilePending(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnfinishedWait(t, baseTime)

	_, err := env.run(t, "", "wait")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghosted recover")
}

func TestRecoverCmd_Discard(t *testing.T) {
	env := newTestEnv(t)
	record := env.seedUnfinishedWait(t, baseTime)
	env.clock.Advance(90 * time.Minute)

	out, err := env.run(t, "", "recover", "--discard")
	require.NoError(t, err)
	assert.Contains(t, out, "Discarded the wait for The One after 1 hour 30 minutes")

	_, err = os.Stat(env.snapPath)
	assert.True(t, os.IsNotExist(err))

	database, err := db.OpenWithConfig(db.Config{Driver: "sqlite3", DSN: env.dbPath})
	require.NoError(t, err)
	defer database.Close()
	stored, err := database.GetRecord(record.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOpen())
}

func TestRecoverCmd_Restore(t *testing.T) {
	env := newTestEnv(t)
	env.seedUnfinishedWait(t, baseTime)
	env.clock.Advance(2 * time.Minute)

	out, err := env.run(t, "", "recover", "--restore")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored the wait for The One, 2 minutes 0 seconds so far")
	assert.Contains(t, out, "00:02:00")
	assert.Contains(t, out, "You waited 2 minutes 0 seconds for The One")
}

func TestRecoverCmd_MissingRecord(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, snapshot.NewFileStore(env.snapPath).Save(snapshot.TimerSnapshot{
		RecordID:  "gone",
		StartTime: baseTime,
		IsRunning: true,
	}))

	out, err := env.run(t, "", "recover", "--restore")
	require.NoError(t, err)
	assert.Contains(t, out, "could not be restored")

	out, err = env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: idle")
}

func TestRecoverCmd_Flags(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "recover")
	assert.Error(t, err)

	_, err = env.run(t, "", "recover", "--restore", "--discard")
	assert.Error(t, err)

	out, err := env.run(t, "", "recover", "--discard")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to recover")
}

func TestAnalyzeCmd(t *testing.T) {
	env := newTestEnv(t)

	chat := filepath.Join(env.dir, "chat.txt")
	require.NoError(t, os.WriteFile(chat, []byte("呵呵\n嗯\n好的\n"), 0644))

	out, err := env.run(t, "", "analyze", "--file", chat)
	require.NoError(t, err)
	assert.Contains(t, out, "Cause of death: Perfunctory replies")
	assert.Contains(t, out, "Keywords:       呵呵, 嗯, 好的")

	out, err = env.run(t, "hello\nhow are you\n", "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Cause of death: Cold shoulder")

	_, err = env.run(t, "", "analyze", "--image", filepath.Join(env.dir, "missing.png"))
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("[database]\ndriver = \"postgres\"\n"), 0644))

	_, err := env.run(t, "", "stats")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown", "record_id", "abc")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"record_id":"abc"`)
}
