package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/livinlefevreloca/ghosted/internal/clock"
	"github.com/livinlefevreloca/ghosted/internal/config"
	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/snapshot"
	"github.com/livinlefevreloca/ghosted/internal/timer"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the config is loaded
type app struct {
	configFile string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer

	// clock is replaced in tests
	clock clock.Clock
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, clock: clock.Real{}}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ghosted",
		Short: "Time how long you have been waiting for a reply",
		Long: `ghosted times how long you have been waiting for a reply, keeps a history
of every wait, and survives being killed mid-wait.

Examples:
  ghosted wait                         # Start waiting for The One
  ghosted wait --target Alex           # Start waiting for someone specific
  ghosted recover --restore            # Pick up a wait the last run left behind
  ghosted stats                        # How much time has gone down the drain
  ghosted history --limit 10           # The last ten waits
  ghosted analyze --file chat.txt      # Guess why they went quiet
  ghosted color 3600                   # The background color after an hour`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "",
		"Path to configuration file (TOML)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false,
		"Enable debug logging")

	root.AddCommand(
		a.waitCmd(),
		a.recoverCmd(),
		a.statusCmd(),
		a.statsCmd(),
		a.historyCmd(),
		a.analyzeCmd(),
		a.colorCmd(),
	)

	return root
}

// setup loads and validates the configuration and builds the logger
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = newLogger(cfg.Logging, a.errOut)
	slog.SetDefault(a.logger)

	a.logger.Debug("configuration loaded",
		"config_file", a.configFile,
		"dsn", cfg.Database.DSN,
		"snapshot", cfg.Snapshot.Path,
		"analyzer", cfg.Analyzer.Provider)

	return nil
}

// newLogger writes to errOut so the live display on stdout stays clean
func newLogger(cfg config.LoggingConfig, errOut io.Writer) *slog.Logger {
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	level, ok := levels[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(errOut, opts))
	}
	return slog.New(slog.NewTextHandler(errOut, opts))
}

func (a *app) openDB() (*db.DB, error) {
	a.logger.Debug("connecting to database", "driver", a.cfg.Database.Driver)
	database, err := db.OpenWithConfig(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	version, err := database.SchemaVersion()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	a.logger.Debug("database schema ready", "version", version)

	return database, nil
}

// openMachine wires the timer to the configured stores. The returned func
// closes both the machine and the database.
func (a *app) openMachine() (*timer.Machine, *db.DB, func(), error) {
	database, err := a.openDB()
	if err != nil {
		return nil, nil, nil, err
	}

	store := snapshot.NewFileStore(a.cfg.Snapshot.Path)
	machine, err := timer.New(a.cfg.Timer, database, store, a.clock, a.logger)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	closer := func() {
		machine.Close()
		database.Close()
	}
	return machine, database, closer, nil
}
