package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/livinlefevreloca/ghosted/internal/config"
	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/stats"
	"github.com/livinlefevreloca/ghosted/internal/timer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) waitCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Start a wait and show the timer until interrupted",
		Long: `Starts a new wait and renders the elapsed time, background color and a
rotating quote until you press Ctrl+C, which stops the wait.

If the previous run was killed mid-wait, resolve it first with
"ghosted recover --restore" or "ghosted recover --discard".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, _, closer, err := a.openMachine()
			if err != nil {
				return err
			}
			defer closer()

			if pending := machine.PendingSnapshot(); pending != nil {
				return fmt.Errorf("an unfinished wait started %s is pending, run \"ghosted recover --restore\" or \"ghosted recover --discard\"",
					pending.StartTime.Local().Format(time.DateTime))
			}

			record, err := machine.StartFor(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Waiting for %s since %s\n", record.TargetName, record.StartTime.Local().Format(time.DateTime))

			return a.runDisplay(cmd.Context(), machine)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "",
		"Who you are waiting for (default from config)")

	return cmd
}

func (a *app) recoverCmd() *cobra.Command {
	var restore, discard bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Restore or discard a wait left running by a previous run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, _, closer, err := a.openMachine()
			if err != nil {
				return err
			}
			defer closer()

			pending := machine.PendingSnapshot()
			if pending == nil {
				fmt.Fprintln(a.out, "Nothing to recover")
				return nil
			}

			if discard {
				closed, err := machine.Discard()
				if err != nil {
					return err
				}
				if closed == nil {
					fmt.Fprintln(a.out, "Discarded the unfinished wait, its record was already gone")
					return nil
				}
				fmt.Fprintf(a.out, "Discarded the wait for %s after %s\n",
					closed.TargetName, stats.FormatDuration(closed.Duration(*closed.EndTime)))
				return nil
			}

			record, err := machine.Restore()
			if errors.Is(err, timer.ErrConsistencyAnomaly) {
				fmt.Fprintln(a.out, "The unfinished wait could not be restored and was cleared")
				a.logger.Warn("restore failed", "error", err)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Restored the wait for %s, %s so far\n",
				record.TargetName, stats.FormatDuration(machine.Elapsed()))

			return a.runDisplay(cmd.Context(), machine)
		},
	}

	cmd.Flags().BoolVar(&restore, "restore", false, "Continue the unfinished wait")
	cmd.Flags().BoolVar(&discard, "discard", false, "Close the unfinished wait now")
	cmd.MarkFlagsMutuallyExclusive("restore", "discard")
	cmd.MarkFlagsOneRequired("restore", "discard")

	return cmd
}

// runDisplay renders the running wait until ctx is cancelled or a signal
// arrives, then stops the wait
func (a *app) runDisplay(ctx context.Context, machine *timer.Machine) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Metrics.Enabled {
		shutdown, err := startMetricsServer(a.cfg.Metrics, a.logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	events := machine.Subscribe(0)
	screen := newDisplay(a.out)
	screen.render(machine)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case event, ok := <-events:
			if !ok {
				break loop
			}
			switch event.Type {
			case timer.EventTick, timer.EventQuote:
				screen.render(machine)
			case timer.EventSnapshotError:
				a.logger.Debug("snapshot error reported", "message", event.Message)
			}
		}
	}
	screen.finish()

	record, err := machine.Stop()
	if err != nil {
		return fmt.Errorf("failed to stop the wait, run \"ghosted recover\" next time: %w", err)
	}
	a.printStopped(record)

	return nil
}

func (a *app) printStopped(record db.WaitRecord) {
	fmt.Fprintf(a.out, "You waited %s for %s\n",
		stats.FormatDuration(record.Duration(*record.EndTime)), record.TargetName)
}

// display draws one status line per update. On a terminal the line is
// redrawn in place over the wait's background color.
type display struct {
	out     io.Writer
	inPlace bool
}

func newDisplay(out io.Writer) *display {
	inPlace := false
	if f, ok := out.(*os.File); ok {
		inPlace = term.IsTerminal(int(f.Fd()))
	}
	return &display{out: out, inPlace: inPlace}
}

func (d *display) render(machine *timer.Machine) {
	color := machine.BackgroundColor()
	line := fmt.Sprintf("%s  %s  %s", machine.FormattedTime(), color.Hex(), machine.CurrentQuote())

	if !d.inPlace {
		fmt.Fprintln(d.out, line)
		return
	}
	r, g, b, _ := color.RGBA8()
	fmt.Fprintf(d.out, "\r\033[2K\033[48;2;%d;%d;%dm\033[97m %s \033[0m", r, g, b, line)
}

func (d *display) finish() {
	if d.inPlace {
		fmt.Fprintln(d.out)
	}
}

// startMetricsServer serves /metrics until the returned func is called
func startMetricsServer(cfg config.MetricsConfig, logger *slog.Logger) (func(), error) {
	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics enabled", "address", listener.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}, nil
}
