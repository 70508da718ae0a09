package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/livinlefevreloca/ghosted/internal/colormap"
	"github.com/livinlefevreloca/ghosted/internal/db"
	"github.com/livinlefevreloca/ghosted/internal/stats"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// statsOutput is the --json shape of the stats command
type statsOutput struct {
	Count                  int     `json:"count"`
	TotalWastedSeconds     float64 `json:"total_wasted_seconds"`
	AverageResponseSeconds float64 `json:"average_response_seconds"`
	LongestSeconds         float64 `json:"longest_seconds"`
	SimpIndex              int     `json:"simp_index"`
}

// recordOutput is the --json shape of one history entry
type recordOutput struct {
	ID              string     `json:"id"`
	TargetName      string     `json:"target_name"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds float64    `json:"duration_seconds"`
	Open            bool       `json:"open"`
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a wait is pending recovery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, _, closer, err := a.openMachine()
			if err != nil {
				return err
			}
			defer closer()

			fmt.Fprintf(a.out, "State: %s\n", machine.StateName())
			pending := machine.PendingSnapshot()
			if pending == nil {
				return nil
			}

			since := a.clock.Now().Sub(pending.StartTime)
			if since < 0 {
				since = 0
			}
			fmt.Fprintf(a.out, "Unfinished wait: %s\n", pending.RecordID)
			fmt.Fprintf(a.out, "Started: %s (%s ago)\n",
				pending.StartTime.Local().Format(time.DateTime), stats.FormatDuration(since))
			fmt.Fprintln(a.out, "Run \"ghosted recover --restore\" or \"ghosted recover --discard\"")
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize every finished wait",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			records, err := database.QueryClosed()
			if err != nil {
				return fmt.Errorf("failed to load records: %w", err)
			}
			summary := stats.Compute(records)

			if asJSON {
				return a.writeJSON(statsOutput{
					Count:                  summary.Count,
					TotalWastedSeconds:     summary.TotalWasted.Seconds(),
					AverageResponseSeconds: summary.AverageResponse.Seconds(),
					LongestSeconds:         summary.Longest.Seconds(),
					SimpIndex:              summary.SimpIndex,
				})
			}

			fmt.Fprintf(a.out, "Total waits:      %d\n", summary.Count)
			fmt.Fprintf(a.out, "Time wasted:      %s\n", stats.FormatHoursMinutes(summary.TotalWasted))
			fmt.Fprintf(a.out, "Average response: %s\n", stats.FormatHoursMinutes(summary.AverageResponse))
			fmt.Fprintf(a.out, "Longest wait:     %s\n", stats.FormatDuration(summary.Longest))
			fmt.Fprintf(a.out, "Simp index:       %d/%d\n", summary.SimpIndex, stats.MaxSimpIndex)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List waits, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			records, err := database.ListRecords(limit)
			if err != nil {
				return fmt.Errorf("failed to load records: %w", err)
			}
			now := a.clock.Now()

			if asJSON {
				output := make([]recordOutput, 0, len(records))
				for _, record := range records {
					output = append(output, recordOutput{
						ID:              record.ID,
						TargetName:      record.TargetName,
						StartTime:       record.StartTime,
						EndTime:         record.EndTime,
						DurationSeconds: record.Duration(now).Seconds(),
						Open:            record.IsOpen(),
					})
				}
				return a.writeJSON(output)
			}

			if len(records) == 0 {
				fmt.Fprintln(a.out, "No waits yet")
				return nil
			}
			a.printHistory(records, now)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of waits to list (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func (a *app) printHistory(records []db.WaitRecord, now time.Time) {
	width := runewidth.StringWidth("TARGET")
	for _, record := range records {
		if w := runewidth.StringWidth(record.TargetName); w > width {
			width = w
		}
	}

	fmt.Fprintf(a.out, "%s  %-19s  %s\n", runewidth.FillRight("TARGET", width), "STARTED", "DURATION")
	for _, record := range records {
		duration := stats.FormatDuration(record.Duration(now))
		if record.IsOpen() {
			duration += " (open)"
		}
		fmt.Fprintf(a.out, "%s  %-19s  %s\n",
			runewidth.FillRight(record.TargetName, width),
			record.StartTime.Local().Format(time.DateTime),
			duration)
	}
}

func (a *app) colorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "color SECONDS",
		Short: "Print the background color for a wait of the given length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			if err != nil {
				return fmt.Errorf("invalid seconds %q: %w", args[0], err)
			}

			color := colormap.ForElapsed(seconds)
			r, g, b, _ := color.RGBA8()
			fmt.Fprintf(a.out, "%s rgb(%d, %d, %d)\n", color.Hex(), r, g, b)
			return nil
		},
	}
}

func (a *app) writeJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}
