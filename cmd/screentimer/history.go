package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/storage"
)

var historyDays int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded daily usage",
	Long:  `Show the minutes recorded for recent days, oldest first.`,
	Example: `  screentimer history
  screentimer history --days 30
  screentimer history --days 0`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyDays, "days", "n", 14, "Number of days to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyDays < 0 {
		return fmt.Errorf("--days must not be negative")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorageReadOnly(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := store.Usage().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list usage: %w", err)
	}

	printHistory(cmd.OutOrStdout(), recentRecords(records, day.Of(time.Now()), historyDays))
	return nil
}

// recentRecords keeps the records dated within days of today, sorted by
// date. A days value of 0 keeps everything.
func recentRecords(records []storage.UsageRecord, today day.Date, days int) []storage.UsageRecord {
	var cutoff day.Date
	if days > 0 {
		cutoff = today.AddDays(-(days - 1))
	}

	out := make([]storage.UsageRecord, 0, len(records))
	for _, rec := range records {
		if !cutoff.IsZero() && rec.Date.Before(cutoff) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func printHistory(w io.Writer, records []storage.UsageRecord) {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(w, "No usage recorded.")
		return
	}

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintf(w, "%-12s %-10s %s\n", "DATE", "DAY", "USED")

	total := 0
	for _, rec := range records {
		total += rec.Minutes
		_, _ = fmt.Fprintf(w, "%-12s %-10s %s\n", rec.Date, weekdayLabel(rec.Date), formatMinutes(rec.Minutes))
	}

	_, _ = cyan.Fprintf(w, "%-12s %-10s %s\n", "TOTAL", fmt.Sprintf("%d days", len(records)), formatMinutes(total))
}
