package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/day"
	"github.com/goodtune/screentimer/internal/display"
	"github.com/goodtune/screentimer/internal/quota"
	"github.com/goodtune/screentimer/internal/storage"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's screen time",
	Long:  `Show the minutes used today, the daily limit and the time remaining without counting a minute.`,
	Example: `  screentimer status
  screentimer -c ~/.config/screen-timer/config.yaml status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for status mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorageReadOnly(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	limitSource, err := openLimits(cfg.Quota, false, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize limit source: %w", err)
	}
	defer limitSource.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engine := quota.NewEngine(quota.Options{
		Usage:  store.Usage(),
		Limits: limitSource,
		Logger: logger,
	})

	status, err := engine.Peek(ctx, time.Now())
	if err != nil {
		logger.Warn().Err(err).Msg("Status is incomplete")
	}

	if markers, err := store.Markers().GetMarkers(ctx, status.Date); err == nil {
		status.Locked = markers.Locked
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Warn().Err(err).Msg("Could not read markers")
	}

	printStatus(cmd.OutOrStdout(), status)
	return nil
}

// printStatus prints a status summary with the remaining time coloured by band.
func printStatus(w io.Writer, s quota.Status) {
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, divider)
	_, _ = cyan.Fprintln(w, "SCREEN TIME")
	_, _ = cyan.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "Date:       %s (%s)\n", s.Date, s.Date.Weekday())
	_, _ = fmt.Fprintf(w, "Used:       %s\n", formatMinutes(s.Used))
	if s.LimitKnown {
		_, _ = fmt.Fprintf(w, "Limit:      %s\n", formatMinutes(s.Limit))
	} else {
		_, _ = fmt.Fprintln(w, "Limit:      (unavailable)")
	}

	_, _ = cyan.Fprint(w, "Remaining:  ")
	if s.LimitKnown {
		_, _ = fmt.Fprintln(w, display.Colorize(display.BandFor(s.Remaining), display.Text(s)))
	} else {
		_, _ = fmt.Fprintln(w, display.Text(s))
	}

	if s.Locked {
		_, _ = color.New(color.FgRed, color.Bold).Fprintln(w, "Locked:     yes, the limit was enforced today")
	}

	_, _ = fmt.Fprintln(w)
}

// formatMinutes renders a minute count as hours and minutes.
func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func weekdayLabel(d day.Date) string {
	return day.WeekdayNames[d.Weekday()]
}
