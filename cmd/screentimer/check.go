package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/day"
)

var (
	checkDay  string
	checkDate string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the daily limit for a day",
	Long:  `Check the daily limit the configured limit source yields for a weekday or date.`,
	Example: `  screentimer check
  screentimer check --day saturday
  screentimer -c config.yaml check --date 2025-12-25`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkDay, "day", "", "Day of week (monday, tuesday, etc.) - defaults to today")
	checkCmd.Flags().StringVar(&checkDate, "date", "", "Calendar date (YYYY-MM-DD)")
	checkCmd.MarkFlagsMutuallyExclusive("day", "date")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	target, err := resolveCheckDate(checkDay, checkDate, time.Now())
	if err != nil {
		return fmt.Errorf("invalid date specification: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	limitSource, err := openLimits(cfg.Quota, false, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize limit source: %w", err)
	}
	defer limitSource.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	limit, err := limitSource.LimitFor(ctx, target)
	if err != nil {
		return fmt.Errorf("limit source %s: %w", cfg.Quota.LimitSource, err)
	}

	printCheckResult(cmd.OutOrStdout(), cfg.Quota.LimitSource, target, limit)
	return nil
}

// resolveCheckDate turns the --day and --date flags into a date. A weekday
// resolves to its next occurrence, today included.
func resolveCheckDate(dayStr, dateStr string, now time.Time) (day.Date, error) {
	today := day.Of(now)

	switch {
	case dateStr != "":
		return day.Parse(dateStr)
	case dayStr != "":
		weekday, err := day.ParseWeekday(dayStr)
		if err != nil {
			return day.Date{}, err
		}
		offset := int(weekday - today.Weekday())
		if offset < 0 {
			offset += 7
		}
		return today.AddDays(offset), nil
	default:
		return today, nil
	}
}

func printCheckResult(w io.Writer, source string, date day.Date, limit int) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	_, _ = fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, divider)
	_, _ = cyan.Fprintln(w, "DAILY LIMIT CHECK")
	_, _ = cyan.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "Date:       %s (%s)\n", date, weekdayLabel(date))
	_, _ = fmt.Fprintf(w, "Source:     %s\n", source)
	_, _ = fmt.Fprintln(w)

	_, _ = cyan.Fprint(w, "Limit:      ")
	if limit == 0 {
		_, _ = red.Fprintln(w, "NONE")
		_, _ = fmt.Fprintln(w, "            → The session locks on the first minute")
	} else {
		_, _ = green.Fprintf(w, "%s (%d minutes)\n", formatMinutes(limit), limit)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = cyan.Fprintln(w, divider)
	_, _ = fmt.Fprintln(w)
}
