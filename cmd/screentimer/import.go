package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goodtune/screentimer/internal/config"
	"github.com/goodtune/screentimer/internal/instance"
	"github.com/goodtune/screentimer/internal/storage"
	"github.com/goodtune/screentimer/internal/storage/file"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a legacy usage table",
	Long: `Merge the records of a legacy usage.txt into the configured store.
Counts are only ever raised, so importing the same file twice is harmless.`,
	Example: `  screentimer import ~/.local/share/screen-timer/usage.txt`,
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	records, err := file.ReadUsageFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	merged, err := importUsage(ctx, cfg, records)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ Imported %d record(s) from %s into %s storage\n", merged, args[0], cfg.Storage.Type)
	return nil
}

// importUsage merges records into the configured store while holding the
// instance lock, so a running enforcer cannot overwrite the result.
func importUsage(ctx context.Context, cfg *config.Config, records []storage.UsageRecord) (int, error) {
	lock, err := instance.Acquire(cfg.Instance.LockFile)
	if err != nil {
		return 0, fmt.Errorf("stop the enforcer before importing: %w", err)
	}
	defer func() { _ = lock.Release() }()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	return importRecords(ctx, store.Usage(), records)
}

// importRecords merges records into usage and returns how many were merged.
func importRecords(ctx context.Context, usage storage.UsageStore, records []storage.UsageRecord) (int, error) {
	for i, rec := range records {
		if err := usage.Merge(ctx, rec); err != nil {
			return i, fmt.Errorf("failed to merge %s: %w", rec.Date, err)
		}
	}
	return len(records), nil
}
