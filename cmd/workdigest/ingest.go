package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/storage/file"
	"github.com/spf13/cobra"
)

var ingestDate string

var ingestCmd = &cobra.Command{
	Use:   "ingest [flags] FILE",
	Short: "Copy a JSONL activity log into the configured store",
	Long: `Ingest reads a raw JSONL activity log, skipping malformed lines, and appends
its records to the configured store. When --date is omitted the date is taken
from a YYYY-MM-DD.jsonl file name.`,
	Example: `  workdigest ingest ~/captures/2024-01-15.jsonl
  workdigest --config redis.yaml ingest --date 2024-01-15 export.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "Date the records belong to (YYYY-MM-DD)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	source := args[0]

	date := ingestDate
	if date == "" {
		date = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	if err := storage.ValidateDate(date); err != nil {
		return fmt.Errorf("cannot determine date for %s, pass --date: %w", source, err)
	}

	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if fileStore, ok := a.store.(*file.Store); ok && samePath(source, fileStore.LogPath(date)) {
		return fmt.Errorf("%s is already the store's raw log for %s", source, date)
	}

	records, stats, err := file.ReadLog(cmd.Context(), source, a.logger)
	if err != nil {
		return err
	}

	location, err := a.store.AppendRawRecords(cmd.Context(), date, records)
	if err != nil {
		return fmt.Errorf("failed to append records: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = color.New(color.FgGreen).Fprintf(out, "Ingested %d records for %s into %s\n", len(records), date, location)
	if stats.Malformed > 0 {
		_, _ = color.New(color.FgYellow).Fprintf(out, "Skipped %d malformed of %d lines\n", stats.Malformed, stats.TotalLines)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
