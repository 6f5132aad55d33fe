package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var listDetails bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List days with raw activity and whether they are aggregated",
	Long: `List prints every day that holds raw activity or a saved summary. With
--details each saved summary is loaded to show its capture count and duration.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listDetails, "details", false, "Load each summary to show captures and duration")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	rawDates, err := a.store.Dates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list dates: %w", err)
	}
	summaryDates, err := a.store.SummaryDates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list summaries: %w", err)
	}

	hasRaw := make(map[string]bool, len(rawDates))
	for _, date := range rawDates {
		hasRaw[date] = true
	}
	hasSummary := make(map[string]bool, len(summaryDates))
	dates := append([]string(nil), rawDates...)
	for _, date := range summaryDates {
		hasSummary[date] = true
		if !hasRaw[date] {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	out := cmd.OutOrStdout()
	if len(dates) == 0 {
		_, _ = dimColor.Fprintln(out, "No activity logs found.")
		return nil
	}

	for _, date := range dates {
		_, _ = fmt.Fprintf(out, "%s  ", date)
		if !hasSummary[date] {
			_, _ = dimColor.Fprintln(out, "not aggregated")
			continue
		}
		if !hasRaw[date] {
			_, _ = dimColor.Fprint(out, "(raw log gone) ")
		}
		if !listDetails {
			_, _ = fmt.Fprintln(out, "aggregated")
			continue
		}

		features, err := a.store.LoadFeatures(ctx, date)
		switch {
		case err != nil:
			_, _ = errorColor.Fprintf(out, "summary unreadable: %v\n", err)
		case features == nil:
			_, _ = dimColor.Fprintln(out, "not aggregated")
		default:
			meta := features.Meta()
			_, _ = fmt.Fprintf(out, "%d captures, %g min, generated %s\n",
				meta.CaptureCount, meta.TotalDurationMin, meta.GeneratedTime().Format("2006-01-02 15:04"))
		}
	}
	return nil
}
