package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/notify"
	"github.com/spf13/cobra"
)

var (
	aggregateDate   string
	aggregateNotify bool
	aggregateNoSave bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate a day's raw activity log into a summary",
	Long: `Aggregate reads the raw activity records for a day, reduces them to time
blocks, per-application usage and keyword rankings, and saves the result.`,
	Example: `  workdigest aggregate
  workdigest aggregate --date 2024-01-15 --no-save`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateDate, "date", "", "Date to aggregate (YYYY-MM-DD), defaults to today")
	aggregateCmd.Flags().BoolVar(&aggregateNotify, "notify", false, "Show a desktop notification with the result")
	aggregateCmd.Flags().BoolVar(&aggregateNoSave, "no-save", false, "Print the summary without saving it")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := a.resolveDate(aggregateDate)
	if err != nil {
		return err
	}
	svc, err := a.aggregator()
	if err != nil {
		return err
	}

	notifyCfg := a.cfg.Notify
	notifyCfg.Enabled = notifyCfg.Enabled || aggregateNotify
	notifier := notify.New(notifyCfg, a.logger)

	ctx := cmd.Context()
	var (
		features *domain.Features
		location string
	)
	if aggregateNoSave {
		features, err = svc.Aggregate(ctx, date)
	} else {
		features, location, err = svc.AggregateAndSave(ctx, date)
	}
	if err != nil {
		notifier.Failure(err)
		return err
	}

	out := cmd.OutOrStdout()
	printFeatures(out, features, false)
	if location != "" {
		_, _ = color.New(color.FgGreen).Fprintf(out, "\nSaved to %s\n", location)
	}

	topApp := ""
	if top, ok := features.TopApp(); ok {
		topApp = top.Name
	}
	notifier.Success(date, features.Meta().CaptureCount, topApp)
	return nil
}
