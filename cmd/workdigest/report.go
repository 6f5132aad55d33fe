package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/goodtune/workdigest/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportDate   string
	reportPrompt bool
	reportJSON   bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the daily report for a saved summary",
	Long: `Report renders the rule-based daily report as Markdown. With --prompt it
prints the summarizer prompt built from the summary instead.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Date to report (YYYY-MM-DD), defaults to today")
	reportCmd.Flags().BoolVar(&reportPrompt, "prompt", false, "Print the summarizer prompt instead of the report")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := a.resolveDate(reportDate)
	if err != nil {
		return err
	}
	features, err := loadSavedFeatures(cmd, a, date)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportPrompt {
		_, err = fmt.Fprintf(out, "%s\n\n%s", report.SystemPrompt, report.Prompt(features))
		return err
	}

	rep := report.NewGenerator(nil, nil, a.logger).Generate(cmd.Context(), features)
	if reportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	_, err = fmt.Fprint(out, report.Markdown(rep))
	return err
}
