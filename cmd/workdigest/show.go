package main

import (
	"fmt"
	"os"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/spf13/cobra"
)

var (
	showDate string
	showJSON bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a saved daily summary",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", "Date to show (YYYY-MM-DD), defaults to today")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the stored JSON document")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	date, err := a.resolveDate(showDate)
	if err != nil {
		return err
	}
	features, err := loadSavedFeatures(cmd, a, date)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		data, err := storage.EncodeFeatures(features)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}
	printFeatures(out, features, true)
	return nil
}

func loadSavedFeatures(cmd *cobra.Command, a *app, date string) (*domain.Features, error) {
	features, err := a.store.LoadFeatures(cmd.Context(), date)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary for %s: %w", date, err)
	}
	if features == nil {
		return nil, fmt.Errorf("no summary saved for %s, run `workdigest aggregate --date %s` first", date, date)
	}
	return features, nil
}
