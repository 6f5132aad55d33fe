package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/workdigest/internal/domain"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.Bold)
	dimColor    = color.New(color.Faint)
	errorColor  = color.New(color.FgRed, color.Bold)
)

func rankColor(rank domain.Rank) *color.Color {
	switch rank {
	case domain.RankHigh:
		return color.New(color.FgGreen, color.Bold)
	case domain.RankMedium:
		return color.New(color.FgYellow)
	default:
		return dimColor
	}
}

// printFeatures renders a summary for humans. withBlocks adds the time block table.
func printFeatures(w io.Writer, f *domain.Features, withBlocks bool) {
	meta := f.Meta()
	_, _ = headerColor.Fprintf(w, "Daily summary %s\n", meta.Date)
	printField(w, "Captures", fmt.Sprintf("%d", meta.CaptureCount))
	printField(w, "Period", fmt.Sprintf("%s - %s", meta.FirstCapture, meta.LastCapture))
	printField(w, "Duration", fmt.Sprintf("%g min (%.1f h active)", meta.TotalDurationMin, f.ActiveHours()))
	printField(w, "Generated", meta.GeneratedAt)

	if !f.HasData() {
		_, _ = dimColor.Fprintln(w, "\nNo activity captured.")
		return
	}

	_, _ = headerColor.Fprintln(w, "\nApplications")
	for _, app := range f.AppSummary() {
		_, _ = fmt.Fprintf(w, "  %-28s %6.1f min  ", app.Name, app.DurationMin)
		_, _ = rankColor(app.Rank).Fprintf(w, "%-6s", app.Rank)
		_, _ = dimColor.Fprintf(w, " (%d captures)\n", app.Count)
	}

	if withBlocks {
		_, _ = headerColor.Fprintln(w, "\nTime blocks")
		for _, block := range f.TimeBlocks() {
			names := make([]string, 0, len(block.Apps))
			for _, usage := range block.Apps {
				names = append(names, fmt.Sprintf("%s %g%%", usage.Name, usage.Percent))
			}
			_, _ = fmt.Fprintf(w, "  %s-%s  %s\n", block.Start, block.End, strings.Join(names, ", "))
		}
	}

	global := f.GlobalKeywords()
	_, _ = headerColor.Fprintln(w, "\nTop keywords")
	printList(w, global.TopKeywords)
	if len(global.TopFiles) > 0 {
		_, _ = headerColor.Fprintln(w, "\nTop files")
		printList(w, global.TopFiles)
	}
	if len(global.TopURLs) > 0 {
		_, _ = headerColor.Fprintln(w, "\nTop URLs")
		printList(w, global.TopURLs)
	}
}

func printField(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %-10s", label+":")
	_, _ = fmt.Fprintln(w, value)
}

func printList(w io.Writer, items []string) {
	if len(items) == 0 {
		_, _ = dimColor.Fprintln(w, "  (none)")
		return
	}
	_, _ = fmt.Fprintf(w, "  %s\n", strings.Join(items, ", "))
}
