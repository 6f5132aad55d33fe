package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goodtune/workdigest/internal/domain"
)

// Prompt section limits.
const (
	promptBlocks    = 8
	promptBlockApps = 2
	promptApps      = 5
	promptKeywords  = 10
	promptFiles     = 10
	promptURLs      = 5
)

const noData = "(no data)"

// SystemPrompt frames the summarizer's task.
const SystemPrompt = `You write daily work reports from desktop activity logs.

## Output rules

1. Main tasks (at most 3)
   - Choose by time spent and importance
   - Mention concrete results or progress
   - Phrase each title as a completed action ("Implemented ...", "Investigated ...")

2. Insights
   - Extract technical findings, lessons and caveats
   - Category: technical, process or other

3. Work summary
   - One sentence describing the day

## Constraints
- Do not guess or fill in missing information
- Do not mention anything absent from the input
- Keep the language short and readable`

// Prompt renders the user prompt for f: the overview, up to 8 time blocks
// with their two leading applications, the top 5 applications, and the top
// keywords, files and URLs.
func Prompt(f *domain.Features) string {
	meta := f.Meta()
	global := f.GlobalKeywords()

	var blocks []string
	for i, block := range f.TimeBlocks() {
		if i == promptBlocks {
			break
		}
		names := make([]string, 0, promptBlockApps)
		for j, app := range block.Apps {
			if j == promptBlockApps {
				break
			}
			names = append(names, app.Name)
		}
		blocks = append(blocks, fmt.Sprintf("- %s-%s: %s", block.Start, block.End, strings.Join(names, ", ")))
	}

	var apps []string
	for i, app := range f.AppSummary() {
		if i == promptApps {
			break
		}
		apps = append(apps, fmt.Sprintf("- %s: %s min (%s)", app.Name, formatMinutes(app.DurationMin), app.Rank))
	}

	var b strings.Builder
	b.WriteString("Below is a summary of today's activity log. Write the daily report.\n\n")
	b.WriteString("## Overview\n")
	fmt.Fprintf(&b, "- Date: %s\n", meta.Date)
	fmt.Fprintf(&b, "- Period: %s - %s\n", meta.FirstCapture, meta.LastCapture)
	fmt.Fprintf(&b, "- Captures: %d\n", meta.CaptureCount)
	fmt.Fprintf(&b, "- Total duration: %s min\n", formatMinutes(meta.TotalDurationMin))
	writeSection(&b, "Time blocks", lines(blocks))
	writeSection(&b, "Applications", lines(apps))
	writeSection(&b, "Keywords", joined(global.TopKeywords, promptKeywords))
	writeSection(&b, "Files", joined(global.TopFiles, promptFiles))
	writeSection(&b, "URLs", joined(global.TopURLs, promptURLs))
	return b.String()
}

func writeSection(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "\n## %s\n%s\n", title, body)
}

func lines(items []string) string {
	if len(items) == 0 {
		return noData
	}
	return strings.Join(items, "\n")
}

func joined(items []string, limit int) string {
	if len(items) > limit {
		items = items[:limit]
	}
	if len(items) == 0 {
		return noData
	}
	return strings.Join(items, ", ")
}

func formatMinutes(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
