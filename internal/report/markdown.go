package report

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders r as a Markdown document.
func Markdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Daily report %s\n\n", r.Meta.Date)

	if r.WorkSummary != "" {
		fmt.Fprintf(&b, "> %s\n\n", r.WorkSummary)
	}

	b.WriteString("## Main tasks\n\n")
	if len(r.MainTasks) == 0 {
		b.WriteString(noData + "\n")
	}
	for i, task := range r.MainTasks {
		fmt.Fprintf(&b, "%d. **%s**", i+1, task.Title)
		if task.Description != "" {
			fmt.Fprintf(&b, ": %s", task.Description)
		}
		b.WriteString("\n")
	}

	if len(r.Insights) > 0 {
		b.WriteString("\n## Insights\n\n")
		for _, insight := range r.Insights {
			fmt.Fprintf(&b, "- [%s] %s\n", insight.Category, insight.Content)
		}
	}

	b.WriteString("\n## Application usage\n\n")
	if len(r.AppUsage) == 0 {
		b.WriteString(noData + "\n")
	} else {
		b.WriteString("| Application | Minutes | Rank |\n")
		b.WriteString("|---|---:|---|\n")
		for _, app := range r.AppUsage {
			fmt.Fprintf(&b, "| %s | %d | %s |\n", escapeCell(app.Name), app.DurationMin, app.Rank)
		}
	}

	if len(r.Files) > 0 {
		b.WriteString("\n## Files\n\n")
		for _, file := range r.Files {
			fmt.Fprintf(&b, "- `%s`\n", file)
		}
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "_Generated %s", r.Meta.GeneratedAt.Format(time.RFC3339))
	if r.Meta.Model != "" {
		fmt.Fprintf(&b, " by %s", r.Meta.Model)
	}
	if !r.Meta.LLMSuccess {
		fmt.Fprintf(&b, " (fallback: %s)", r.Meta.LLMError)
	}
	b.WriteString("_\n")
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
