// Package textutil holds the small ranking and naming helpers shared by the
// aggregation engine and the report projections.
package textutil

import (
	"sort"
	"strings"

	"github.com/goodtune/workdigest/internal/domain"
)

// processDisplayNames maps raw process names to friendly application names.
// Lookups are case-sensitive.
var processDisplayNames = map[string]string{
	"Code.exe":            "Visual Studio Code",
	"chrome.exe":          "Google Chrome",
	"firefox.exe":         "Firefox",
	"slack.exe":           "Slack",
	"WINWORD.EXE":         "Microsoft Word",
	"EXCEL.EXE":           "Microsoft Excel",
	"POWERPNT.EXE":        "Microsoft PowerPoint",
	"Notion.exe":          "Notion",
	"explorer.exe":        "Explorer",
	"msedge.exe":          "Microsoft Edge",
	"Teams.exe":           "Microsoft Teams",
	"Outlook.exe":         "Microsoft Outlook",
	"Discord.exe":         "Discord",
	"WindowsTerminal.exe": "Windows Terminal",
	"cmd.exe":             "Command Prompt",
	"powershell.exe":      "PowerShell",
	"notepad.exe":         "Notepad",
	"notepad++.exe":       "Notepad++",
	"ONENOTE.EXE":         "Microsoft OneNote",
	"Zoom.exe":            "Zoom",
	"python.exe":          "Python",
	"node.exe":            "Node.js",
}

// UnknownApp is the display name used when no process name was captured.
const UnknownApp = "Unknown"

// NormalizeAppName returns the display name for a process. Unmapped names
// pass through unchanged and an empty name becomes UnknownApp.
func NormalizeAppName(process string) string {
	if process == "" {
		return UnknownApp
	}
	if name, ok := processDisplayNames[process]; ok {
		return name
	}
	return process
}

// Rank thresholds, as a percentage of the total.
const (
	HighShare   = 30.0
	MediumShare = 10.0
)

// ClassifyRank grades count by its share of total.
func ClassifyRank(count, total int) domain.Rank {
	if total <= 0 {
		return domain.RankLow
	}
	share := float64(count) / float64(total) * 100
	switch {
	case share >= HighShare:
		return domain.RankHigh
	case share >= MediumShare:
		return domain.RankMedium
	default:
		return domain.RankLow
	}
}

// Counter tallies tokens case-insensitively while remembering the first
// spelling seen and the order in which keys first appeared.
type Counter struct {
	counts   map[string]int
	display  map[string]string
	order    []string
	foldCase bool
}

// NewCounter returns a case-insensitive counter.
func NewCounter() *Counter {
	return &Counter{counts: map[string]int{}, display: map[string]string{}, foldCase: true}
}

// NewExactCounter returns a counter that treats differently cased tokens as distinct.
func NewExactCounter() *Counter {
	return &Counter{counts: map[string]int{}, display: map[string]string{}}
}

// Add counts token once. Empty tokens are ignored.
func (c *Counter) Add(token string) {
	if token == "" {
		return
	}
	key := token
	if c.foldCase {
		key = strings.ToLower(token)
	}
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
		c.display[key] = token
	}
	c.counts[key]++
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int { return len(c.order) }

// Count returns how many times token was added.
func (c *Counter) Count(token string) int {
	if c.foldCase {
		token = strings.ToLower(token)
	}
	return c.counts[token]
}

// Entry is one ranked counter key.
type Entry struct {
	Value string
	Count int
}

// MostCommon returns entries by descending count, ties broken by first
// occurrence. A limit of zero or less returns every entry.
func (c *Counter) MostCommon(limit int) []Entry {
	entries := make([]Entry, len(c.order))
	for i, key := range c.order {
		entries[i] = Entry{Value: c.display[key], Count: c.counts[key]}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Top returns the values of MostCommon(limit).
func (c *Counter) Top(limit int) []string {
	entries := c.MostCommon(limit)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// MergeKeywords gathers field from every record and ranks the tokens by
// case-insensitive frequency. Ties keep first-occurrence order and each key is
// displayed with the first spelling seen.
func MergeKeywords(records []*domain.Record, field domain.Field) []string {
	counter := NewCounter()
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, v := range r.Values(field) {
			counter.Add(v)
		}
	}
	return counter.Top(0)
}
