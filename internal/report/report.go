// Package report projects a daily Features summary into the shapes consumed
// downstream: the rule-based Report, the summarizer prompt and Markdown.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/timeutil"
	"github.com/rs/zerolog"
)

// MaxMainTasks bounds how many main tasks a report lists.
const MaxMainTasks = 3

// ErrNoSummarizer is reported in the fallback when no summarizer is configured.
var ErrNoSummarizer = errors.New("no summarizer configured")

// InsightCategory classifies an insight.
type InsightCategory string

const (
	InsightTechnical InsightCategory = "technical"
	InsightProcess   InsightCategory = "process"
	InsightOther     InsightCategory = "other"
)

// ParseInsightCategory maps a category name to its constant. Unknown names
// are filed under InsightOther.
func ParseInsightCategory(s string) InsightCategory {
	switch InsightCategory(strings.ToLower(strings.TrimSpace(s))) {
	case InsightTechnical:
		return InsightTechnical
	case InsightProcess:
		return InsightProcess
	default:
		return InsightOther
	}
}

// MainTask is one headline piece of work.
type MainTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Insight is a learning or note extracted from the day.
type Insight struct {
	Category InsightCategory `json:"category"`
	Content  string          `json:"content"`
}

// AppUsage is the report view of an application: whole minutes and rank.
type AppUsage struct {
	Name        string      `json:"name"`
	DurationMin int         `json:"duration_min"`
	Rank        domain.Rank `json:"rank"`
	Purpose     string      `json:"purpose,omitempty"`
}

// Summary is what a summarizer produces from the prompt.
type Summary struct {
	MainTasks   []MainTask `json:"main_tasks"`
	Insights    []Insight  `json:"insights"`
	WorkSummary string     `json:"work_summary"`
}

// Meta describes how a report was produced.
type Meta struct {
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`
	Model       string    `json:"llm_model,omitempty"`
	LLMSuccess  bool      `json:"llm_success"`
	LLMError    string    `json:"llm_error,omitempty"`
}

// Report is the complete daily report.
type Report struct {
	Meta        Meta       `json:"meta"`
	MainTasks   []MainTask `json:"main_tasks"`
	Insights    []Insight  `json:"insights"`
	WorkSummary string     `json:"work_summary"`
	AppUsage    []AppUsage `json:"app_usage"`
	Files       []string   `json:"files"`
}

// AppUsageFrom converts the per-application summaries, truncating durations
// to whole minutes.
func AppUsageFrom(f *domain.Features) []AppUsage {
	apps := f.AppSummary()
	usage := make([]AppUsage, 0, len(apps))
	for _, app := range apps {
		usage = append(usage, AppUsage{
			Name:        app.Name,
			DurationMin: int(app.DurationMin),
			Rank:        app.Rank,
		})
	}
	return usage
}

// New assembles a report from a summarizer result.
func New(summary Summary, meta Meta, apps []AppUsage, files []string) *Report {
	tasks := make([]MainTask, 0, MaxMainTasks)
	for _, task := range summary.MainTasks {
		if strings.TrimSpace(task.Title) == "" {
			continue
		}
		if len(tasks) == MaxMainTasks {
			break
		}
		tasks = append(tasks, task)
	}

	insights := make([]Insight, 0, len(summary.Insights))
	for _, insight := range summary.Insights {
		content := strings.TrimSpace(insight.Content)
		if content == "" {
			continue
		}
		insights = append(insights, Insight{Category: ParseInsightCategory(string(insight.Category)), Content: content})
	}

	return &Report{
		Meta:        meta,
		MainTasks:   tasks,
		Insights:    insights,
		WorkSummary: strings.TrimSpace(summary.WorkSummary),
		AppUsage:    nonNilApps(apps),
		Files:       nonNil(files),
	}
}

// Fallback builds the template report used when summarization fails. The
// rule-based sections are still filled in.
func Fallback(date string, cause error, generatedAt time.Time, apps []AppUsage, files []string) *Report {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &Report{
		Meta: Meta{
			Date:        date,
			GeneratedAt: generatedAt,
			LLMSuccess:  false,
			LLMError:    msg,
		},
		MainTasks: []MainTask{{
			Title:       "Activity log",
			Description: "Today's work could not be summarized automatically. See the application usage below for details.",
		}},
		Insights:    []Insight{},
		WorkSummary: "(automatic summary failed)",
		AppUsage:    nonNilApps(apps),
		Files:       nonNil(files),
	}
}

// Summarizer turns a prompt into a structured summary, usually by calling
// an LLM.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (Summary, error)
	Model() string
}

// Generator produces reports, falling back to the template report whenever
// the summarizer is missing or fails.
type Generator struct {
	summarizer Summarizer
	clock      timeutil.Clock
	logger     zerolog.Logger
}

// NewGenerator creates a Generator. summarizer may be nil.
func NewGenerator(summarizer Summarizer, clock timeutil.Clock, logger zerolog.Logger) *Generator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Generator{
		summarizer: summarizer,
		clock:      clock,
		logger:     logger.With().Str("component", "report").Logger(),
	}
}

// Generate always returns a report; summarizer errors are recorded in its
// metadata instead of being returned.
func (g *Generator) Generate(ctx context.Context, f *domain.Features) *Report {
	date := f.Meta().Date
	apps := AppUsageFrom(f)
	files := f.GlobalKeywords().TopFiles
	g.logger.Info().Str("date", date).Msg("Generating report")

	summary, err := g.summarize(ctx, f)
	if err != nil {
		g.logger.Warn().Err(err).Str("date", date).Msg("Summarization failed, using fallback report")
		return Fallback(date, err, g.clock.Now(), apps, files)
	}

	report := New(summary, Meta{
		Date:        date,
		GeneratedAt: g.clock.Now(),
		Model:       g.summarizer.Model(),
		LLMSuccess:  true,
	}, apps, files)
	g.logger.Info().
		Int("main_tasks", len(report.MainTasks)).
		Int("insights", len(report.Insights)).
		Msg("Report generated")
	return report
}

func (g *Generator) summarize(ctx context.Context, f *domain.Features) (Summary, error) {
	if g.summarizer == nil {
		return Summary{}, ErrNoSummarizer
	}
	prompt := SystemPrompt + "\n\n" + Prompt(f)
	g.logger.Debug().Int("prompt_length", len(prompt)).Msg("Calling summarizer")
	summary, err := g.summarizer.Summarize(ctx, prompt)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilApps(a []AppUsage) []AppUsage {
	if a == nil {
		return []AppUsage{}
	}
	return a
}
