package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goodtune/workdigest/internal/timeutil"
)

// Upper bounds on ranked lists carried by the summary entities.
const (
	MaxBlockKeywords  = 20
	MaxBlockFiles     = 10
	MaxAppKeywords    = 15
	MaxAppFiles       = 10
	MaxAppURLs        = 10
	MaxGlobalKeywords = 50
	MaxGlobalURLs     = 20
	MaxGlobalFiles    = 20
)

var (
	clockPattern   = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)
	capturePattern = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]:[0-5][0-9]$`)
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// AppUsage is an application's share of a single time block.
type AppUsage struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// NewAppUsage validates percent against [0, 100] and rounds it to one decimal.
func NewAppUsage(name string, percent float64) (AppUsage, error) {
	u := AppUsage{Name: strings.TrimSpace(name), Percent: percent}
	if err := u.normalize(); err != nil {
		return AppUsage{}, err
	}
	return u, nil
}

func (u *AppUsage) normalize() error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return invalid("app_usage", "name", u.Name, "must not be empty")
	}
	if math.IsNaN(u.Percent) || u.Percent < 0 || u.Percent > 100 {
		return invalid("app_usage", "percent", u.Percent, "must be between 0 and 100")
	}
	u.Percent = timeutil.RoundTenth(u.Percent)
	return nil
}

// TimeBlock summarizes usage for one fixed-width wall-clock interval.
type TimeBlock struct {
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Apps        []AppUsage `json:"apps"`
	TopKeywords []string   `json:"top_keywords"`
	TopFiles    []string   `json:"top_files"`
}

// NewTimeBlock validates the block and orders its apps by percent, highest first.
func NewTimeBlock(start, end string, apps []AppUsage, topKeywords, topFiles []string) (TimeBlock, error) {
	b := TimeBlock{
		Start:       start,
		End:         end,
		Apps:        append([]AppUsage(nil), apps...),
		TopKeywords: cloneStrings(topKeywords),
		TopFiles:    cloneStrings(topFiles),
	}
	if err := b.normalize(); err != nil {
		return TimeBlock{}, err
	}
	return b, nil
}

func (b *TimeBlock) normalize() error {
	if !clockPattern.MatchString(b.Start) {
		return invalid("time_block", "start", b.Start, "must match HH:MM")
	}
	if !clockPattern.MatchString(b.End) {
		return invalid("time_block", "end", b.End, "must match HH:MM")
	}
	if len(b.TopKeywords) > MaxBlockKeywords {
		return invalid("time_block", "top_keywords", len(b.TopKeywords), fmt.Sprintf("at most %d entries", MaxBlockKeywords))
	}
	if len(b.TopFiles) > MaxBlockFiles {
		return invalid("time_block", "top_files", len(b.TopFiles), fmt.Sprintf("at most %d entries", MaxBlockFiles))
	}
	apps := make([]AppUsage, len(b.Apps))
	for i, app := range b.Apps {
		if err := app.normalize(); err != nil {
			return wrapIndex("apps", i, err)
		}
		apps[i] = app
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].Percent > apps[j].Percent })
	b.Apps = apps
	b.TopKeywords = nonNil(b.TopKeywords)
	b.TopFiles = nonNil(b.TopFiles)
	return nil
}

// DurationMinutes returns the block width. A block ending at midnight wraps
// past 24:00, which is taken into account.
func (b TimeBlock) DurationMinutes() int {
	start := clockMinutes(b.Start)
	end := clockMinutes(b.End)
	if end <= start {
		end += 24 * 60
	}
	return end - start
}

func clockMinutes(s string) int {
	var h, m int
	_, _ = fmt.Sscanf(s, "%d:%d", &h, &m)
	return h*60 + m
}

func (b TimeBlock) clone() TimeBlock {
	return TimeBlock{
		Start:       b.Start,
		End:         b.End,
		Apps:        append([]AppUsage{}, b.Apps...),
		TopKeywords: cloneStrings(b.TopKeywords),
		TopFiles:    cloneStrings(b.TopFiles),
	}
}

// AppSummary is the whole-day rollup for one application.
type AppSummary struct {
	Name        string   `json:"name"`
	Process     string   `json:"process"`
	Count       int      `json:"count"`
	DurationMin float64  `json:"duration_min"`
	Rank        Rank     `json:"rank"`
	TopKeywords []string `json:"top_keywords"`
	TopFiles    []string `json:"top_files,omitempty"`
	TopURLs     []string `json:"top_urls,omitempty"`
}

// NewAppSummary validates a per-application rollup. Empty file and URL lists
// are stored as absent.
func NewAppSummary(s AppSummary) (AppSummary, error) {
	s.TopKeywords = cloneStrings(s.TopKeywords)
	s.TopFiles = cloneStrings(s.TopFiles)
	s.TopURLs = cloneStrings(s.TopURLs)
	if err := s.normalize(); err != nil {
		return AppSummary{}, err
	}
	return s, nil
}

func (s *AppSummary) normalize() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Process = strings.TrimSpace(s.Process)
	if s.Name == "" {
		return invalid("app_summary", "name", s.Name, "must not be empty")
	}
	if s.Process == "" {
		return invalid("app_summary", "process", s.Process, "must not be empty")
	}
	if s.Count < 1 {
		return invalid("app_summary", "count", s.Count, "must be at least 1")
	}
	if math.IsNaN(s.DurationMin) || s.DurationMin < 0 {
		return invalid("app_summary", "duration_min", s.DurationMin, "must not be negative")
	}
	if !s.Rank.Valid() {
		return invalid("app_summary", "rank", s.Rank, "must be HIGH, MEDIUM, or LOW")
	}
	if len(s.TopKeywords) > MaxAppKeywords {
		return invalid("app_summary", "top_keywords", len(s.TopKeywords), fmt.Sprintf("at most %d entries", MaxAppKeywords))
	}
	if len(s.TopFiles) > MaxAppFiles {
		return invalid("app_summary", "top_files", len(s.TopFiles), fmt.Sprintf("at most %d entries", MaxAppFiles))
	}
	if len(s.TopURLs) > MaxAppURLs {
		return invalid("app_summary", "top_urls", len(s.TopURLs), fmt.Sprintf("at most %d entries", MaxAppURLs))
	}
	s.DurationMin = timeutil.RoundTenth(s.DurationMin)
	s.TopKeywords = nonNil(s.TopKeywords)
	if len(s.TopFiles) == 0 {
		s.TopFiles = nil
	}
	if len(s.TopURLs) == 0 {
		s.TopURLs = nil
	}
	return nil
}

func (s AppSummary) clone() AppSummary {
	out := s
	out.TopKeywords = cloneStrings(s.TopKeywords)
	if s.TopFiles != nil {
		out.TopFiles = cloneStrings(s.TopFiles)
	}
	if s.TopURLs != nil {
		out.TopURLs = cloneStrings(s.TopURLs)
	}
	return out
}

// GlobalKeywords holds the whole-day rankings.
type GlobalKeywords struct {
	TopKeywords []string `json:"top_keywords"`
	TopURLs     []string `json:"top_urls"`
	TopFiles    []string `json:"top_files"`
}

// NewGlobalKeywords validates list bounds.
func NewGlobalKeywords(keywords, urls, files []string) (GlobalKeywords, error) {
	g := GlobalKeywords{
		TopKeywords: cloneStrings(keywords),
		TopURLs:     cloneStrings(urls),
		TopFiles:    cloneStrings(files),
	}
	if err := g.normalize(); err != nil {
		return GlobalKeywords{}, err
	}
	return g, nil
}

func (g *GlobalKeywords) normalize() error {
	if len(g.TopKeywords) > MaxGlobalKeywords {
		return invalid("global_keywords", "top_keywords", len(g.TopKeywords), fmt.Sprintf("at most %d entries", MaxGlobalKeywords))
	}
	if len(g.TopURLs) > MaxGlobalURLs {
		return invalid("global_keywords", "top_urls", len(g.TopURLs), fmt.Sprintf("at most %d entries", MaxGlobalURLs))
	}
	if len(g.TopFiles) > MaxGlobalFiles {
		return invalid("global_keywords", "top_files", len(g.TopFiles), fmt.Sprintf("at most %d entries", MaxGlobalFiles))
	}
	g.TopKeywords = nonNil(g.TopKeywords)
	g.TopURLs = nonNil(g.TopURLs)
	g.TopFiles = nonNil(g.TopFiles)
	return nil
}

func (g GlobalKeywords) clone() GlobalKeywords {
	return GlobalKeywords{
		TopKeywords: cloneStrings(g.TopKeywords),
		TopURLs:     cloneStrings(g.TopURLs),
		TopFiles:    cloneStrings(g.TopFiles),
	}
}

// FeaturesMeta is the run metadata of an aggregation.
type FeaturesMeta struct {
	Date             string  `json:"date"`
	GeneratedAt      string  `json:"generated_at"`
	CaptureCount     int     `json:"capture_count"`
	FirstCapture     string  `json:"first_capture"`
	LastCapture      string  `json:"last_capture"`
	TotalDurationMin float64 `json:"total_duration_min"`
}

// NewFeaturesMeta validates the metadata patterns and counts.
func NewFeaturesMeta(m FeaturesMeta) (FeaturesMeta, error) {
	if err := m.normalize(); err != nil {
		return FeaturesMeta{}, err
	}
	return m, nil
}

func (m *FeaturesMeta) normalize() error {
	if !datePattern.MatchString(m.Date) {
		return invalid("meta", "date", m.Date, "must match YYYY-MM-DD")
	}
	if _, err := time.Parse(timeutil.DateLayout, m.Date); err != nil {
		return invalid("meta", "date", m.Date, "not a calendar date")
	}
	if _, err := timeutil.ParseTimestamp(m.GeneratedAt); err != nil {
		return invalid("meta", "generated_at", m.GeneratedAt, "must be an ISO-8601 timestamp with offset")
	}
	if m.CaptureCount < 0 {
		return invalid("meta", "capture_count", m.CaptureCount, "must not be negative")
	}
	if !capturePattern.MatchString(m.FirstCapture) {
		return invalid("meta", "first_capture", m.FirstCapture, "must match HH:MM:SS")
	}
	if !capturePattern.MatchString(m.LastCapture) {
		return invalid("meta", "last_capture", m.LastCapture, "must match HH:MM:SS")
	}
	if math.IsNaN(m.TotalDurationMin) || m.TotalDurationMin < 0 {
		return invalid("meta", "total_duration_min", m.TotalDurationMin, "must not be negative")
	}
	m.TotalDurationMin = timeutil.RoundTenth(m.TotalDurationMin)
	return nil
}

// GeneratedTime returns the parsed generation timestamp.
func (m FeaturesMeta) GeneratedTime() time.Time {
	ts, _ := timeutil.ParseTimestamp(m.GeneratedAt)
	return ts
}

// Features is the immutable daily summary. Its fields are only reachable
// through accessors that return copies, so a constructed value never changes.
type Features struct {
	meta           FeaturesMeta
	timeBlocks     []TimeBlock
	appSummary     []AppSummary
	globalKeywords GlobalKeywords
}

// NewFeatures validates every component and assembles the aggregate root.
// App summaries are ordered by duration, longest first.
func NewFeatures(meta FeaturesMeta, blocks []TimeBlock, apps []AppSummary, global GlobalKeywords) (*Features, error) {
	if err := meta.normalize(); err != nil {
		return nil, err
	}

	timeBlocks := make([]TimeBlock, len(blocks))
	for i, b := range blocks {
		b = b.clone()
		if err := b.normalize(); err != nil {
			return nil, wrapIndex("time_blocks", i, err)
		}
		timeBlocks[i] = b
	}

	appSummary := make([]AppSummary, len(apps))
	for i, a := range apps {
		a = a.clone()
		if err := a.normalize(); err != nil {
			return nil, wrapIndex("app_summary", i, err)
		}
		appSummary[i] = a
	}
	sort.SliceStable(appSummary, func(i, j int) bool {
		return appSummary[i].DurationMin > appSummary[j].DurationMin
	})

	global = global.clone()
	if err := global.normalize(); err != nil {
		return nil, err
	}

	return &Features{
		meta:           meta,
		timeBlocks:     timeBlocks,
		appSummary:     appSummary,
		globalKeywords: global,
	}, nil
}

func (f *Features) Meta() FeaturesMeta { return f.meta }

func (f *Features) TimeBlocks() []TimeBlock {
	out := make([]TimeBlock, len(f.timeBlocks))
	for i, b := range f.timeBlocks {
		out[i] = b.clone()
	}
	return out
}

func (f *Features) AppSummary() []AppSummary {
	out := make([]AppSummary, len(f.appSummary))
	for i, a := range f.appSummary {
		out[i] = a.clone()
	}
	return out
}

func (f *Features) GlobalKeywords() GlobalKeywords { return f.globalKeywords.clone() }

// HasData reports whether the summary holds any observations.
func (f *Features) HasData() bool {
	return f.meta.CaptureCount > 0 && len(f.appSummary) > 0
}

// TopApp returns the application with the longest duration.
func (f *Features) TopApp() (AppSummary, bool) {
	if len(f.appSummary) == 0 {
		return AppSummary{}, false
	}
	return f.appSummary[0].clone(), true
}

// ActiveHours converts the total duration to hours, one decimal.
func (f *Features) ActiveHours() float64 {
	return timeutil.RoundTenth(f.meta.TotalDurationMin / 60)
}

// AppsByRank returns the applications classified as rank.
func (f *Features) AppsByRank(rank Rank) []AppSummary {
	var out []AppSummary
	for _, a := range f.appSummary {
		if a.Rank == rank {
			out = append(out, a.clone())
		}
	}
	return out
}

func (f *Features) String() string {
	return fmt.Sprintf("Features(%s, %d captures, %d apps)", f.meta.Date, f.meta.CaptureCount, len(f.appSummary))
}

type featuresJSON struct {
	Meta           FeaturesMeta   `json:"meta"`
	TimeBlocks     []TimeBlock    `json:"time_blocks"`
	AppSummary     []AppSummary   `json:"app_summary"`
	GlobalKeywords GlobalKeywords `json:"global_keywords"`
}

// MarshalJSON renders the persisted summary shape.
func (f *Features) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(featuresJSON{
		Meta:           f.meta,
		TimeBlocks:     nonNilBlocks(f.timeBlocks),
		AppSummary:     nonNilApps(f.appSummary),
		GlobalKeywords: f.globalKeywords,
	})
}

// UnmarshalJSON decodes into a zero Features only; decoding over a
// constructed value fails with ErrFrozen.
func (f *Features) UnmarshalJSON(data []byte) error {
	if f.meta.Date != "" {
		return ErrFrozen
	}
	decoded, err := DecodeFeatures(data)
	if err != nil {
		return err
	}
	*f = *decoded
	return nil
}

// DecodeFeatures parses a persisted summary and re-runs all validation.
func DecodeFeatures(data []byte) (*Features, error) {
	var raw featuresJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode features: %w", err)
	}
	return NewFeatures(raw.Meta, raw.TimeBlocks, raw.AppSummary, raw.GlobalKeywords)
}

func nonNilBlocks(b []TimeBlock) []TimeBlock {
	if b == nil {
		return []TimeBlock{}
	}
	return b
}

func nonNilApps(a []AppSummary) []AppSummary {
	if a == nil {
		return []AppSummary{}
	}
	return a
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
