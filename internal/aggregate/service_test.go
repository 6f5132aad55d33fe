package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/timeutil"
	"github.com/rs/zerolog"
)

var jst = time.FixedZone("JST", 9*60*60)

const testDate = "2024-01-15"

// memRepo is an in-memory storage.Repository.
type memRepo struct {
	records  map[string][]*domain.Record
	features map[string]*domain.Features
	loadErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string][]*domain.Record{}, features: map[string]*domain.Features{}}
}

func (m *memRepo) LoadRawRecords(_ context.Context, date string) ([]*domain.Record, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	records, ok := m.records[date]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, date)
	}
	return records, nil
}

func (m *memRepo) SaveFeatures(_ context.Context, date string, f *domain.Features) (string, error) {
	m.features[date] = f
	return "mem://" + date, nil
}

func (m *memRepo) LoadFeatures(_ context.Context, date string) (*domain.Features, error) {
	return m.features[date], nil
}

func record(t *testing.T, clock string, process string, keywords, files, urls []string) *domain.Record {
	t.Helper()
	r, err := domain.NewRecord(domain.RecordFields{
		Timestamp:   testDate + "T" + clock + "+09:00",
		ProcessName: process,
		Keywords:    keywords,
		Files:       files,
		URLs:        urls,
	})
	if err != nil {
		t.Fatalf("NewRecord() error: %v", err)
	}
	return r
}

func scenarioRecords(t *testing.T) []*domain.Record {
	return []*domain.Record{
		record(t, "09:00:00", "Code.exe", []string{"Python", "API"}, []string{"main.py"}, nil),
		record(t, "09:10:00", "Code.exe", []string{"python"}, nil, nil),
		record(t, "09:20:00", "slack.exe", []string{"standup"}, nil, nil),
		record(t, "09:35:00", "Code.exe", []string{"API"}, []string{"main.py", "test.py"}, nil),
		record(t, "09:40:00", "Code.exe", nil, nil, []string{"https://go.dev"}),
	}
}

func newTestService(repo storage.Repository, cfg Config) *Service {
	clock := &timeutil.FixedClock{CurrentTime: time.Date(2024, 1, 15, 18, 0, 0, 0, jst)}
	return NewService(repo, cfg, clock, zerolog.Nop())
}

func TestAggregateScenario(t *testing.T) {
	repo := newMemRepo()
	repo.records[testDate] = scenarioRecords(t)
	svc := newTestService(repo, DefaultConfig())

	features, err := svc.Aggregate(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}

	meta := features.Meta()
	if meta.CaptureCount != 5 {
		t.Errorf("capture count = %d, want 5", meta.CaptureCount)
	}
	if meta.FirstCapture != "09:00:00" || meta.LastCapture != "09:40:00" {
		t.Errorf("captures = %s..%s, want 09:00:00..09:40:00", meta.FirstCapture, meta.LastCapture)
	}
	if meta.TotalDurationMin != 42 {
		t.Errorf("total duration = %v, want 42", meta.TotalDurationMin)
	}
	if meta.GeneratedAt != "2024-01-15T18:00:00+09:00" {
		t.Errorf("generated_at = %s", meta.GeneratedAt)
	}

	blocks := features.TimeBlocks()
	if len(blocks) != 2 {
		t.Fatalf("expected 2 time blocks, got %d", len(blocks))
	}
	if blocks[0].Start != "09:00" || blocks[0].End != "09:30" || blocks[1].Start != "09:30" || blocks[1].End != "10:00" {
		t.Errorf("unexpected block bounds: %+v", blocks)
	}
	wantApps := []domain.AppUsage{{Name: "Visual Studio Code", Percent: 66.7}, {Name: "Slack", Percent: 33.3}}
	if !reflect.DeepEqual(blocks[0].Apps, wantApps) {
		t.Errorf("first block apps = %v, want %v", blocks[0].Apps, wantApps)
	}
	if want := []string{"Python", "API", "standup"}; !reflect.DeepEqual(blocks[0].TopKeywords, want) {
		t.Errorf("first block keywords = %v, want %v", blocks[0].TopKeywords, want)
	}
	if want := []string{"main.py", "test.py"}; !reflect.DeepEqual(blocks[1].TopFiles, want) {
		t.Errorf("second block files = %v, want %v", blocks[1].TopFiles, want)
	}

	apps := features.AppSummary()
	if len(apps) != 2 {
		t.Fatalf("expected 2 app summaries, got %d", len(apps))
	}
	code, slack := apps[0], apps[1]
	if code.Process != "Code.exe" || code.Name != "Visual Studio Code" || code.Count != 4 || code.DurationMin != 8 || code.Rank != domain.RankHigh {
		t.Errorf("unexpected code summary: %+v", code)
	}
	if slack.Process != "slack.exe" || slack.Count != 1 || slack.DurationMin != 2 || slack.Rank != domain.RankMedium {
		t.Errorf("unexpected slack summary: %+v", slack)
	}
	if slack.TopFiles != nil || slack.TopURLs != nil {
		t.Errorf("empty app lists must be absent: %+v", slack)
	}
	if want := []string{"https://go.dev"}; !reflect.DeepEqual(code.TopURLs, want) {
		t.Errorf("code urls = %v, want %v", code.TopURLs, want)
	}

	global := features.GlobalKeywords()
	if want := []string{"Python", "API", "standup"}; !reflect.DeepEqual(global.TopKeywords, want) {
		t.Errorf("global keywords = %v, want %v", global.TopKeywords, want)
	}
	if want := []string{"main.py", "test.py"}; !reflect.DeepEqual(global.TopFiles, want) {
		t.Errorf("global files = %v, want %v", global.TopFiles, want)
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	repo := newMemRepo()
	repo.records[testDate] = scenarioRecords(t)
	svc := newTestService(repo, DefaultConfig())

	first, err := svc.Aggregate(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	second, err := svc.Aggregate(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("aggregation is not deterministic:\n%s\n%s", a, b)
	}
}

func TestSettleFilterExcludesRecent(t *testing.T) {
	repo := newMemRepo()
	repo.records[testDate] = append(scenarioRecords(t),
		record(t, "17:59:00", "Zoom.exe", nil, nil, nil),
		record(t, "17:58:00", "Zoom.exe", nil, nil, nil),
	)
	svc := newTestService(repo, DefaultConfig())

	features, err := svc.Aggregate(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	if got := features.Meta().CaptureCount; got != 6 {
		t.Errorf("capture count = %d, want 6 (17:59 excluded, 17:58 on the boundary kept)", got)
	}
}

func TestLowSampleIsNotAnError(t *testing.T) {
	repo := newMemRepo()
	repo.records[testDate] = scenarioRecords(t)[:2]
	svc := newTestService(repo, DefaultConfig())

	features, err := svc.Aggregate(context.Background(), testDate)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	if features.Meta().CaptureCount != 2 {
		t.Errorf("capture count = %d, want 2", features.Meta().CaptureCount)
	}
}

func TestBuildWithNothingSettled(t *testing.T) {
	svc := newTestService(newMemRepo(), DefaultConfig())

	features, err := svc.Build(testDate, nil)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	meta := features.Meta()
	if meta.FirstCapture != "00:00:00" || meta.LastCapture != "00:00:00" || meta.TotalDurationMin != 0 || meta.CaptureCount != 0 {
		t.Errorf("unexpected meta for empty input: %+v", meta)
	}
	if features.HasData() {
		t.Error("HasData() = true for empty input")
	}
}

func TestTimeBlocksKeepTopFiveApps(t *testing.T) {
	processes := []string{"Code.exe", "Code.exe", "chrome.exe", "slack.exe", "Zoom.exe", "cmd.exe", "node.exe", ""}
	records := make([]*domain.Record, 0, len(processes))
	for i, p := range processes {
		records = append(records, record(t, fmt.Sprintf("10:%02d:00", i), p, nil, nil, nil))
	}
	svc := newTestService(newMemRepo(), DefaultConfig())

	features, err := svc.Build(testDate, records)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	apps := features.TimeBlocks()[0].Apps
	if len(apps) != 5 {
		t.Fatalf("expected 5 apps, got %d: %v", len(apps), apps)
	}
	want := []domain.AppUsage{
		{Name: "Visual Studio Code", Percent: 25},
		{Name: "Google Chrome", Percent: 12.5},
		{Name: "Slack", Percent: 12.5},
		{Name: "Zoom", Percent: 12.5},
		{Name: "Command Prompt", Percent: 12.5},
	}
	if !reflect.DeepEqual(apps, want) {
		t.Errorf("apps = %v, want %v", apps, want)
	}

	var unknown *domain.AppSummary
	for _, a := range features.AppSummary() {
		if a.Process == "Unknown" {
			a := a
			unknown = &a
		}
	}
	if unknown == nil || unknown.Name != "Unknown" {
		t.Errorf("missing process should be summarized as Unknown, got %+v", unknown)
	}
}

func TestMidnightBlockSortsLexically(t *testing.T) {
	records := []*domain.Record{
		record(t, "23:45:00", "Code.exe", nil, nil, nil),
		record(t, "08:05:00", "Code.exe", nil, nil, nil),
	}
	clock := &timeutil.FixedClock{CurrentTime: time.Date(2024, 1, 16, 9, 0, 0, 0, jst)}
	svc := NewService(newMemRepo(), DefaultConfig(), clock, zerolog.Nop())

	features, err := svc.Build(testDate, records)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	blocks := features.TimeBlocks()
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0].Start != "08:00" || blocks[1].Start != "23:30" || blocks[1].End != "00:00" {
		t.Errorf("unexpected blocks: %+v", blocks)
	}
}

func TestLocationOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	svc := newTestService(newMemRepo(), cfg)

	features, err := svc.Build(testDate, scenarioRecords(t)[:1])
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := features.TimeBlocks()[0].Start; got != "00:00" {
		t.Errorf("block start = %s, want 00:00 in UTC", got)
	}
	if got := features.Meta().FirstCapture; got != "00:00:00" {
		t.Errorf("first capture = %s, want 00:00:00 in UTC", got)
	}
	if got := features.Meta().GeneratedAt; got != "2024-01-15T09:00:00Z" {
		t.Errorf("generated_at = %s", got)
	}
}

func TestAggregatePropagatesRepositoryErrors(t *testing.T) {
	for _, sentinel := range []error{storage.ErrNotFound, storage.ErrEmpty, storage.ErrAllCorrupt} {
		repo := newMemRepo()
		repo.loadErr = fmt.Errorf("%w: test", sentinel)
		svc := newTestService(repo, DefaultConfig())

		_, err := svc.Aggregate(context.Background(), testDate)
		if !errors.Is(err, sentinel) {
			t.Errorf("Aggregate() error = %v, want %v", err, sentinel)
		}
		if outcome(err) == "error" {
			t.Errorf("outcome(%v) should be specific", err)
		}
	}

	svc := newTestService(newMemRepo(), DefaultConfig())
	if _, err := svc.Aggregate(context.Background(), "15/01/2024"); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestAggregateAndSave(t *testing.T) {
	repo := newMemRepo()
	repo.records[testDate] = scenarioRecords(t)
	svc := newTestService(repo, DefaultConfig())

	features, location, err := svc.AggregateAndSave(context.Background(), testDate)
	if err != nil {
		t.Fatalf("AggregateAndSave() error: %v", err)
	}
	if location != "mem://"+testDate {
		t.Errorf("location = %s", location)
	}
	if repo.features[testDate] != features {
		t.Error("saved features differ from returned features")
	}
}

func TestGlobalRankingsOutgrowPerAppLists(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopKeywords = domain.MaxAppKeywords
	cfg.TopFiles = domain.MaxAppFiles
	cfg.GlobalTopKeywords = domain.MaxGlobalKeywords
	cfg.GlobalTopFiles = domain.MaxGlobalFiles
	svc := newTestService(newMemRepo(), cfg)

	records := make([]*domain.Record, 0, 40)
	for i := 0; i < 40; i++ {
		clock := fmt.Sprintf("09:%02d:00", i)
		records = append(records, record(t, clock, "Code.exe",
			[]string{fmt.Sprintf("kw%02d", i)}, []string{fmt.Sprintf("file%02d.go", i)}, nil))
	}

	features, err := svc.Build(testDate, records)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	global := features.GlobalKeywords()
	if len(global.TopKeywords) != 40 {
		t.Errorf("global keywords = %d, want 40", len(global.TopKeywords))
	}
	if len(global.TopFiles) != domain.MaxGlobalFiles {
		t.Errorf("global files = %d, want %d", len(global.TopFiles), domain.MaxGlobalFiles)
	}
	app := features.AppSummary()[0]
	if len(app.TopKeywords) != domain.MaxAppKeywords || len(app.TopFiles) != domain.MaxAppFiles {
		t.Errorf("per-app lists = %d keywords, %d files", len(app.TopKeywords), len(app.TopFiles))
	}
}

func TestNewServiceClampsConfig(t *testing.T) {
	svc := NewService(newMemRepo(), Config{TopKeywords: 99, TopFiles: -1, GlobalTopKeywords: 99}, nil, zerolog.Nop())
	cfg := svc.Config()
	if cfg.GlobalTopKeywords != domain.MaxGlobalKeywords {
		t.Errorf("GlobalTopKeywords = %d, want %d", cfg.GlobalTopKeywords, domain.MaxGlobalKeywords)
	}
	if cfg.GlobalTopFiles != DefaultTopFiles || cfg.GlobalTopURLs != DefaultTopURLs {
		t.Errorf("unset whole-day lengths should follow the per-app ones: %+v", cfg)
	}
	if cfg.TopKeywords != domain.MaxAppKeywords {
		t.Errorf("TopKeywords = %d, want %d", cfg.TopKeywords, domain.MaxAppKeywords)
	}
	if cfg.TopFiles != DefaultTopFiles || cfg.TimeBlockMinutes != DefaultTimeBlockMinutes || cfg.SamplingInterval != DefaultSamplingInterval {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
