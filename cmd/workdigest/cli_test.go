package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goodtune/workdigest/internal/domain"
)

const sampleLog = `{"ts":"2024-01-15T09:00:00+09:00","process_name":"Code.exe","keywords":["Python"],"files":["main.py"]}
{"ts":"2024-01-15T09:10:00+09:00","process_name":"Code.exe","keywords":["python","API"]}
not json
{"ts":"2024-01-15T09:40:00+09:00","process_name":"slack.exe","keywords":["standup"]}
`

func writeTestConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "storage:\n  type: file\n  path: " + filepath.Join(dir, "logs") + "\nlogging:\n  level: error\n" + extra
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("workdigest %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestIngestAggregateShow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir, "")
	source := filepath.Join(dir, "2024-01-15.jsonl")
	if err := os.WriteFile(source, []byte(sampleLog), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out := runCLI(t, "--config", cfg, "ingest", source)
	if !strings.Contains(out, "Ingested 3 records for 2024-01-15") {
		t.Errorf("unexpected ingest output: %s", out)
	}
	if !strings.Contains(out, "Skipped 1 malformed of 4 lines") {
		t.Errorf("expected skipped line count in ingest output: %s", out)
	}

	out = runCLI(t, "--config", cfg, "list")
	if !strings.Contains(out, "2024-01-15  not aggregated") {
		t.Errorf("unexpected list output before aggregation: %s", out)
	}

	out = runCLI(t, "--config", cfg, "aggregate", "--date", "2024-01-15")
	if !strings.Contains(out, "Saved to") || !strings.Contains(out, "Visual Studio Code") {
		t.Errorf("unexpected aggregate output: %s", out)
	}

	out = runCLI(t, "--config", cfg, "show", "--date", "2024-01-15", "--json")
	features, err := domain.DecodeFeatures([]byte(out))
	if err != nil {
		t.Fatalf("DecodeFeatures() error: %v\n%s", err, out)
	}
	if features.Meta().CaptureCount != 3 {
		t.Errorf("capture count = %d, want 3", features.Meta().CaptureCount)
	}
	if want := []string{"Python", "API", "standup"}; !reflect.DeepEqual(features.GlobalKeywords().TopKeywords, want) {
		t.Errorf("keywords = %v, want %v", features.GlobalKeywords().TopKeywords, want)
	}

	out = runCLI(t, "--config", cfg, "report", "--date", "2024-01-15")
	if !strings.Contains(out, "# Daily report 2024-01-15") {
		t.Errorf("unexpected report output: %s", out)
	}

	out = runCLI(t, "--config", cfg, "list")
	if !strings.Contains(out, "2024-01-15  aggregated") {
		t.Errorf("unexpected list output: %s", out)
	}

	out = runCLI(t, "--config", cfg, "list", "--details")
	if !strings.Contains(out, "2024-01-15  3 captures") {
		t.Errorf("unexpected list --details output: %s", out)
	}
}

func TestIngestNeedsDate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir, "")
	source := filepath.Join(dir, "export.jsonl")
	if err := os.WriteFile(source, []byte(sampleLog), 0644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	rootCmd.SetArgs([]string{"--config", cfg, "ingest", source})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error when the date cannot be inferred")
	}
}

func TestFindUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	cfg := writeTestConfig(t, dir, "aggregation:\n  top_keyword: 12\nschedule:\n  run_at: \"07:30\"\n")

	unknown, err := findUnknownKeys(cfg)
	if err != nil {
		t.Fatalf("findUnknownKeys() error: %v", err)
	}
	if want := []string{"aggregation.top_keyword"}; !reflect.DeepEqual(unknown, want) {
		t.Errorf("unknown keys = %v, want %v", unknown, want)
	}
}
