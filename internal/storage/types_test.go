package storage_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/storage/storagetest"
	"github.com/rs/zerolog"
)

func TestEncodeFeaturesDoesNotEscapeHTML(t *testing.T) {
	data, err := storage.EncodeFeatures(storagetest.FeaturesWithURL(t))
	if err != nil {
		t.Fatalf("EncodeFeatures() error: %v", err)
	}
	if !bytes.Contains(data, []byte(`"`+storagetest.QueryURL+`"`)) {
		t.Errorf("expected URL verbatim in:\n%s", data)
	}
	if !bytes.HasSuffix(data, []byte("}\n")) {
		t.Error("expected a trailing newline")
	}
	if !bytes.HasPrefix(data, []byte("{\n  \"meta\": {")) {
		t.Errorf("expected 2-space indentation, got:\n%s", data)
	}

	decoded, err := domain.DecodeFeatures(data)
	if err != nil {
		t.Fatalf("DecodeFeatures() error: %v", err)
	}
	if got := decoded.GlobalKeywords().TopURLs; len(got) != 1 || got[0] != storagetest.QueryURL {
		t.Errorf("decoded urls = %v", got)
	}
}

func TestEncodeRecordDoesNotEscapeHTML(t *testing.T) {
	record, err := domain.NewRecord(domain.RecordFields{
		Timestamp: "2024-01-15T09:00:00+09:00",
		URLs:      []string{"https://example.test/?a=1&b=2"},
	})
	if err != nil {
		t.Fatalf("NewRecord() error: %v", err)
	}
	line, err := storage.EncodeRecord(record)
	if err != nil {
		t.Fatalf("EncodeRecord() error: %v", err)
	}
	if !strings.Contains(string(line), "?a=1&b=2") {
		t.Errorf("expected URL verbatim in %s", line)
	}
	if bytes.ContainsRune(line, '\n') {
		t.Errorf("raw log line must not contain a newline: %q", line)
	}
}

func TestLineDecoderStats(t *testing.T) {
	decoder := &storage.LineDecoder{Backend: "test", Location: "mem", Logger: zerolog.Nop()}
	lines := []string{
		`{"ts":"2024-01-15T09:00:00+09:00","process_name":"Code.exe"}`,
		"",
		"{broken",
		`{"ts":"yesterday"}`,
		`{"ts":"2024-01-15T09:02:00+09:00"}`,
	}
	for i, line := range lines {
		decoder.Decode(i+1, []byte(line))
	}
	decoder.Oversized(len(lines) + 1)

	want := storage.LoadStats{TotalLines: 6, BlankLines: 1, Malformed: 3, Loaded: 2}
	if got := decoder.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	records, err := decoder.Result()
	if err != nil || len(records) != 2 {
		t.Fatalf("Result() = %d records, %v", len(records), err)
	}
}
