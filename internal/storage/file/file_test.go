package file

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/storage/storagetest"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "logs"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	return store
}

func TestRepository(t *testing.T) {
	storagetest.RunRepositoryTests(t, func(t *testing.T) storage.Store {
		return openTestStore(t)
	})
}

func writeRawLog(t *testing.T, store *Store, content string) {
	t.Helper()
	if err := os.MkdirAll(store.dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(store.LogPath(storagetest.Date), []byte(content), 0644); err != nil {
		t.Fatalf("write raw log: %v", err)
	}
}

func TestLoadRawRecordsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"zero size", "", storage.ErrEmpty},
		{"only blank lines", "\n\n   \n", storage.ErrEmpty},
		{"all corrupt", "{not json\n[1,2]\n{\"ts\":\"yesterday\"}\n", storage.ErrAllCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openTestStore(t)
			writeRawLog(t, store, tt.content)

			_, err := store.LoadRawRecords(context.Background(), storagetest.Date)
			if !errors.Is(err, tt.want) {
				t.Fatalf("LoadRawRecords() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadRawRecordsSkipsMalformedLines(t *testing.T) {
	store := openTestStore(t)
	writeRawLog(t, store, strings.Join([]string{
		`{"ts":"2024-01-15T09:00:00+09:00","process_name":"Code.exe","keywords":["Go"]}`,
		``,
		`{"ts":"2024-01-15T09:02:00+09:00", broken`,
		`{"ts":"2024-01-15T09:04:00+09:00","process_name":"slack.exe"}`,
	}, "\n"))

	records, err := store.LoadRawRecords(context.Background(), storagetest.Date)
	if err != nil {
		t.Fatalf("LoadRawRecords() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].ProcessName() != "slack.exe" {
		t.Errorf("unexpected second record: %v", records[1])
	}
}

func TestSaveFeaturesKeepsURLsReadable(t *testing.T) {
	store := openTestStore(t)

	path, err := store.SaveFeatures(context.Background(), storagetest.Date, storagetest.FeaturesWithURL(t))
	if err != nil {
		t.Fatalf("SaveFeatures() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read features: %v", err)
	}
	if !strings.Contains(string(data), `"`+storagetest.QueryURL+`"`) {
		t.Errorf("features file does not hold the URL verbatim:\n%s", data)
	}
	if strings.Contains(string(data), `\u0026`) {
		t.Error("features file contains HTML-escaped characters")
	}
}

func TestSaveFeaturesLayout(t *testing.T) {
	store := openTestStore(t)

	path, err := store.SaveFeatures(context.Background(), storagetest.Date, storagetest.Features(t, 2))
	if err != nil {
		t.Fatalf("SaveFeatures() error: %v", err)
	}
	if filepath.Base(path) != "2024-01-15_features.json" {
		t.Errorf("unexpected features file name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read features: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "{\n  \"meta\": {\n    \"date\": \"2024-01-15\"") {
		t.Errorf("features file is not 2-space indented JSON:\n%s", text)
	}
	if strings.Contains(text, "top_urls\": null") {
		t.Error("absent app lists must be omitted, not null")
	}

	entries, err := os.ReadDir(store.dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the features file, found %d entries", len(entries))
	}
}

func TestLoadFeaturesCorrupt(t *testing.T) {
	store := openTestStore(t)
	if err := os.MkdirAll(store.dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(store.FeaturesPath(storagetest.Date), []byte("{"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.LoadFeatures(context.Background(), storagetest.Date); err == nil {
		t.Fatal("expected error for corrupt features file")
	}
}

func TestDates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for _, date := range []string{"2024-01-16", "2024-01-15"} {
		if _, err := store.AppendRawRecords(ctx, date, storagetest.Records(t)); err != nil {
			t.Fatalf("append %s: %v", date, err)
		}
	}
	if err := os.WriteFile(filepath.Join(store.dir, "notes.jsonl"), []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dates, err := store.Dates(ctx)
	if err != nil {
		t.Fatalf("Dates() error: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2024-01-15" || dates[1] != "2024-01-16" {
		t.Fatalf("Dates() = %v", dates)
	}
}

func TestReadLogOutsideStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.jsonl")
	content := `{"ts":"2024-01-15T09:00:00+09:00","process_name":"Code.exe"}` + "\n\n" + `not json` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, stats, err := ReadLog(context.Background(), path, zerolog.Nop())
	if err != nil {
		t.Fatalf("ReadLog() error: %v", err)
	}
	if len(records) != 1 || records[0].ProcessName() != "Code.exe" {
		t.Errorf("unexpected records: %v", records)
	}
	if want := (storage.LoadStats{TotalLines: 3, BlankLines: 1, Malformed: 1, Loaded: 1}); stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}

	_, _, err = ReadLog(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"), zerolog.Nop())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ReadLog() error = %v, want ErrNotFound", err)
	}
}

func TestOversizedLineIsSkipped(t *testing.T) {
	store := openTestStore(t)
	if err := os.MkdirAll(store.dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	huge := `{"ts":"2024-01-15T09:01:00+09:00","window_title":"` + strings.Repeat("x", maxLineSize+1024) + `"}`
	content := `{"ts":"2024-01-15T09:00:00+09:00","process_name":"Code.exe"}` + "\n" +
		huge + "\n" +
		`{"ts":"2024-01-15T09:02:00+09:00","process_name":"slack.exe"}`
	if err := os.WriteFile(store.LogPath(storagetest.Date), []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, stats, err := ReadLog(context.Background(), store.LogPath(storagetest.Date), zerolog.Nop())
	if err != nil {
		t.Fatalf("ReadLog() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records around the oversized line, got %d", len(records))
	}
	if records[1].ProcessName() != "slack.exe" {
		t.Errorf("unexpected last record: %v", records[1])
	}
	if stats.Malformed != 1 || stats.TotalLines != 3 {
		t.Errorf("stats = %+v, want 1 malformed of 3 lines", stats)
	}
}

func TestOnlyOversizedLinesIsAllCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.jsonl")
	if err := os.WriteFile(path, []byte(strings.Repeat("y", maxLineSize+1)), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := ReadLog(context.Background(), path, zerolog.Nop())
	if !errors.Is(err, storage.ErrAllCorrupt) {
		t.Errorf("ReadLog() error = %v, want ErrAllCorrupt", err)
	}
}

func TestReadLine(t *testing.T) {
	reader := bufio.NewReaderSize(strings.NewReader("short\n"+strings.Repeat("z", 40)+"\nlast"), 16)
	tests := []struct {
		line      string
		oversized bool
		err       error
	}{
		{"short", false, nil},
		{"", true, nil},
		{"last", false, io.EOF},
	}
	for i, tt := range tests {
		line, oversized, err := readLine(reader, 20)
		if string(line) != tt.line || oversized != tt.oversized || err != tt.err {
			t.Errorf("line %d = (%q, %v, %v), want (%q, %v, %v)", i+1, line, oversized, err, tt.line, tt.oversized, tt.err)
		}
	}
}
