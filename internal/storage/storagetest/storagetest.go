// Package storagetest holds fixtures and a behavioural suite shared by the
// storage backends' tests.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/storage"
)

// Date is the day used by the fixtures.
const Date = "2024-01-15"

// Records returns three valid raw records for Date.
func Records(t *testing.T) []*domain.Record {
	t.Helper()
	fields := []domain.RecordFields{
		{Timestamp: "2024-01-15T09:00:00+09:00", WindowTitle: "main.py - Visual Studio Code", ProcessName: "Code.exe",
			Keywords: []string{"Python", "API"}, Files: []string{"main.py"}},
		{Timestamp: "2024-01-15T09:02:00+09:00", WindowTitle: "general - Slack", ProcessName: "slack.exe",
			Keywords: []string{"standup"}},
		{Timestamp: "2024-01-15T09:04:00+09:00", WindowTitle: "Docs - Google Chrome", ProcessName: "chrome.exe",
			URLs: []string{"https://go.dev/doc"}},
	}
	out := make([]*domain.Record, len(fields))
	for i, f := range fields {
		r, err := domain.NewRecord(f)
		if err != nil {
			t.Fatalf("NewRecord() error: %v", err)
		}
		out[i] = r
	}
	return out
}

// Features returns a small valid summary for Date.
func Features(t *testing.T, captureCount int) *domain.Features {
	t.Helper()
	features, err := domain.NewFeatures(
		domain.FeaturesMeta{
			Date:             Date,
			GeneratedAt:      "2024-01-15T18:00:00+09:00",
			CaptureCount:     captureCount,
			FirstCapture:     "09:00:00",
			LastCapture:      "09:04:00",
			TotalDurationMin: 6,
		},
		[]domain.TimeBlock{{Start: "09:00", End: "09:30", Apps: []domain.AppUsage{{Name: "Slack", Percent: 50}, {Name: "Visual Studio Code", Percent: 50}}}},
		[]domain.AppSummary{
			{Name: "Visual Studio Code", Process: "Code.exe", Count: 1, DurationMin: 2, Rank: domain.RankHigh,
				TopKeywords: []string{"Python"}, TopFiles: []string{"main.py"}},
			{Name: "Slack", Process: "slack.exe", Count: 1, DurationMin: 2, Rank: domain.RankHigh},
		},
		domain.GlobalKeywords{TopKeywords: []string{"Python", "API"}, TopFiles: []string{"main.py"}},
	)
	if err != nil {
		t.Fatalf("NewFeatures() error: %v", err)
	}
	return features
}

// QueryURL carries the characters a JSON encoder would HTML-escape by default.
const QueryURL = "https://example.test/search?q=<go>&page=2"

// FeaturesWithURL returns a summary whose app and global rankings hold QueryURL.
func FeaturesWithURL(t *testing.T) *domain.Features {
	t.Helper()
	features, err := domain.NewFeatures(
		domain.FeaturesMeta{
			Date:             Date,
			GeneratedAt:      "2024-01-15T18:00:00+09:00",
			CaptureCount:     1,
			FirstCapture:     "09:04:00",
			LastCapture:      "09:04:00",
			TotalDurationMin: 2,
		},
		[]domain.TimeBlock{{Start: "09:00", End: "09:30", Apps: []domain.AppUsage{{Name: "Google Chrome", Percent: 100}}}},
		[]domain.AppSummary{
			{Name: "Google Chrome", Process: "chrome.exe", Count: 1, DurationMin: 2, Rank: domain.RankHigh,
				TopURLs: []string{QueryURL}},
		},
		domain.GlobalKeywords{TopURLs: []string{QueryURL}},
	)
	if err != nil {
		t.Fatalf("NewFeatures() error: %v", err)
	}
	return features
}

// RunRepositoryTests exercises the behaviour every storage.Store must share.
// open must return a fresh, empty store.
func RunRepositoryTests(t *testing.T, open func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("missing raw log", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		_, err := store.LoadRawRecords(ctx, Date)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("LoadRawRecords() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("append and load raw records", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		want := Records(t)
		if _, err := store.AppendRawRecords(ctx, Date, want[:2]); err != nil {
			t.Fatalf("AppendRawRecords() error: %v", err)
		}
		if _, err := store.AppendRawRecords(ctx, Date, want[2:]); err != nil {
			t.Fatalf("AppendRawRecords() error: %v", err)
		}

		got, err := store.LoadRawRecords(ctx, Date)
		if err != nil {
			t.Fatalf("LoadRawRecords() error: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d records, got %d", len(want), len(got))
		}
		for i := range want {
			if !reflect.DeepEqual(got[i], want[i]) {
				t.Errorf("record %d mismatch:\n got %v\nwant %v", i, got[i], want[i])
			}
		}
	})

	t.Run("features round trip", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		missing, err := store.LoadFeatures(ctx, Date)
		if err != nil || missing != nil {
			t.Fatalf("LoadFeatures() on empty store = %v, %v; want nil, nil", missing, err)
		}

		first := Features(t, 2)
		location, err := store.SaveFeatures(ctx, Date, first)
		if err != nil {
			t.Fatalf("SaveFeatures() error: %v", err)
		}
		if location == "" {
			t.Error("SaveFeatures() returned an empty location")
		}

		loaded, err := store.LoadFeatures(ctx, Date)
		if err != nil {
			t.Fatalf("LoadFeatures() error: %v", err)
		}
		if !reflect.DeepEqual(loaded, first) {
			t.Errorf("loaded features differ:\n got %+v\nwant %+v", loaded, first)
		}

		second := Features(t, 3)
		if _, err := store.SaveFeatures(ctx, Date, second); err != nil {
			t.Fatalf("SaveFeatures(overwrite) error: %v", err)
		}
		loaded, err = store.LoadFeatures(ctx, Date)
		if err != nil {
			t.Fatalf("LoadFeatures() error: %v", err)
		}
		if loaded.Meta().CaptureCount != 3 {
			t.Errorf("expected overwritten capture count 3, got %d", loaded.Meta().CaptureCount)
		}
	})

	t.Run("urls survive a round trip", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		if _, err := store.SaveFeatures(ctx, Date, FeaturesWithURL(t)); err != nil {
			t.Fatalf("SaveFeatures() error: %v", err)
		}
		loaded, err := store.LoadFeatures(ctx, Date)
		if err != nil {
			t.Fatalf("LoadFeatures() error: %v", err)
		}
		urls := loaded.GlobalKeywords().TopURLs
		if len(urls) != 1 || urls[0] != QueryURL {
			t.Errorf("global urls = %v, want [%s]", urls, QueryURL)
		}
	})

	t.Run("summary dates", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		dates, err := store.SummaryDates(ctx)
		if err != nil || len(dates) != 0 {
			t.Fatalf("SummaryDates() on empty store = %v, %v", dates, err)
		}

		if _, err := store.AppendRawRecords(ctx, "2024-01-14", Records(t)); err != nil {
			t.Fatalf("AppendRawRecords() error: %v", err)
		}
		for _, date := range []string{"2024-01-16", Date, "2024-01-16"} {
			if _, err := store.SaveFeatures(ctx, date, Features(t, 2)); err != nil {
				t.Fatalf("SaveFeatures(%s) error: %v", date, err)
			}
		}

		dates, err = store.SummaryDates(ctx)
		if err != nil {
			t.Fatalf("SummaryDates() error: %v", err)
		}
		if want := []string{Date, "2024-01-16"}; !reflect.DeepEqual(dates, want) {
			t.Errorf("SummaryDates() = %v, want %v", dates, want)
		}
		raw, err := store.Dates(ctx)
		if err != nil {
			t.Fatalf("Dates() error: %v", err)
		}
		if want := []string{"2024-01-14"}; !reflect.DeepEqual(raw, want) {
			t.Errorf("Dates() = %v, want %v", raw, want)
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		if _, err := store.LoadRawRecords(ctx, "2024-13-01"); err == nil {
			t.Error("LoadRawRecords() accepted an invalid date")
		}
		if _, err := store.LoadFeatures(ctx, "../etc"); err == nil {
			t.Error("LoadFeatures() accepted an invalid date")
		}
	})
}
