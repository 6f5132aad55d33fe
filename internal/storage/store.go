package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/timeutil"
)

var (
	// ErrNotFound is returned when no raw log exists for a date.
	ErrNotFound = errors.New("storage: raw log not found")
	// ErrEmpty is returned when a raw log exists but holds no entries.
	ErrEmpty = errors.New("storage: raw log is empty")
	// ErrAllCorrupt is returned when a raw log has entries but none decode.
	ErrAllCorrupt = errors.New("storage: every raw log line failed to parse")
)

// Repository is the boundary between the aggregation engine and persistence.
type Repository interface {
	// LoadRawRecords returns every decodable record for date in stored order.
	// Fails with ErrNotFound, ErrEmpty or ErrAllCorrupt.
	LoadRawRecords(ctx context.Context, date string) ([]*domain.Record, error)
	// SaveFeatures replaces any summary stored for date and returns its location.
	SaveFeatures(ctx context.Context, date string, features *domain.Features) (string, error)
	// LoadFeatures returns the stored summary, or nil when none exists.
	LoadFeatures(ctx context.Context, date string) (*domain.Features, error)
}

// RawAppender accepts raw records, used when importing logs into a store.
type RawAppender interface {
	AppendRawRecords(ctx context.Context, date string, records []*domain.Record) (string, error)
}

// DateLister reports which days hold raw records, oldest first.
type DateLister interface {
	Dates(ctx context.Context) ([]string, error)
}

// SummaryLister reports which days hold a saved summary, oldest first.
type SummaryLister interface {
	SummaryDates(ctx context.Context) ([]string, error)
}

// Store is a Repository backed by a closable resource.
type Store interface {
	Repository
	RawAppender
	DateLister
	SummaryLister
	Close() error
}

// ValidateDate rejects anything that is not a YYYY-MM-DD calendar date.
func ValidateDate(date string) error {
	if _, err := time.Parse(timeutil.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	return nil
}

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
