// Package file stores raw logs and summaries as plain files in one directory:
// YYYY-MM-DD.jsonl for the raw log and YYYY-MM-DD_features.json for the summary.
package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/rs/zerolog"
)

const backend = "file"

// maxLineSize bounds a single raw log line. Longer lines are skipped.
const maxLineSize = 4 * 1024 * 1024

// Store implements storage.Store on top of a directory.
type Store struct {
	dir    string
	logger zerolog.Logger
}

// Open returns a store rooted at dir. The directory is created lazily on write.
func Open(dir string, logger zerolog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: directory is required")
	}
	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "storage").Str("backend", backend).Logger(),
	}, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// LogPath returns the raw log file for date.
func (s *Store) LogPath(date string) string {
	return filepath.Join(s.dir, date+".jsonl")
}

// FeaturesPath returns the summary file for date.
func (s *Store) FeaturesPath(date string) string {
	return filepath.Join(s.dir, date+"_features.json")
}

func (s *Store) LoadRawRecords(ctx context.Context, date string) ([]*domain.Record, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	records, _, err := ReadLog(ctx, s.LogPath(date), s.logger)
	return records, err
}

// ReadLog reads a JSONL raw log from any path, applying the same error
// taxonomy as a store-managed log. Lines longer than maxLineSize are skipped
// and counted as malformed.
func ReadLog(ctx context.Context, path string, logger zerolog.Logger) ([]*domain.Record, storage.LoadStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Error().Str("path", path).Msg("Log file not found")
			return nil, storage.LoadStats{}, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, storage.LoadStats{}, fmt.Errorf("stat raw log: %w", err)
	}
	if info.Size() == 0 {
		logger.Error().Str("path", path).Msg("Log file is empty")
		return nil, storage.LoadStats{}, fmt.Errorf("%w: %s", storage.ErrEmpty, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, storage.LoadStats{}, fmt.Errorf("open raw log: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoder := &storage.LineDecoder{Backend: backend, Location: path, Logger: logger}
	reader := bufio.NewReaderSize(f, 64*1024)
	for lineNum := 1; ; lineNum++ {
		if err := ctx.Err(); err != nil {
			return nil, decoder.Stats(), err
		}
		line, oversized, err := readLine(reader, maxLineSize)
		if err != nil && err != io.EOF {
			return nil, decoder.Stats(), fmt.Errorf("read raw log %s: %w", path, err)
		}
		if err == io.EOF && len(line) == 0 && !oversized {
			break
		}
		if oversized {
			decoder.Oversized(lineNum)
		} else {
			decoder.Decode(lineNum, line)
		}
		if err == io.EOF {
			break
		}
	}
	records, err := decoder.Result()
	return records, decoder.Stats(), err
}

// readLine returns the next line without its newline. A line longer than
// limit is consumed and reported as oversized, with a nil line.
func readLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			if len(line)+len(bytes.TrimSuffix(chunk, []byte{'\n'})) > limit {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return bytes.TrimSuffix(line, []byte{'\n'}), oversized, err
	}
}

func (s *Store) SaveFeatures(ctx context.Context, date string, features *domain.Features) (string, error) {
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := storage.EncodeFeatures(features)
	if err != nil {
		return "", err
	}
	path := s.FeaturesPath(date)
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	metrics.FeaturesSaved.WithLabelValues(backend).Inc()
	s.logger.Info().Str("path", path).Msg("Features saved")
	return path, nil
}

func (s *Store) LoadFeatures(ctx context.Context, date string) (*domain.Features, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.FeaturesPath(date)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", path).Msg("Features file not found")
			return nil, nil
		}
		return nil, fmt.Errorf("read features: %w", err)
	}
	features, err := domain.DecodeFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("load features %s: %w", path, err)
	}
	return features, nil
}

// AppendRawRecords appends records to the raw log for date.
func (s *Store) AppendRawRecords(ctx context.Context, date string, records []*domain.Record) (string, error) {
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	path := s.LogPath(date)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("open raw log: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return "", err
		}
		line, err := storage.EncodeRecord(record)
		if err != nil {
			_ = f.Close()
			return "", err
		}
		_, _ = w.Write(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write raw log: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close raw log: %w", err)
	}
	return path, nil
}

// writeFileAtomic replaces path via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write features: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close features: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace features: %w", err)
	}
	return nil
}

// Dates lists the days with a raw log in the directory, oldest first.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	return s.datesWithSuffix(".jsonl")
}

// SummaryDates lists the days with a saved summary, oldest first.
func (s *Store) SummaryDates(ctx context.Context) ([]string, error) {
	return s.datesWithSuffix("_features.json")
}

func (s *Store) datesWithSuffix(suffix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+suffix))
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(matches))
	for _, m := range matches {
		date := strings.TrimSuffix(filepath.Base(m), suffix)
		if storage.ValidateDate(date) == nil {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}
