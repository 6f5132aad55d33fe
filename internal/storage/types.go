package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/rs/zerolog"
)

// LoadStats counts what happened to each line of a raw log.
type LoadStats struct {
	TotalLines int
	BlankLines int
	Malformed  int
	Loaded     int
}

// LineDecoder turns raw JSON lines into records, skipping and counting the
// ones that fail to decode or validate.
type LineDecoder struct {
	Backend  string
	Location string
	Logger   zerolog.Logger

	stats   LoadStats
	records []*domain.Record
}

// Decode consumes one line. lineNum is 1-based and only used for logging.
func (d *LineDecoder) Decode(lineNum int, line []byte) {
	d.stats.TotalLines++
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		d.stats.BlankLines++
		return
	}

	var record domain.Record
	if err := json.Unmarshal(line, &record); err != nil {
		d.stats.Malformed++
		metrics.RawLinesSkipped.WithLabelValues(d.Backend).Inc()
		preview := line
		if len(preview) > 100 {
			preview = preview[:100]
		}
		d.Logger.Warn().
			Err(err).
			Str("location", d.Location).
			Int("line", lineNum).
			Bytes("content", preview).
			Msg("Skipping malformed raw log line")
		return
	}
	d.stats.Loaded++
	d.records = append(d.records, &record)
}

// Oversized records a line that was too long to decode as malformed.
func (d *LineDecoder) Oversized(lineNum int) {
	d.stats.TotalLines++
	d.stats.Malformed++
	metrics.RawLinesSkipped.WithLabelValues(d.Backend).Inc()
	d.Logger.Warn().
		Str("location", d.Location).
		Int("line", lineNum).
		Msg("Skipping oversized raw log line")
}

// Stats returns the counters accumulated so far.
func (d *LineDecoder) Stats() LoadStats { return d.stats }

// Result returns the decoded records, or the taxonomy error when none
// survived.
func (d *LineDecoder) Result() ([]*domain.Record, error) {
	d.Logger.Info().
		Str("location", d.Location).
		Int("records", d.stats.Loaded).
		Int("total_lines", d.stats.TotalLines).
		Int("errors", d.stats.Malformed).
		Msg("Read raw log")

	if len(d.records) == 0 {
		if d.stats.Malformed > 0 {
			return nil, fmt.Errorf("%w: %s (%d lines)", ErrAllCorrupt, d.Location, d.stats.Malformed)
		}
		return nil, fmt.Errorf("%w: %s", ErrEmpty, d.Location)
	}
	return d.records, nil
}

// EncodeFeatures renders a summary in its persisted form: 2-space indented
// JSON with a trailing newline. URLs are kept verbatim, without HTML escaping.
func EncodeFeatures(features *domain.Features) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(features); err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeRecord renders a record as one raw log line without the newline.
func EncodeRecord(record *domain.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
