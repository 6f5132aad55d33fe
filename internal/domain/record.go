package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goodtune/workdigest/internal/timeutil"
)

// Field names a list-typed feature of a Record.
type Field string

const (
	FieldKeywords Field = "keywords"
	FieldURLs     Field = "urls"
	FieldFiles    Field = "files"
	FieldNumbers  Field = "numbers"
)

// RecordFields is the unvalidated input to NewRecord.
type RecordFields struct {
	Timestamp   string
	WindowTitle string
	ProcessName string
	Keywords    []string
	URLs        []string
	Files       []string
	Numbers     []string
}

// Record is one observed activity sample.
type Record struct {
	rawTS       string
	ts          time.Time
	windowTitle string
	processName string
	keywords    []string
	urls        []string
	files       []string
	numbers     []string
}

// NewRecord validates and normalizes a raw activity sample.
func NewRecord(f RecordFields) (*Record, error) {
	raw := strings.TrimSpace(f.Timestamp)
	ts, err := timeutil.ParseTimestamp(raw)
	if err != nil {
		return nil, invalid("record", "ts", f.Timestamp, err.Error())
	}
	return &Record{
		rawTS:       raw,
		ts:          ts,
		windowTitle: strings.TrimSpace(f.WindowTitle),
		processName: strings.TrimSpace(f.ProcessName),
		keywords:    cleanList(f.Keywords),
		urls:        cleanList(f.URLs),
		files:       cleanList(f.Files),
		numbers:     cleanList(f.Numbers),
	}, nil
}

// cleanList trims entries, drops blanks and exact duplicates, keeping first-seen order.
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Timestamp returns the parsed capture time.
func (r *Record) Timestamp() time.Time { return r.ts }

// RawTimestamp returns the timestamp exactly as it was logged.
func (r *Record) RawTimestamp() string { return r.rawTS }

// WindowTitle returns the window title, or "" when absent.
func (r *Record) WindowTitle() string { return r.windowTitle }

// ProcessName returns the raw process identifier, or "" when absent.
func (r *Record) ProcessName() string { return r.processName }

func (r *Record) Keywords() []string { return cloneStrings(r.keywords) }
func (r *Record) URLs() []string     { return cloneStrings(r.urls) }
func (r *Record) Files() []string    { return cloneStrings(r.files) }
func (r *Record) Numbers() []string  { return cloneStrings(r.numbers) }

// Values returns a copy of the named list field, or nil for an unknown field.
func (r *Record) Values(field Field) []string {
	switch field {
	case FieldKeywords:
		return r.Keywords()
	case FieldURLs:
		return r.URLs()
	case FieldFiles:
		return r.Files()
	case FieldNumbers:
		return r.Numbers()
	}
	return nil
}

// MergeFeatures folds the list fields of other into r, deduplicating and
// keeping first-seen order. The timestamp is never changed.
func (r *Record) MergeFeatures(other *Record) {
	if other == nil {
		return
	}
	r.keywords = cleanList(append(r.keywords, other.keywords...))
	r.urls = cleanList(append(r.urls, other.urls...))
	r.files = cleanList(append(r.files, other.files...))
	r.numbers = cleanList(append(r.numbers, other.numbers...))
}

// HasContent reports whether the sample carries anything worth aggregating.
func (r *Record) HasContent() bool {
	return r.windowTitle != "" || r.processName != "" ||
		len(r.keywords) > 0 || len(r.urls) > 0 || len(r.files) > 0
}

// AppIdentifier derives a lower-case application key, preferring the process
// name and falling back to the last "-" separated part of the window title.
func (r *Record) AppIdentifier() string {
	if r.processName != "" {
		return strings.ReplaceAll(strings.ToLower(r.processName), ".exe", "")
	}
	if r.windowTitle != "" {
		parts := strings.Split(strings.ToLower(r.windowTitle), "-")
		if len(parts) > 1 {
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}
	return "unknown"
}

func (r *Record) String() string {
	title := r.windowTitle
	if title == "" {
		title = "(no title)"
	}
	return fmt.Sprintf("[%s] %s: %s", r.rawTS, r.AppIdentifier(), title)
}

type recordJSON struct {
	TS          string   `json:"ts"`
	WindowTitle *string  `json:"window_title"`
	ProcessName *string  `json:"process_name"`
	Keywords    []string `json:"keywords"`
	URLs        []string `json:"urls"`
	Files       []string `json:"files"`
	Numbers     []string `json:"numbers"`
}

// MarshalJSON renders the raw log line shape.
func (r *Record) MarshalJSON() ([]byte, error) {
	return marshalVerbatim(recordJSON{
		TS:          r.rawTS,
		WindowTitle: optional(r.windowTitle),
		ProcessName: optional(r.processName),
		Keywords:    nonNil(r.keywords),
		URLs:        nonNil(r.urls),
		Files:       nonNil(r.files),
		Numbers:     nonNil(r.numbers),
	})
}

// UnmarshalJSON decodes a raw log line and validates it. List fields whose
// value is not a list are ignored, as are non-string list entries.
func (r *Record) UnmarshalJSON(data []byte) error {
	var aux struct {
		TS          string          `json:"ts"`
		WindowTitle *string         `json:"window_title"`
		ProcessName *string         `json:"process_name"`
		Keywords    json.RawMessage `json:"keywords"`
		URLs        json.RawMessage `json:"urls"`
		Files       json.RawMessage `json:"files"`
		Numbers     json.RawMessage `json:"numbers"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	record, err := NewRecord(RecordFields{
		Timestamp:   aux.TS,
		WindowTitle: deref(aux.WindowTitle),
		ProcessName: deref(aux.ProcessName),
		Keywords:    decodeStringList(aux.Keywords),
		URLs:        decodeStringList(aux.URLs),
		Files:       decodeStringList(aux.Files),
		Numbers:     decodeStringList(aux.Numbers),
	})
	if err != nil {
		return err
	}
	*r = *record
	return nil
}

func decodeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// marshalVerbatim is json.Marshal without HTML escaping, so URLs keep their
// literal "&", "<" and ">".
func marshalVerbatim(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
