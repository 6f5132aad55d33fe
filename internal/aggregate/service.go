// Package aggregate turns a day's raw activity records into a Features summary.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/workdigest/internal/config"
	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/goodtune/workdigest/internal/timeutil"
	"github.com/rs/zerolog"
)

const (
	DefaultExcludeRecent    = 120 * time.Second
	DefaultTimeBlockMinutes = 30
	DefaultTopKeywords      = 10
	DefaultTopFiles         = 5
	DefaultTopURLs          = 5
	DefaultSamplingInterval = 120 * time.Second
	DefaultMinCaptures      = 5

	// maxBlockApps is how many applications a time block keeps.
	maxBlockApps = 5
)

// Config holds the pipeline parameters
type Config struct {
	ExcludeRecent     time.Duration
	TimeBlockMinutes  int
	TopKeywords       int
	TopFiles          int
	TopURLs           int
	GlobalTopKeywords int // Whole-day ranking lengths; zero falls back to the per-app length
	GlobalTopFiles    int
	GlobalTopURLs     int
	SamplingInterval  time.Duration
	MinCaptures       int

	// Location renders block bounds and capture times. Nil keeps the
	// offset each record was logged with.
	Location *time.Location
}

// DefaultConfig returns the stock pipeline parameters.
func DefaultConfig() Config {
	return Config{
		ExcludeRecent:    DefaultExcludeRecent,
		TimeBlockMinutes: DefaultTimeBlockMinutes,
		TopKeywords:      DefaultTopKeywords,
		TopFiles:         DefaultTopFiles,
		TopURLs:          DefaultTopURLs,
		SamplingInterval: DefaultSamplingInterval,
		MinCaptures:      DefaultMinCaptures,
	}
}

// ConfigFrom converts the validated application configuration.
func ConfigFrom(cfg config.AggregationConfig) (Config, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, fmt.Errorf("load timezone: %w", err)
	}
	return Config{
		ExcludeRecent:     cfg.ExcludeRecentDuration(),
		TimeBlockMinutes:  cfg.TimeBlockMinutes,
		TopKeywords:       cfg.TopKeywords,
		TopFiles:          cfg.TopFiles,
		TopURLs:           cfg.TopURLs,
		GlobalTopKeywords: cfg.GlobalTopKeywords,
		GlobalTopFiles:    cfg.GlobalTopFiles,
		GlobalTopURLs:     cfg.GlobalTopURLs,
		SamplingInterval:  cfg.SamplingIntervalDuration(),
		MinCaptures:       cfg.MinCaptures,
		Location:          loc,
	}, nil
}

// Service runs the aggregation pipeline against a repository
type Service struct {
	repo   storage.Repository
	config Config
	clock  timeutil.Clock
	logger zerolog.Logger
}

// NewService creates an aggregation service. Zero-valued config fields fall
// back to their defaults; a nil clock uses wall time.
func NewService(repo storage.Repository, cfg Config, clock timeutil.Clock, logger zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.TimeBlockMinutes <= 0 {
		cfg.TimeBlockMinutes = def.TimeBlockMinutes
	}
	cfg.TopKeywords = clamp(cfg.TopKeywords, def.TopKeywords, domain.MaxAppKeywords)
	cfg.TopFiles = clamp(cfg.TopFiles, def.TopFiles, domain.MaxAppFiles)
	cfg.TopURLs = clamp(cfg.TopURLs, def.TopURLs, domain.MaxAppURLs)
	cfg.GlobalTopKeywords = clamp(cfg.GlobalTopKeywords, cfg.TopKeywords, domain.MaxGlobalKeywords)
	cfg.GlobalTopFiles = clamp(cfg.GlobalTopFiles, cfg.TopFiles, domain.MaxGlobalFiles)
	cfg.GlobalTopURLs = clamp(cfg.GlobalTopURLs, cfg.TopURLs, domain.MaxGlobalURLs)
	if cfg.SamplingInterval <= 0 {
		cfg.SamplingInterval = def.SamplingInterval
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Service{
		repo:   repo,
		config: cfg,
		clock:  clock,
		logger: logger.With().Str("component", "aggregator").Logger(),
	}
}

// Config returns the effective pipeline parameters.
func (s *Service) Config() Config { return s.config }

// Today returns the current date in the configured location.
func (s *Service) Today() string {
	now := s.clock.Now()
	if s.config.Location != nil {
		now = now.In(s.config.Location)
	}
	return now.Format(timeutil.DateLayout)
}

// Aggregate loads the raw records for date and reduces them to a summary.
// Repository errors (storage.ErrNotFound, ErrEmpty, ErrAllCorrupt) are
// returned wrapped.
func (s *Service) Aggregate(ctx context.Context, date string) (*domain.Features, error) {
	start := time.Now()
	features, err := s.aggregate(ctx, date)
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	metrics.AggregationRunsTotal.WithLabelValues(outcome(err)).Inc()
	return features, err
}

func (s *Service) aggregate(ctx context.Context, date string) (*domain.Features, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	s.logger.Info().Str("date", date).Msg("Starting aggregation")

	records, err := s.repo.LoadRawRecords(ctx, date)
	if err != nil {
		s.logger.Error().Err(err).Str("date", date).Msg("Failed to load raw records")
		return nil, fmt.Errorf("load raw records for %s: %w", date, err)
	}
	s.logger.Info().Int("records", len(records)).Msg("Read raw records")
	metrics.RecordsProcessed.WithLabelValues("loaded").Add(float64(len(records)))

	return s.Build(date, records)
}

// AggregateAndSave aggregates date and persists the result, returning the
// summary and the location it was written to.
func (s *Service) AggregateAndSave(ctx context.Context, date string) (*domain.Features, string, error) {
	features, err := s.Aggregate(ctx, date)
	if err != nil {
		return nil, "", err
	}
	location, err := s.repo.SaveFeatures(ctx, date, features)
	if err != nil {
		return nil, "", fmt.Errorf("save features for %s: %w", date, err)
	}
	s.logger.Info().Str("location", location).Msg("Features saved")
	return features, location, nil
}

// Build runs the in-memory part of the pipeline over already loaded records.
func (s *Service) Build(date string, records []*domain.Record) (*domain.Features, error) {
	now := s.clock.Now()

	settled := timeutil.FilterByAge(records, s.config.ExcludeRecent, now)
	idle := 0
	for _, r := range settled {
		if !r.HasContent() {
			idle++
		}
	}
	s.logger.Info().
		Int("before", len(records)).
		Int("after", len(settled)).
		Int("idle", idle).
		Msg("Filtered recent records")
	metrics.RecordsProcessed.WithLabelValues("settled").Add(float64(len(settled)))

	if len(settled) < s.config.MinCaptures {
		metrics.LowSampleRuns.Inc()
		s.logger.Warn().
			Int("captures", len(settled)).
			Int("minimum", s.config.MinCaptures).
			Msg("Not enough captures for a meaningful report")
	}

	blocks, err := s.buildTimeBlocks(settled)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("blocks", len(blocks)).Msg("Generated time blocks")

	apps, err := s.buildAppSummary(settled)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int("apps", len(apps)).Msg("Generated app summaries")

	global, err := s.buildGlobalKeywords(settled)
	if err != nil {
		return nil, err
	}

	meta := s.buildMeta(date, settled, now)

	features, err := domain.NewFeatures(meta, blocks, apps, global)
	if err != nil {
		return nil, fmt.Errorf("assemble features: %w", err)
	}
	metrics.LastCaptureCount.Set(float64(meta.CaptureCount))
	s.logger.Info().Stringer("features", features).Msg("Aggregation completed")
	return features, nil
}

// clamp keeps a ranking length inside what the summary entities accept.
func clamp(v, fallback, max int) int {
	if v <= 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, storage.ErrEmpty):
		return "empty"
	case errors.Is(err, storage.ErrAllCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}
