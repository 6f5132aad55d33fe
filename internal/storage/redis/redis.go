package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/workdigest/internal/config"
	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const backend = "redis"

// Store implements the storage.Store interface using Redis
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig, logger zerolog.Logger) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{
		client: client,
		logger: logger.With().Str("component", "storage").Str("backend", backend).Logger(),
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func rawKey(date string) string      { return "workdigest:raw:" + date }
func featuresKey(date string) string { return "workdigest:features:" + date }

const (
	rawDatesKey      = "workdigest:raw:dates"
	featuresDatesKey = "workdigest:features:dates"
)

func (s *Store) LoadRawRecords(ctx context.Context, date string) ([]*domain.Record, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	key := rawKey(date)

	lines, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read raw log: %w", err)
	}
	if len(lines) == 0 {
		s.logger.Error().Str("key", key).Msg("Raw log not found")
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}

	decoder := &storage.LineDecoder{Backend: backend, Location: key, Logger: s.logger}
	for i, line := range lines {
		decoder.Decode(i+1, []byte(line))
	}
	return decoder.Result()
}

// AppendRawRecords pushes records onto the day's list.
func (s *Store) AppendRawRecords(ctx context.Context, date string, records []*domain.Record) (string, error) {
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	key := rawKey(date)
	if len(records) == 0 {
		return key, nil
	}
	lines := make([]interface{}, len(records))
	for i, record := range records {
		data, err := storage.EncodeRecord(record)
		if err != nil {
			return "", err
		}
		lines[i] = string(data)
	}
	if err := s.appendRawLines(ctx, date, lines...); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) appendRawLines(ctx context.Context, date string, lines ...interface{}) error {
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, rawKey(date), lines...)
	pipe.SAdd(ctx, rawDatesKey, date)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append raw log: %w", err)
	}
	return nil
}

func (s *Store) SaveFeatures(ctx context.Context, date string, features *domain.Features) (string, error) {
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	data, err := storage.EncodeFeatures(features)
	if err != nil {
		return "", err
	}
	key := featuresKey(date)
	script := redis.NewScript(saveFeaturesScript)
	if err := script.Run(ctx, s.client, []string{key, featuresDatesKey}, date, string(data)).Err(); err != nil {
		return "", fmt.Errorf("save features: %w", err)
	}
	metrics.FeaturesSaved.WithLabelValues(backend).Inc()
	s.logger.Info().Str("key", key).Msg("Features saved")
	return key, nil
}

func (s *Store) LoadFeatures(ctx context.Context, date string) (*domain.Features, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	key := featuresKey(date)
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	features, err := domain.DecodeFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("load features %s: %w", key, err)
	}
	return features, nil
}

// Dates lists the days that hold raw records, oldest first.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.client.SMembers(ctx, rawDatesKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(dates)
	return dates, nil
}

// SummaryDates lists the days with a saved summary, oldest first.
func (s *Store) SummaryDates(ctx context.Context) ([]string, error) {
	dates, err := s.client.SMembers(ctx, featuresDatesKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(dates)
	return dates, nil
}
