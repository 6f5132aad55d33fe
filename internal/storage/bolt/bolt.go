package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"github.com/goodtune/workdigest/internal/domain"
	"github.com/goodtune/workdigest/internal/metrics"
	"github.com/goodtune/workdigest/internal/storage"
	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"
)

const (
	backend = "bolt"

	// bucketRaw holds one nested bucket per date, keyed by insertion sequence.
	bucketRaw      = "raw"
	bucketFeatures = "features"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db     *bbolt.DB
	path   string
	logger zerolog.Logger
}

// Open opens a BoltDB-backed store.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{
		db:     db,
		path:   path,
		logger: logger.With().Str("component", "storage").Str("backend", backend).Logger(),
	}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketRaw, bucketFeatures} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) location(bucket, key string) string {
	return fmt.Sprintf("%s#%s/%s", s.path, bucket, key)
}

func (s *Store) LoadRawRecords(ctx context.Context, date string) ([]*domain.Record, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	location := s.location(bucketRaw, date)
	decoder := &storage.LineDecoder{Backend: backend, Location: location, Logger: s.logger}

	err := s.db.View(func(tx *bbolt.Tx) error {
		day := tx.Bucket([]byte(bucketRaw)).Bucket([]byte(date))
		if day == nil {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, location)
		}
		line := 0
		return day.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			line++
			decoder.Decode(line, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return decoder.Result()
}

// AppendRawRecords stores records after any already held for date.
func (s *Store) AppendRawRecords(ctx context.Context, date string, records []*domain.Record) (string, error) {
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	lines := make([][]byte, len(records))
	for i, record := range records {
		data, err := storage.EncodeRecord(record)
		if err != nil {
			return "", err
		}
		lines[i] = data
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		day, err := tx.Bucket([]byte(bucketRaw)).CreateBucketIfNotExists([]byte(date))
		if err != nil {
			return fmt.Errorf("create day bucket: %w", err)
		}
		for _, line := range lines {
			seq, err := day.NextSequence()
			if err != nil {
				return err
			}
			if err := day.Put(sequenceKey(seq), line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.location(bucketRaw, date), nil
}

// appendRawLines stores pre-encoded lines as-is.
func (s *Store) appendRawLines(date string, lines ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		day, err := tx.Bucket([]byte(bucketRaw)).CreateBucketIfNotExists([]byte(date))
		if err != nil {
			return err
		}
		for _, line := range lines {
			seq, err := day.NextSequence()
			if err != nil {
				return err
			}
			if err := day.Put(sequenceKey(seq), []byte(line)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SaveFeatures(ctx context.Context, date string, features *domain.Features) (string, error) {
	if err := storage.ValidateDate(date); err != nil {
		return "", err
	}
	data, err := storage.EncodeFeatures(features)
	if err != nil {
		return "", err
	}
	if err := putBucketValue(ctx, s.db, bucketFeatures, date, data); err != nil {
		return "", fmt.Errorf("save features: %w", err)
	}
	metrics.FeaturesSaved.WithLabelValues(backend).Inc()
	location := s.location(bucketFeatures, date)
	s.logger.Info().Str("location", location).Msg("Features saved")
	return location, nil
}

func (s *Store) LoadFeatures(ctx context.Context, date string) (*domain.Features, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, err
	}
	data, err := getBucketValue(ctx, s.db, bucketFeatures, date)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	features, err := domain.DecodeFeatures(data)
	if err != nil {
		return nil, fmt.Errorf("load features %s: %w", s.location(bucketFeatures, date), err)
	}
	return features, nil
}

// Dates lists the days that hold raw records, oldest first.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	dates := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRaw)).ForEachBucket(func(k []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dates = append(dates, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// SummaryDates lists the days with a saved summary, oldest first.
func (s *Store) SummaryDates(ctx context.Context) ([]string, error) {
	dates := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketFeatures)).ForEach(func(k, _ []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			dates = append(dates, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// getBucketValue returns a copy of the value, or nil when the key is absent.
func getBucketValue(ctx context.Context, db *bbolt.DB, bucket string, key string) ([]byte, error) {
	var out []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucket)
		}
		if value := b.Get([]byte(key)); value != nil {
			out = append([]byte(nil), value...)
		}
		return nil
	})
	return out, err
}

func putBucketValue(ctx context.Context, db *bbolt.DB, bucket string, key string, value []byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucket)
		}
		return b.Put([]byte(key), value)
	})
}
