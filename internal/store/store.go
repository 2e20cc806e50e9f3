// Package store persists the three storefront records: the site config, the
// product catalog and the visitor log.
//
// The contract is deliberately forgiving. A load never fails: an absent,
// unreadable or corrupt record yields the built-in default. A save never
// fails either: the error is logged and the in-memory state stays
// authoritative until the next successful write. Records are always written
// whole; there are no partial updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/database"
	"github.com/Moaaz208/Mizo-Candle/internal/models"
	"github.com/Moaaz208/Mizo-Candle/pkg/cache"
	"github.com/rs/zerolog/log"
)

// KV is the storage a Store needs. Get must return database.ErrNotFound for
// an absent key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Recorder observes store operations, typically for metrics.
// status is one of "ok", "default", "error".
type Recorder func(operation, status string, duration time.Duration)

// Store reads and writes storefront records through a KV backend.
type Store struct {
	kv        KV
	namespace string
	record    Recorder

	// appendMu serialises AppendVisitorLog so two snapshots captured at the
	// same moment cannot drop each other.
	appendMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder installs an operation observer.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.record = r }
}

// New returns a Store writing keys under namespace.
func New(kv KV, namespace string, opts ...Option) *Store {
	s := &Store{
		kv:        kv,
		namespace: namespace,
		record:    func(string, string, time.Duration) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadProducts returns the catalog, or the starter catalog when none is stored.
// An explicitly stored empty list stays empty.
func (s *Store) LoadProducts(ctx context.Context) []models.Product {
	var products []models.Product
	if !s.load(ctx, cache.ProductsRecord, &products) || products == nil {
		return models.DefaultProducts()
	}
	return products
}

// SaveProducts overwrites the catalog.
func (s *Store) SaveProducts(ctx context.Context, products []models.Product) {
	if products == nil {
		products = []models.Product{}
	}
	s.save(ctx, cache.ProductsRecord, products)
}

// LoadSiteConfig returns the stored config. Fields missing from an older
// record keep their default values.
func (s *Store) LoadSiteConfig(ctx context.Context) models.SiteConfig {
	cfg := models.DefaultSiteConfig()
	if !s.load(ctx, cache.ConfigRecord, &cfg) {
		return models.DefaultSiteConfig()
	}
	return cfg
}

// SaveSiteConfig overwrites the site config.
func (s *Store) SaveSiteConfig(ctx context.Context, cfg models.SiteConfig) {
	s.save(ctx, cache.ConfigRecord, cfg)
}

// LoadVisitorLogs returns the visitor log, newest first.
func (s *Store) LoadVisitorLogs(ctx context.Context) []models.VisitorLog {
	var logs []models.VisitorLog
	if !s.load(ctx, cache.VisitorLogsRecord, &logs) || logs == nil {
		return []models.VisitorLog{}
	}
	return logs
}

// SaveVisitorLogs overwrites the visitor log. Lists longer than
// models.MaxVisitorLogs are truncated.
func (s *Store) SaveVisitorLogs(ctx context.Context, logs []models.VisitorLog) {
	if len(logs) > models.MaxVisitorLogs {
		logs = logs[:models.MaxVisitorLogs]
	}
	if logs == nil {
		logs = []models.VisitorLog{}
	}
	s.save(ctx, cache.VisitorLogsRecord, logs)
}

// AppendVisitorLog prepends entry and keeps the newest models.MaxVisitorLogs.
func (s *Store) AppendVisitorLog(ctx context.Context, entry models.VisitorLog) {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	current := s.LoadVisitorLogs(ctx)

	updated := make([]models.VisitorLog, 0, min(len(current)+1, models.MaxVisitorLogs))
	updated = append(updated, entry)
	updated = append(updated, current...)

	s.SaveVisitorLogs(ctx, updated)
}

// load decodes the record into dst. It reports false when the caller should
// fall back to the default.
func (s *Store) load(ctx context.Context, record string, dst interface{}) bool {
	start := time.Now()
	key := cache.RecordKey(s.namespace, record)

	data, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		s.record("load_"+record, "default", time.Since(start))
		return false
	case err != nil:
		log.Warn().Err(err).Str("key", key).Msg("Failed to read record, using default")
		s.record("load_"+record, "error", time.Since(start))
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Corrupt record, using default")
		s.record("load_"+record, "error", time.Since(start))
		return false
	}

	s.record("load_"+record, "ok", time.Since(start))
	return true
}

func (s *Store) save(ctx context.Context, record string, value interface{}) {
	start := time.Now()
	key := cache.RecordKey(s.namespace, record)

	data, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to encode record")
		s.record("save_"+record, "error", time.Since(start))
		return
	}

	if err := s.kv.Set(ctx, key, data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to persist record")
		s.record("save_"+record, "error", time.Since(start))
		return
	}

	s.record("save_"+record, "ok", time.Since(start))
}
