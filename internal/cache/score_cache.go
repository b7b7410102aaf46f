// Package cache stores engine scores by video content hash so a re-uploaded
// file skips frame analysis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kdimtricp/verifai/internal/ensemble"
	"github.com/kdimtricp/verifai/internal/logging"
	"github.com/kdimtricp/verifai/internal/metrics"
)

const scoreKeyPrefix = "scores:"

// Config controls where the cache lives and how long entries survive.
type Config struct {
	Dir      string        `koanf:"dir"`
	InMemory bool          `koanf:"in_memory"`
	TTL      time.Duration `koanf:"ttl"`
}

// Entry is what the cache persists for one file. Settings identifies the
// extraction options and classifier the scores were computed under.
type Entry struct {
	Breakdown ensemble.Breakdown `json:"breakdown"`
	Frames    int                `json:"frames"`
	Settings  string             `json:"settings"`
	StoredAt  time.Time          `json:"stored_at"`
}

// ScoreCache is a badger-backed map from content hash to engine scores.
type ScoreCache struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens (or creates) the badger store described by cfg.
func Open(cfg Config) (*ScoreCache, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open score cache: %w", err)
	}

	logging.Info().
		Str("dir", cfg.Dir).
		Bool("in_memory", cfg.InMemory).
		Dur("ttl", cfg.TTL).
		Msg("Score cache opened")
	return New(db, cfg.TTL), nil
}

// New wraps an already open database. A zero ttl keeps entries forever.
func New(db *badger.DB, ttl time.Duration) *ScoreCache {
	return &ScoreCache{db: db, ttl: ttl}
}

// Get returns the cached entry for key. The boolean is false on a miss.
func (c *ScoreCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(scoreKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordCache(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached scores: %w", err)
	}

	metrics.RecordCache(true)
	return &entry, true, nil
}

// Put stores e under key, stamping StoredAt.
func (c *ScoreCache) Put(ctx context.Context, key string, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.StoredAt = time.Now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cached scores: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		be := badger.NewEntry([]byte(scoreKeyPrefix+key), data)
		if c.ttl > 0 {
			be = be.WithTTL(c.ttl)
		}
		if err := txn.SetEntry(be); err != nil {
			return fmt.Errorf("set cached scores: %w", err)
		}
		return nil
	})
}

// Delete drops the entry for key. Missing keys are not an error.
func (c *ScoreCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(scoreKeyPrefix + key))
	})
}

// RunGC rewrites value log files until badger reports nothing left to
// reclaim.
func (c *ScoreCache) RunGC(discardRatio float64) error {
	for {
		err := c.db.RunValueLogGC(discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}

// Close flushes and closes the underlying database.
func (c *ScoreCache) Close() error {
	return c.db.Close()
}

// HashFile returns the hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
