// Package badgerstore keeps artifacts in an embedded Badger key-value database.
// Keys are "artifact/<run_id>/<file_name>".
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v3"

	"github.com/longhornrumble/dealprep/internal/artifact"
)

var _ artifact.Store = (*Store)(nil)

const keyPrefix = "artifact/"

type record struct {
	Info     artifact.Info     `json:"info"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Content  []byte            `json:"content"`
}

// Store is a Badger-backed artifact.Store.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock used for created_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// Open opens a database in dir. An empty dir uses the XDG data home; the
// special value ":memory:" opens an in-memory database.
func Open(dir string, opts ...Option) (*Store, error) {
	var bopts badger.Options
	switch strings.TrimSpace(dir) {
	case ":memory:":
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case "":
		bopts = badger.DefaultOptions(filepath.Join(xdg.DataHome, "dealprep", "badger"))
	default:
		bopts = badger.DefaultOptions(dir)
	}
	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(runID string, t artifact.Type) []byte {
	return []byte(keyPrefix + runID + "/" + t.FileName())
}

func runPrefix(runID string) []byte {
	return []byte(keyPrefix + runID + "/")
}

func (s *Store) Save(ctx context.Context, runID string, t artifact.Type, content []byte, meta map[string]string) (artifact.Info, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Info{}, err
	}
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Info{}, err
	}

	var info artifact.Info
	err := s.db.Update(func(txn *badger.Txn) error {
		createdAt := s.now()
		if prev, err := get(txn, key(runID, t)); err == nil {
			createdAt = prev.Info.CreatedAt
		} else if !errors.Is(err, artifact.ErrNotFound) {
			return err
		}
		info = artifact.NewInfo(runID, t, content, createdAt)
		b, err := json.Marshal(record{Info: info, Metadata: artifact.CopyMeta(meta), Content: content})
		if err != nil {
			return err
		}
		return txn.Set(key(runID, t), b)
	})
	if err != nil {
		return artifact.Info{}, fmt.Errorf("save artifact: %w", err)
	}
	return info, nil
}

func (s *Store) Load(ctx context.Context, runID string, t artifact.Type) (artifact.Stored, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Stored{}, err
	}
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Stored{}, err
	}
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = get(txn, key(runID, t))
		return err
	})
	if err != nil {
		return artifact.Stored{}, err
	}
	return artifact.Stored{
		Content:  rec.Content,
		Info:     rec.Info,
		Metadata: artifact.CopyMeta(rec.Metadata),
	}, nil
}

func (s *Store) Exists(ctx context.Context, runID string, t artifact.Type) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := artifact.CheckKey(runID, t); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(runID, t))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) Delete(ctx context.Context, runID string, t *artifact.Type) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := artifact.CheckRunID(runID); err != nil {
		return err
	}
	if t != nil {
		if err := artifact.CheckKey(runID, *t); err != nil {
			return err
		}
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key(runID, *t))
		})
	}

	var keys [][]byte
	prefix := runPrefix(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func get(txn *badger.Txn, k []byte) (record, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return record{}, artifact.ErrNotFound
	}
	if err != nil {
		return record{}, err
	}
	b, err := item.ValueCopy(nil)
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return record{}, fmt.Errorf("decode %s: %w", string(k), err)
	}
	return rec, nil
}
