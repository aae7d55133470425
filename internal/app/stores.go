package app

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/badgerstore"
	"github.com/longhornrumble/dealprep/internal/artifact/fsstore"
	"github.com/longhornrumble/dealprep/internal/artifact/remote"
	"github.com/longhornrumble/dealprep/internal/artifact/sqlstore"
	"github.com/longhornrumble/dealprep/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore builds the artifact backend named by cfg.Driver. The closer must be
// closed once the store is no longer used.
func OpenStore(cfg config.Store) (artifact.Store, io.Closer, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		dir = config.DataDir()
	}
	switch cfg.Driver {
	case "memory":
		return artifact.NewMemoryStore(), nopCloser{}, nil
	case "", "fs":
		s, err := fsstore.New(filepath.Join(dir, "artifacts"))
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case "sqlite":
		s, err := sqlstore.OpenSQLite(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := sqlstore.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "badger":
		s, err := badgerstore.Open(filepath.Join(dir, "badger"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "remote":
		s, err := remote.New(remote.Config{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			CAPath:  cfg.CAPath,
			Timeout: cfg.Timeout.D(),
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
