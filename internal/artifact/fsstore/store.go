// Package fsstore stores artifacts as files under <root>/<run_id>/<file_name>, with
// a JSON sidecar per artifact holding its metadata.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/longhornrumble/dealprep/internal/artifact"
)

var _ artifact.Store = (*Store)(nil)

const sidecarSuffix = ".meta.json"

// Store is a filesystem-backed artifact.Store.
type Store struct {
	root string
	now  func() time.Time
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock used for created_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.now = clock
	}
}

type sidecar struct {
	Info     artifact.Info     `json:"info"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DefaultRoot is the artifact directory under the XDG data home.
func DefaultRoot() string {
	return filepath.Join(xdg.DataHome, "dealprep", "artifacts")
}

// New creates the root directory if needed. An empty root uses DefaultRoot.
func New(root string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultRoot()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	s := &Store{root: root, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the directory the store writes under.
func (s *Store) Root() string { return s.root }

func (s *Store) paths(runID string, t artifact.Type) (content, meta string) {
	content = filepath.Join(s.root, runID, t.FileName())
	return content, content + sidecarSuffix
}

func (s *Store) Save(ctx context.Context, runID string, t artifact.Type, content []byte, meta map[string]string) (artifact.Info, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Info{}, err
	}
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Info{}, err
	}
	contentPath, metaPath := s.paths(runID, t)
	if err := os.MkdirAll(filepath.Dir(contentPath), 0o755); err != nil {
		return artifact.Info{}, fmt.Errorf("create run dir: %w", err)
	}

	createdAt := s.now()
	if prev, err := readSidecar(metaPath); err == nil {
		createdAt = prev.Info.CreatedAt
	}

	info := artifact.NewInfo(runID, t, content, createdAt)
	if err := writeAtomic(contentPath, content); err != nil {
		return artifact.Info{}, err
	}
	b, err := json.MarshalIndent(sidecar{Info: info, Metadata: artifact.CopyMeta(meta)}, "", "  ")
	if err != nil {
		return artifact.Info{}, err
	}
	if err := writeAtomic(metaPath, b); err != nil {
		return artifact.Info{}, err
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
	contentPath, metaPath := s.paths(runID, t)
	content, err := os.ReadFile(contentPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return artifact.Stored{}, artifact.ErrNotFound
		}
		return artifact.Stored{}, err
	}
	sc, err := readSidecar(metaPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return artifact.Stored{}, err
		}
		// Content written by hand without a sidecar: derive what we can.
		st, statErr := os.Stat(contentPath)
		if statErr != nil {
			return artifact.Stored{}, statErr
		}
		sc = sidecar{Info: artifact.NewInfo(runID, t, content, st.ModTime())}
	}
	return artifact.Stored{
		Content:  content,
		Info:     sc.Info,
		Metadata: artifact.CopyMeta(sc.Metadata),
	}, nil
}

func (s *Store) Exists(ctx context.Context, runID string, t artifact.Type) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := artifact.CheckKey(runID, t); err != nil {
		return false, err
	}
	contentPath, _ := s.paths(runID, t)
	_, err := os.Stat(contentPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *Store) Delete(ctx context.Context, runID string, t *artifact.Type) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := artifact.CheckRunID(runID); err != nil {
		return err
	}
	if t == nil {
		return os.RemoveAll(filepath.Join(s.root, runID))
	}
	if err := artifact.CheckKey(runID, *t); err != nil {
		return err
	}
	contentPath, metaPath := s.paths(runID, *t)
	for _, p := range []string{contentPath, metaPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func readSidecar(path string) (sidecar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var sc sidecar
	if err := json.Unmarshal(b, &sc); err != nil {
		return sidecar{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return sc, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
