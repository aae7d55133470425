// Package sqlstore is an artifact.Store over database/sql. It speaks two dialects:
// sqlite (modernc.org/sqlite, no cgo) and postgres (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/adrg/xdg"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/sqlstore/migrations"
)

var _ artifact.Store = (*Store)(nil)

// Dialect selects the SQL flavor.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Store keeps one row per (run_id, artifact_type).
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithClock overrides the clock used for created_at.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// OpenSQLite opens (or creates) artifacts.db inside dataDir. An empty dataDir
// uses the XDG data home.
func OpenSQLite(dataDir string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dataDir) == "" {
		dataDir = filepath.Join(xdg.DataHome, "dealprep")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "artifacts.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return newStore(db, DialectSQLite, opts...)
}

// OpenPostgres connects with a lib/pq DSN.
func OpenPostgres(dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return newStore(db, DialectPostgres, opts...)
}

func newStore(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	fsys := migrations.SQLite
	dir := "sqlite"
	if dialect == DialectPostgres {
		fsys = migrations.Postgres
		dir = "postgres"
	}
	if err := s.migrate(fsys, dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect reports which SQL flavor the store speaks.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate(fsys fs.FS, dir string) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		version, err := strconv.Atoi(strings.SplitN(name, "_", 2)[0])
		if err != nil || version <= current {
			continue
		}
		body, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(body)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(
			s.rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
			version, time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// rebind rewrites "?" placeholders into "$n" for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) Save(ctx context.Context, runID string, t artifact.Type, content []byte, meta map[string]string) (artifact.Info, error) {
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Info{}, err
	}
	metaJSON, err := json.Marshal(artifact.CopyMeta(meta))
	if err != nil {
		return artifact.Info{}, fmt.Errorf("marshalling metadata: %w", err)
	}
	now := s.now().UTC()
	info := artifact.NewInfo(runID, t, content, now)
	if content == nil {
		content = []byte{}
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO artifacts (run_id, artifact_type, file_name, content, content_type, size, checksum, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, artifact_type) DO UPDATE SET
			file_name = excluded.file_name,
			content = excluded.content,
			content_type = excluded.content_type,
			size = excluded.size,
			checksum = excluded.checksum,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`), runID, string(t), info.FileName, content, info.ContentType, info.Size, info.Checksum,
		string(metaJSON), formatTime(now), formatTime(now))
	if err != nil {
		return artifact.Info{}, fmt.Errorf("saving artifact: %w", err)
	}

	// created_at survives overwrites; read back what the row holds.
	var created string
	if err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT created_at FROM artifacts WHERE run_id = ? AND artifact_type = ?",
	), runID, string(t)).Scan(&created); err != nil {
		return artifact.Info{}, fmt.Errorf("reading created_at: %w", err)
	}
	if ct, err := parseTime(created); err == nil {
		info.CreatedAt = ct
	}
	return info, nil
}

func (s *Store) Load(ctx context.Context, runID string, t artifact.Type) (artifact.Stored, error) {
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Stored{}, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT file_name, content, content_type, size, checksum, metadata, created_at
		FROM artifacts WHERE run_id = ? AND artifact_type = ?
	`), runID, string(t))

	var (
		out      artifact.Stored
		metaJSON string
		created  string
	)
	out.Info.RunID = runID
	out.Info.ArtifactType = t
	if err := row.Scan(&out.Info.FileName, &out.Content, &out.Info.ContentType, &out.Info.Size,
		&out.Info.Checksum, &metaJSON, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return artifact.Stored{}, artifact.ErrNotFound
		}
		return artifact.Stored{}, fmt.Errorf("scanning artifact: %w", err)
	}
	ct, err := parseTime(created)
	if err != nil {
		return artifact.Stored{}, fmt.Errorf("parsing created_at: %w", err)
	}
	out.Info.CreatedAt = ct
	out.Metadata = map[string]string{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &out.Metadata); err != nil {
			return artifact.Stored{}, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	return out, nil
}

func (s *Store) Exists(ctx context.Context, runID string, t artifact.Type) (bool, error) {
	if err := artifact.CheckKey(runID, t); err != nil {
		return false, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(
		"SELECT COUNT(1) FROM artifacts WHERE run_id = ? AND artifact_type = ?",
	), runID, string(t)).Scan(&n); err != nil {
		return false, fmt.Errorf("checking artifact: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, runID string, t *artifact.Type) error {
	if err := artifact.CheckRunID(runID); err != nil {
		return err
	}
	var err error
	if t == nil {
		_, err = s.db.ExecContext(ctx, s.rebind("DELETE FROM artifacts WHERE run_id = ?"), runID)
	} else {
		if kerr := artifact.CheckKey(runID, *t); kerr != nil {
			return kerr
		}
		_, err = s.db.ExecContext(ctx, s.rebind(
			"DELETE FROM artifacts WHERE run_id = ? AND artifact_type = ?",
		), runID, string(*t))
	}
	if err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// ListRuns returns distinct run ids, most recently created first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT run_id FROM artifacts
		WHERE artifact_type = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), string(artifact.TypeRunArtifact), limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning run id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
