// Package remote is an artifact.Store backed by an HTTP artifact bucket.
//
// The bucket API addresses artifacts as /v1/runs/{run_id}/artifacts/{file_name}.
// PUT stores the request body and answers with the artifact's info as JSON; GET
// returns the raw content with info in X-Artifact-* headers; HEAD probes; DELETE
// removes one artifact, or all of a run when sent to /v1/runs/{run_id}/artifacts.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/httpapi"
)

var _ artifact.Store = (*Store)(nil)

// Header names shared with the bucket server.
const (
	HeaderMetaPrefix = "X-Artifact-Meta-"
	HeaderCreatedAt  = "X-Artifact-Created-At"
	HeaderChecksum   = "X-Artifact-Checksum"
)

// Config configures the bucket client.
type Config struct {
	BaseURL string
	Token   string
	CAPath  string
	Timeout time.Duration

	// Attempts bounds retries of transient failures; 0 means 4.
	Attempts int
	// RetryBase is the first backoff sleep; 0 means 200ms.
	RetryBase time.Duration

	HTTPClient *http.Client
}

// Store talks to the bucket API.
type Store struct {
	c         *httpapi.Client
	attempts  int
	retryBase time.Duration
}

// New builds a Store.
func New(cfg Config) (*Store, error) {
	c, err := httpapi.New(httpapi.Config{
		Service:    "artifact store",
		BaseURL:    cfg.BaseURL,
		Auth:       httpapi.BearerAuth(cfg.Token),
		CAPath:     cfg.CAPath,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	s := &Store{c: c, attempts: cfg.Attempts, retryBase: cfg.RetryBase}
	if s.attempts <= 0 {
		s.attempts = 4
	}
	if s.retryBase <= 0 {
		s.retryBase = 200 * time.Millisecond
	}
	return s, nil
}

// ArtifactPath is the bucket path of one artifact.
func ArtifactPath(runID string, t artifact.Type) string {
	return RunPath(runID) + "/" + url.PathEscape(t.FileName())
}

// RunPath is the bucket path of every artifact of a run.
func RunPath(runID string) string {
	return "v1/runs/" + url.PathEscape(runID) + "/artifacts"
}

// MetaHeader encodes metadata as X-Artifact-Meta-* headers.
func MetaHeader(h http.Header, meta map[string]string) {
	for k, v := range meta {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		h.Set(HeaderMetaPrefix+k, v)
	}
}

// MetaFromHeader decodes X-Artifact-Meta-* headers. Keys come back lowercased.
func MetaFromHeader(h http.Header) map[string]string {
	out := map[string]string{}
	for k, vs := range h {
		if len(vs) == 0 || len(k) <= len(HeaderMetaPrefix) {
			continue
		}
		if !strings.EqualFold(k[:len(HeaderMetaPrefix)], HeaderMetaPrefix) {
			continue
		}
		out[strings.ToLower(k[len(HeaderMetaPrefix):])] = vs[0]
	}
	return out
}

func (s *Store) retry(ctx context.Context, f func() error) error {
	return httpapi.RetryTransient(ctx, s.attempts, s.retryBase, f)
}

func (s *Store) Save(ctx context.Context, runID string, t artifact.Type, content []byte, meta map[string]string) (artifact.Info, error) {
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Info{}, err
	}
	h := http.Header{}
	h.Set("Content-Type", artifact.ContentTypeJSON)
	MetaHeader(h, meta)

	var info artifact.Info
	err := s.retry(ctx, func() error {
		resp, err := s.c.Do(ctx, "putArtifact", http.MethodPut, ArtifactPath(runID, t), content, h.Clone())
		if err != nil {
			return err
		}
		if err := json.Unmarshal(resp.Body, &info); err != nil {
			return fmt.Errorf("parse artifact info: %w", err)
		}
		return nil
	})
	if err != nil {
		return artifact.Info{}, err
	}
	return info, nil
}

func (s *Store) Load(ctx context.Context, runID string, t artifact.Type) (artifact.Stored, error) {
	if err := artifact.CheckKey(runID, t); err != nil {
		return artifact.Stored{}, err
	}
	var out artifact.Stored
	err := s.retry(ctx, func() error {
		resp, err := s.c.Do(ctx, "getArtifact", http.MethodGet, ArtifactPath(runID, t), nil, nil)
		if err != nil {
			if resp.StatusCode == http.StatusNotFound {
				return artifact.ErrNotFound
			}
			return err
		}
		out = artifact.Stored{
			Content:  resp.Body,
			Info:     infoFromHeader(runID, t, resp),
			Metadata: MetaFromHeader(resp.Header),
		}
		return nil
	})
	if err != nil {
		return artifact.Stored{}, err
	}
	return out, nil
}

func infoFromHeader(runID string, t artifact.Type, resp httpapi.Response) artifact.Info {
	info := artifact.NewInfo(runID, t, resp.Body, time.Time{})
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		info.ContentType = ct
	}
	if cs := resp.Header.Get(HeaderChecksum); cs != "" {
		info.Checksum = cs
	}
	if ts := resp.Header.Get(HeaderCreatedAt); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			info.CreatedAt = parsed.UTC()
		}
	}
	return info
}

func (s *Store) Exists(ctx context.Context, runID string, t artifact.Type) (bool, error) {
	if err := artifact.CheckKey(runID, t); err != nil {
		return false, err
	}
	var found bool
	err := s.retry(ctx, func() error {
		resp, err := s.c.Do(ctx, "headArtifact", http.MethodHead, ArtifactPath(runID, t), nil, nil)
		if err != nil {
			if resp.StatusCode == http.StatusNotFound {
				found = false
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) Delete(ctx context.Context, runID string, t *artifact.Type) error {
	if err := artifact.CheckRunID(runID); err != nil {
		return err
	}
	p := RunPath(runID)
	if t != nil {
		if err := artifact.CheckKey(runID, *t); err != nil {
			return err
		}
		p = ArtifactPath(runID, *t)
	}
	return s.retry(ctx, func() error {
		resp, err := s.c.Do(ctx, "deleteArtifact", http.MethodDelete, p, nil, nil)
		if err != nil && resp.StatusCode != http.StatusNotFound {
			return err
		}
		return nil
	})
}
