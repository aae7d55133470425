// Package artifact defines the per-run artifact store contract and an in-memory
// implementation. Artifacts are addressed by (run id, artifact type).
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when the artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Type names one artifact of a run.
type Type string

const (
	TypeInput       Type = "input"
	TypeScrape      Type = "scrape"
	TypeEnrichment  Type = "enrichment"
	TypeBrief       Type = "brief"
	TypeRunArtifact Type = "run_artifact"
)

// ContentTypeJSON is the content type of every artifact.
const ContentTypeJSON = "application/json"

// Types lists every artifact type in pipeline order.
func Types() []Type {
	return []Type{TypeInput, TypeScrape, TypeEnrichment, TypeBrief, TypeRunArtifact}
}

// FileName returns the canonical file name for t, or "" for unknown types.
func (t Type) FileName() string {
	switch t {
	case TypeInput, TypeScrape, TypeEnrichment, TypeBrief, TypeRunArtifact:
		return string(t) + ".json"
	default:
		return ""
	}
}

// ParseType accepts either an artifact type or its canonical file name.
func ParseType(s string) (Type, error) {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".json")
	t := Type(s)
	if t.FileName() == "" {
		return "", fmt.Errorf("unknown artifact type %q", s)
	}
	return t, nil
}

// TypeFromFileName maps a canonical file name back to its type.
func TypeFromFileName(name string) (Type, bool) {
	for _, t := range Types() {
		if t.FileName() == name {
			return t, true
		}
	}
	return "", false
}

// Info describes a stored artifact.
type Info struct {
	RunID        string    `json:"run_id"`
	ArtifactType Type      `json:"artifact_type"`
	FileName     string    `json:"file_name"`
	CreatedAt    time.Time `json:"created_at"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum"`
}

// Stored is a loaded artifact.
type Stored struct {
	Content  []byte
	Info     Info
	Metadata map[string]string
}

// Store persists artifacts. Implementations provide per-key consistency only;
// there is no cross-key transaction and no compare-and-swap.
type Store interface {
	Save(ctx context.Context, runID string, t Type, content []byte, meta map[string]string) (Info, error)
	Load(ctx context.Context, runID string, t Type) (Stored, error)
	Exists(ctx context.Context, runID string, t Type) (bool, error)
	// Delete removes one artifact, or every artifact of the run when t is nil.
	// Deleting something that does not exist is not an error.
	Delete(ctx context.Context, runID string, t *Type) error
}

// Checksum returns the integrity checksum recorded for content.
func Checksum(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// NewInfo builds the metadata record for a save.
func NewInfo(runID string, t Type, content []byte, createdAt time.Time) Info {
	return Info{
		RunID:        runID,
		ArtifactType: t,
		FileName:     t.FileName(),
		CreatedAt:    createdAt.UTC(),
		ContentType:  ContentTypeJSON,
		Size:         int64(len(content)),
		Checksum:     Checksum(content),
	}
}

// CheckKey validates the address of an artifact. Backends call it before any I/O.
func CheckKey(runID string, t Type) error {
	if err := CheckRunID(runID); err != nil {
		return err
	}
	if t.FileName() == "" {
		return fmt.Errorf("unknown artifact type %q", t)
	}
	return nil
}

// CheckRunID rejects run ids that cannot be used as a path segment.
func CheckRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run id is required")
	}
	if strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}

// CopyMeta returns a copy of a metadata map, never nil.
func CopyMeta(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
