// Package runid derives deterministic run identifiers from canonical input.
//
// A run id is a content hash over the trigger kind, a floor-rounded submission
// time and the organization identifier. Submissions for the same organization
// and trigger kind that land in the same time bucket share an id, which is what
// makes run creation idempotent. Bucketing is a floor, so two submissions a
// minute apart can straddle a boundary and get different ids while two several
// minutes apart can share one.
package runid

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/longhornrumble/dealprep/internal/input"
)

// ErrNoOrganizationIdentifier is returned when none of domain, website or name is present.
var ErrNoOrganizationIdentifier = errors.New("no organization identifier")

const (
	Prefix = "run_"

	shortHexLen = 16
	fullHexLen  = 64

	// TimestampLayout is ISO-8601 in UTC with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

var (
	InboundBucket  = 5 * time.Minute
	OutboundBucket = 60 * time.Minute
)

// Components are the parts hashed into a run id.
type Components struct {
	TriggerSource    input.TriggerSource
	RoundedTimestamp string
	OrganizationID   string
}

// Key returns the pipe-joined string that is hashed.
func (c Components) Key() string {
	return string(c.TriggerSource) + "|" + c.RoundedTimestamp + "|" + c.OrganizationID
}

// OrganizationID returns, in order of precedence, the lowercased domain, the
// lowercased website host without a leading "www.", or the lowercased name with
// whitespace runs collapsed to "_".
func OrganizationID(org input.Organization) (string, error) {
	if org.Domain != nil && *org.Domain != "" {
		return strings.ToLower(*org.Domain), nil
	}
	if org.Website != nil && *org.Website != "" {
		if host := websiteHost(*org.Website); host != "" {
			return host, nil
		}
	}
	if org.Name != nil {
		if id := strings.Join(strings.Fields(strings.ToLower(*org.Name)), "_"); id != "" {
			return id, nil
		}
	}
	return "", ErrNoOrganizationIdentifier
}

func websiteHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// BucketSize returns the rounding window for a trigger kind.
func BucketSize(src input.TriggerSource) time.Duration {
	if src == input.TriggerOutbound {
		return OutboundBucket
	}
	return InboundBucket
}

// RoundTimestamp floors ts to the start of its bucket and formats it with
// millisecond precision. Rounding works on epoch milliseconds so any two
// timestamps inside a bucket produce byte-identical strings.
func RoundTimestamp(ts string, src input.TriggerSource) (string, error) {
	t, err := input.ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	return RoundTime(t, src), nil
}

// RoundTime is RoundTimestamp for an already parsed time.
func RoundTime(t time.Time, src input.TriggerSource) string {
	bucket := BucketSize(src).Milliseconds()
	ms := t.UnixMilli()
	floored := floorDiv(ms, bucket) * bucket
	return time.UnixMilli(floored).UTC().Format(TimestampLayout)
}

// floorDiv rounds toward negative infinity so pre-epoch times still floor.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Derive computes the hashed components for a record.
func Derive(rec input.Record) (Components, error) {
	orgID, err := OrganizationID(rec.Organization)
	if err != nil {
		return Components{}, err
	}
	rounded, err := RoundTimestamp(rec.Meta.SubmittedAt, rec.Meta.TriggerSource)
	if err != nil {
		return Components{}, fmt.Errorf("round submitted_at: %w", err)
	}
	return Components{
		TriggerSource:    rec.Meta.TriggerSource,
		RoundedTimestamp: rounded,
		OrganizationID:   orgID,
	}, nil
}

// Compute returns the short (16 hex) run id for rec.
func Compute(rec input.Record) (string, error) {
	c, err := Derive(rec)
	if err != nil {
		return "", err
	}
	return FromComponents(c, shortHexLen), nil
}

// ComputeFull returns the 64 hex run id for rec.
func ComputeFull(rec input.Record) (string, error) {
	c, err := Derive(rec)
	if err != nil {
		return "", err
	}
	return FromComponents(c, fullHexLen), nil
}

// FromComponents hashes c and keeps the first n hex characters.
func FromComponents(c Components, n int) string {
	sum := sha256.Sum256([]byte(c.Key()))
	h := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	return Prefix + h[:n]
}

// Valid reports whether id looks like a run id this package produces.
func Valid(id string) bool {
	if !strings.HasPrefix(id, Prefix) {
		return false
	}
	h := id[len(Prefix):]
	if len(h) != shortHexLen && len(h) != fullHexLen {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}
