// Package artifacttest holds the behavioral suite every artifact.Store backend runs.
package artifacttest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/artifact"
)

// Clock is a settable clock for deterministic CreatedAt values.
type Clock struct {
	T time.Time
}

func (c *Clock) Now() time.Time { return c.T }

// Factory builds a fresh, empty store that reads time from clock.
type Factory func(t *testing.T, clock *Clock) artifact.Store

// Run exercises the store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("save then load", func(t *testing.T) {
		clock := &Clock{T: start}
		s := newStore(t, clock)

		content := []byte(`{"hello":"world"}`)
		info, err := s.Save(ctx, "run_a", artifact.TypeInput, content, map[string]string{"source": "test"})
		require.NoError(t, err)
		assert.Equal(t, "run_a", info.RunID)
		assert.Equal(t, artifact.TypeInput, info.ArtifactType)
		assert.Equal(t, "input.json", info.FileName)
		assert.Equal(t, artifact.ContentTypeJSON, info.ContentType)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.Equal(t, artifact.Checksum(content), info.Checksum)
		assert.True(t, info.CreatedAt.Equal(start), "created_at=%s", info.CreatedAt)

		got, err := s.Load(ctx, "run_a", artifact.TypeInput)
		require.NoError(t, err)
		assert.JSONEq(t, string(content), string(got.Content))
		assert.Equal(t, info.Checksum, got.Info.Checksum)
		assert.Equal(t, "test", got.Metadata["source"])
	})

	t.Run("load missing is ErrNotFound", func(t *testing.T) {
		s := newStore(t, &Clock{T: start})
		_, err := s.Load(ctx, "run_missing", artifact.TypeBrief)
		require.ErrorIs(t, err, artifact.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		s := newStore(t, &Clock{T: start})
		ok, err := s.Exists(ctx, "run_b", artifact.TypeRunArtifact)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.Save(ctx, "run_b", artifact.TypeRunArtifact, []byte(`{}`), nil)
		require.NoError(t, err)

		ok, err = s.Exists(ctx, "run_b", artifact.TypeRunArtifact)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Exists(ctx, "run_b", artifact.TypeBrief)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("overwrite keeps created_at", func(t *testing.T) {
		clock := &Clock{T: start}
		s := newStore(t, clock)

		_, err := s.Save(ctx, "run_c", artifact.TypeBrief, []byte(`{"v":1}`), nil)
		require.NoError(t, err)

		clock.T = start.Add(time.Hour)
		info, err := s.Save(ctx, "run_c", artifact.TypeBrief, []byte(`{"v":2}`), nil)
		require.NoError(t, err)
		assert.True(t, info.CreatedAt.Equal(start), "created_at=%s", info.CreatedAt)

		got, err := s.Load(ctx, "run_c", artifact.TypeBrief)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got.Content))
	})

	t.Run("delete one type", func(t *testing.T) {
		s := newStore(t, &Clock{T: start})
		_, err := s.Save(ctx, "run_d", artifact.TypeInput, []byte(`{}`), nil)
		require.NoError(t, err)
		_, err = s.Save(ctx, "run_d", artifact.TypeBrief, []byte(`{}`), nil)
		require.NoError(t, err)

		brief := artifact.TypeBrief
		require.NoError(t, s.Delete(ctx, "run_d", &brief))

		ok, err := s.Exists(ctx, "run_d", artifact.TypeBrief)
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = s.Exists(ctx, "run_d", artifact.TypeInput)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("delete whole run", func(t *testing.T) {
		s := newStore(t, &Clock{T: start})
		for _, typ := range artifact.Types() {
			_, err := s.Save(ctx, "run_e", typ, []byte(`{}`), nil)
			require.NoError(t, err)
		}
		_, err := s.Save(ctx, "run_other", artifact.TypeInput, []byte(`{}`), nil)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "run_e", nil))
		for _, typ := range artifact.Types() {
			ok, err := s.Exists(ctx, "run_e", typ)
			require.NoError(t, err)
			assert.False(t, ok, "type %s should be gone", typ)
		}
		ok, err := s.Exists(ctx, "run_other", artifact.TypeInput)
		require.NoError(t, err)
		assert.True(t, ok, "other runs must be untouched")
	})

	t.Run("delete missing is not an error", func(t *testing.T) {
		s := newStore(t, &Clock{T: start})
		require.NoError(t, s.Delete(ctx, "run_nothing", nil))
		scrape := artifact.TypeScrape
		require.NoError(t, s.Delete(ctx, "run_nothing", &scrape))
	})

	t.Run("rejects bad keys", func(t *testing.T) {
		s := newStore(t, &Clock{T: start})
		_, err := s.Save(ctx, "../escape", artifact.TypeInput, []byte(`{}`), nil)
		assert.Error(t, err)
		_, err = s.Save(ctx, "run_f", artifact.Type("secrets"), []byte(`{}`), nil)
		assert.Error(t, err)
	})
}
