package fsstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/artifacttest"
	"github.com/longhornrumble/dealprep/internal/artifact/fsstore"
)

func TestStoreContract(t *testing.T) {
	artifacttest.Run(t, func(t *testing.T, clock *artifacttest.Clock) artifact.Store {
		s, err := fsstore.New(t.TempDir(), fsstore.WithClock(clock.Now))
		require.NoError(t, err)
		return s
	})
}

func TestStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := fsstore.New(root)
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "run_abc", artifact.TypeBrief, []byte(`{"x":1}`), nil)
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(root, "run_abc", "brief.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(b))
	assert.FileExists(t, filepath.Join(root, "run_abc", "brief.json.meta.json"))
}

func TestLoadWithoutSidecar(t *testing.T) {
	root := t.TempDir()
	s, err := fsstore.New(root)
	require.NoError(t, err)

	dir := filepath.Join(root, "run_manual")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.json"), []byte(`{"a":1}`), 0o644))

	got, err := s.Load(context.Background(), "run_manual", artifact.TypeInput)
	require.NoError(t, err)
	assert.Equal(t, "input.json", got.Info.FileName)
	assert.Equal(t, artifact.Checksum([]byte(`{"a":1}`)), got.Info.Checksum)
}
