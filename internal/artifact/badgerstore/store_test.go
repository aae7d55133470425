package badgerstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/artifacttest"
	"github.com/longhornrumble/dealprep/internal/artifact/badgerstore"
)

func TestStoreContract(t *testing.T) {
	artifacttest.Run(t, func(t *testing.T, clock *artifacttest.Clock) artifact.Store {
		s, err := badgerstore.Open(":memory:", badgerstore.WithClock(clock.Now))
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, s.Close()) })
		return s
	})
}

func TestPrefixDoesNotLeakAcrossRuns(t *testing.T) {
	ctx := context.Background()
	s, err := badgerstore.Open(t.TempDir())
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	// run_1 is a string prefix of run_10; deleting run_1 must not touch run_10.
	_, err = s.Save(ctx, "run_1", artifact.TypeInput, []byte(`{}`), nil)
	require.NoError(t, err)
	_, err = s.Save(ctx, "run_10", artifact.TypeInput, []byte(`{}`), nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "run_1", nil))

	ok, err := s.Exists(ctx, "run_10", artifact.TypeInput)
	require.NoError(t, err)
	assert.True(t, ok)
}
