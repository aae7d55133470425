package artifact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/artifacttest"
)

func TestMemoryStore(t *testing.T) {
	artifacttest.Run(t, func(_ *testing.T, clock *artifacttest.Clock) artifact.Store {
		return artifact.NewMemoryStore(artifact.WithMemoryClock(clock.Now))
	})
}

func TestFileNames(t *testing.T) {
	want := map[artifact.Type]string{
		artifact.TypeInput:       "input.json",
		artifact.TypeScrape:      "scrape.json",
		artifact.TypeEnrichment:  "enrichment.json",
		artifact.TypeBrief:       "brief.json",
		artifact.TypeRunArtifact: "run_artifact.json",
	}
	for typ, name := range want {
		assert.Equal(t, name, typ.FileName())
		back, ok := artifact.TypeFromFileName(name)
		assert.True(t, ok)
		assert.Equal(t, typ, back)
	}
	assert.Empty(t, artifact.Type("other").FileName())
}

func TestParseType(t *testing.T) {
	got, err := artifact.ParseType("Brief.json")
	require.NoError(t, err)
	assert.Equal(t, artifact.TypeBrief, got)

	got, err = artifact.ParseType("run_artifact")
	require.NoError(t, err)
	assert.Equal(t, artifact.TypeRunArtifact, got)

	_, err = artifact.ParseType("secrets")
	assert.Error(t, err)
}

func TestChecksumIsContentHash(t *testing.T) {
	a := artifact.Checksum([]byte(`{"a":1}`))
	b := artifact.Checksum([]byte(`{"a":1}`))
	c := artifact.Checksum([]byte(`{"a":2}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "sha256:")
}
