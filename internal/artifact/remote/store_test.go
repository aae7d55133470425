package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/artifact/artifacttest"
	"github.com/longhornrumble/dealprep/internal/artifact/remote"
	"github.com/longhornrumble/dealprep/internal/httpapi"
	"github.com/longhornrumble/dealprep/internal/mockstore"
)

func newRemote(t *testing.T, srv *mockstore.Server, token string) *remote.Store {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	s, err := remote.New(remote.Config{BaseURL: ts.URL, Token: token, RetryBase: time.Millisecond})
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	artifacttest.Run(t, func(t *testing.T, clock *artifacttest.Clock) artifact.Store {
		srv := mockstore.New(mockstore.WithClock(clock.Now))
		srv.RequireBearerToken("bucket-token")
		return newRemote(t, srv, "bucket-token")
	})
}

func TestBearerTokenEnforced(t *testing.T) {
	srv := mockstore.New()
	srv.RequireBearerToken("right")
	s := newRemote(t, srv, "wrong")

	_, err := s.Save(context.Background(), "run_x", artifact.TypeInput, []byte(`{}`), nil)
	require.Error(t, err)

	var he *httpapi.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusUnauthorized, he.StatusCode)
	assert.Len(t, srv.Calls(), 1, "401 is not retried")
}

func TestTransientFailuresAreRetried(t *testing.T) {
	srv := mockstore.New()
	s := newRemote(t, srv, "")

	srv.FailNext(2, http.StatusServiceUnavailable)
	_, err := s.Save(context.Background(), "run_y", artifact.TypeBrief, []byte(`{"ok":true}`), map[string]string{"stage": "synthesis"})
	require.NoError(t, err)
	assert.Len(t, srv.Calls(), 3)

	got, err := s.Load(context.Background(), "run_y", artifact.TypeBrief)
	require.NoError(t, err)
	assert.Equal(t, "synthesis", got.Metadata["stage"])
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "v1/runs/run_abc/artifacts/brief.json", remote.ArtifactPath("run_abc", artifact.TypeBrief))
	assert.Equal(t, "v1/runs/run_abc/artifacts", remote.RunPath("run_abc"))
}
