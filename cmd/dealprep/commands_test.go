package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/longhornrumble/dealprep/internal/version"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunValidate_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, runValidate([]string{"--brief", "../../internal/brief/testdata/valid_brief.json"}))
	assert.Equal(t, 1, runValidate([]string{"--brief", writeTemp(t, "b.json", `{"meta":{}}`)}))
	assert.Equal(t, 2, runValidate(nil))
	assert.Equal(t, 2, runValidate([]string{"--brief", filepath.Join(t.TempDir(), "missing.json")}))
}

func TestRunID_ExitCodes(t *testing.T) {
	trigger := writeTemp(t, "t.json", `{
		"meta": {"trigger_source": "inbound", "submitted_at": "2026-03-02T14:03:00Z"},
		"organization": {"name": "Acme Foundation", "website": "https://www.acme.org"}
	}`)
	assert.Equal(t, 0, runID([]string{"--input", trigger}))
	assert.Equal(t, 0, runID([]string{"--input", trigger, "--full"}))
	assert.Equal(t, 2, runID(nil))
}

func TestRunStatus_RejectsBadRunID(t *testing.T) {
	assert.Equal(t, 2, runStatus(t.Context(), []string{"--run-id", "nope"}))
	assert.Equal(t, 2, runDelete(t.Context(), []string{"--run-id", "run_0123456789abcdef", "--type", "bogus"}))
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 0, runVersion(&out))
	assert.Equal(t, version.Current+"\n", out.String())
}
