package enrich_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/enrich"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/llm"
)

type stubModel struct {
	resp  llm.Response
	err   error
	calls int
	last  llm.Request
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func record(name string) input.Record {
	return input.Record{
		Meta:         input.Meta{TriggerSource: input.TriggerInbound, SubmittedAt: "2026-03-02T15:04:05Z"},
		Organization: input.Organization{Name: input.StringPtr("Acme Foundation")},
		Contact:      input.Contact{FullName: name, Title: "Executive Director", LinkedInURL: "https://www.linkedin.com/in/janesmith"},
	}
}

func TestLLM_Enrich(t *testing.T) {
	t.Parallel()

	m := &stubModel{resp: llm.Response{
		Text:    "```json\n{\"summary\":\"Jane leads Acme.\",\"confidence\":\"HIGH\"}\n```",
		Sources: []string{"https://acme.org/team"},
	}}
	doc, err := enrich.NewLLM(m, nil).Enrich(context.Background(), record("Jane Smith"))
	require.NoError(t, err)
	assert.Equal(t, "Jane leads Acme.", doc.RequesterProfile.Summary)
	assert.Equal(t, "high", doc.RequesterProfile.Confidence)
	assert.Equal(t, []string{"https://acme.org/team"}, doc.RequesterProfile.Sources)
	assert.Empty(t, doc.Errors)
	assert.Contains(t, m.last.Prompt, "Jane Smith")
	assert.Contains(t, m.last.Prompt, "linkedin.com/in/janesmith")
	require.NotNil(t, m.last.Schema)
}

func TestLLM_NoNameSkipsModel(t *testing.T) {
	t.Parallel()

	m := &stubModel{}
	doc, err := enrich.NewLLM(m, nil).Enrich(context.Background(), record(""))
	require.NoError(t, err)
	assert.Zero(t, m.calls)
	assert.Equal(t, brief.NotFound, doc.RequesterProfile.Summary)
	assert.Equal(t, "low", doc.RequesterProfile.Confidence)
}

func TestLLM_FailuresNeverFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    *stubModel
	}{
		{"model error", &stubModel{err: errors.New("gemini api error: key AIzaSyDUMMYKEY000000000000000000000000 rejected")}},
		{"bad json", &stubModel{resp: llm.Response{Text: "not json"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := enrich.NewLLM(tc.m, nil).Enrich(context.Background(), record("Jane Smith"))
			require.NoError(t, err)
			assert.Equal(t, brief.NotFound, doc.RequesterProfile.Summary)
			require.Len(t, doc.Errors, 1)
			assert.NotContains(t, doc.Errors[0], "AIzaSyDUMMYKEY")
		})
	}
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	doc, err := enrich.Disabled{}.Enrich(context.Background(), record("Jane Smith"))
	require.NoError(t, err)
	assert.Equal(t, brief.NotFound, doc.RequesterProfile.Summary)
	assert.NotNil(t, doc.Errors)
}
