package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/worker"
)

type fakeChat struct {
	got   []*schema.Message
	reply string
	err   error
}

func (f *fakeChat) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.reply}, nil
}

func (f *fakeChat) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestGenerate_InlinesSchemaAndCleansFences(t *testing.T) {
	fc := &fakeChat{reply: "```json\n{\"summary\":\"ok\"}\n```"}
	m := FromChatModel(fc, "gpt-test")

	resp, err := m.Generate(context.Background(), llm.Request{
		Prompt: "Describe Acme.",
		Schema: &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{"summary": {Type: genai.TypeString}}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != `{"summary":"ok"}` {
		t.Fatalf("text=%q", resp.Text)
	}
	if len(fc.got) != 2 || fc.got[0].Role != schema.System {
		t.Fatalf("messages=%v", fc.got)
	}
	if !strings.Contains(fc.got[1].Content, `"summary"`) {
		t.Fatalf("schema not inlined: %q", fc.got[1].Content)
	}
	if m.Name() != "openai:gpt-test" {
		t.Fatalf("name=%q", m.Name())
	}
}

func TestGenerate_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		err           error
		wantTransient bool
	}{
		{errors.New("error, status code: 429, message: Rate limit reached"), true},
		{errors.New("error, status code: 503, message: overloaded"), true},
		{errors.New("error, status code: 401, message: invalid api key"), false},
		{context.DeadlineExceeded, true},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			m := FromChatModel(&fakeChat{err: tc.err}, "gpt-test")
			_, err := m.Generate(context.Background(), llm.Request{Prompt: "x"})
			if worker.IsTransient(err) != tc.wantTransient {
				t.Fatalf("transient=%v want %v", !tc.wantTransient, tc.wantTransient)
			}
		})
	}
}

func TestGenerate_EmptyReplyIsTransient(t *testing.T) {
	m := FromChatModel(&fakeChat{reply: "  "}, "gpt-test")
	_, err := m.Generate(context.Background(), llm.Request{Prompt: "x"})
	if !errors.Is(err, llm.ErrEmptyResponse) || !worker.IsTransient(err) {
		t.Fatalf("err=%v", err)
	}
}
