package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/worker"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go:\n{\"a\":1}\nThanks", `{"a":1}`},
		{"no json here", "no json here"},
	}
	for _, tc := range tests {
		if got := llm.CleanJSON(tc.in); got != tc.want {
			t.Errorf("CleanJSON(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

type flaky struct {
	failures int
	err      error
	calls    int
}

func (f *flaky) Name() string { return "flaky" }

func (f *flaky) Generate(context.Context, llm.Request) (llm.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: "{}"}, nil
}

func TestRetrying(t *testing.T) {
	t.Run("transient is retried", func(t *testing.T) {
		m := &flaky{failures: 2, err: worker.Transient(errors.New("503"))}
		resp, err := llm.Retrying(m, 3, time.Millisecond).Generate(context.Background(), llm.Request{})
		if err != nil || resp.Text != "{}" {
			t.Fatalf("resp=%v err=%v", resp, err)
		}
		if m.calls != 3 {
			t.Fatalf("calls=%d want 3", m.calls)
		}
	})
	t.Run("permanent is not", func(t *testing.T) {
		m := &flaky{failures: 5, err: errors.New("401")}
		_, err := llm.Retrying(m, 3, time.Millisecond).Generate(context.Background(), llm.Request{})
		if err == nil || m.calls != 1 {
			t.Fatalf("calls=%d err=%v", m.calls, err)
		}
	})
	t.Run("gives up after attempts", func(t *testing.T) {
		m := &flaky{failures: 5, err: worker.Transient(errors.New("429"))}
		_, err := llm.Retrying(m, 2, time.Millisecond).Generate(context.Background(), llm.Request{})
		if err == nil || m.calls != 2 {
			t.Fatalf("calls=%d err=%v", m.calls, err)
		}
	})
}

func TestDedupePreserveOrder(t *testing.T) {
	got := llm.DedupePreserveOrder([]string{" b", "a", "", "b", "a "})
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("got %v", got)
	}
}
