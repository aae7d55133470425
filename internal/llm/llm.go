// Package llm is the narrow model interface the enricher and synthesizer use.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/longhornrumble/dealprep/internal/worker"
)

// Request is one structured-JSON generation.
type Request struct {
	System string
	Prompt string
	// Schema describes the expected JSON object. Providers without native
	// schema support inline it into the prompt.
	Schema *genai.Schema
}

// Response is the raw model reply plus any grounding sources the provider reported.
type Response struct {
	Text    string
	Sources []string
	Model   string
}

// Model generates JSON text for a request. Implementations mark retryable
// failures with worker.TransientError.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Name() string
}

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// CleanJSON strips markdown code fences and any prose around the outermost
// JSON object.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		return s
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// Retrying wraps m so transient failures are retried with exponential backoff.
func Retrying(m Model, attempts int, initial time.Duration) Model {
	if attempts <= 1 {
		return m
	}
	if initial <= 0 {
		initial = time.Second
	}
	return &retrying{Model: m, attempts: attempts, initial: initial}
}

type retrying struct {
	Model
	attempts int
	initial  time.Duration
}

func (r *retrying) Generate(ctx context.Context, req Request) (Response, error) {
	sleep := r.initial
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		resp, err := r.Model.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !worker.IsTransient(err) || i == r.attempts-1 {
			break
		}
		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return Response{}, ctx.Err()
		case <-t.C:
		}
		if sleep < 30*time.Second {
			sleep *= 2
		}
	}
	return Response{}, lastErr
}

// DedupePreserveOrder trims, drops blanks and removes repeats from in.
func DedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
