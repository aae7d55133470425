// Package openai implements llm.Model on any OpenAI-compatible chat endpoint
// through eino.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/worker"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Model struct {
	cm    model.BaseChatModel
	model string
}

func New(ctx context.Context, cfg Config) (*Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("OPENAI_MODEL is required")
	}
	cm, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL: strings.TrimSpace(cfg.BaseURL),
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Model:   strings.TrimSpace(cfg.Model),
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	return FromChatModel(cm, cfg.Model), nil
}

// FromChatModel adapts an existing eino chat model.
func FromChatModel(cm model.BaseChatModel, name string) *Model {
	return &Model{cm: cm, model: strings.TrimSpace(name)}
}

func (m *Model) Name() string { return "openai:" + m.model }

func (m *Model) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	system := strings.TrimSpace(req.System)
	if system == "" {
		system = "You are a JSON generator. Output only JSON."
	}
	prompt := req.Prompt
	if req.Schema != nil {
		b, err := json.Marshal(req.Schema)
		if err != nil {
			return llm.Response{}, fmt.Errorf("encode response schema: %w", err)
		}
		prompt += "\n\nThe reply must be a single JSON object matching this JSON schema:\n" + string(b)
	}

	msgs := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: prompt},
	}
	resp, err := m.cm.Generate(ctx, msgs)
	if err != nil {
		return llm.Response{Model: m.model}, classifyErr(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return llm.Response{Model: m.model}, worker.Transient(llm.ErrEmptyResponse)
	}
	return llm.Response{Text: llm.CleanJSON(resp.Content), Model: m.model}, nil
}

// classifyErr has only the error text to go on; the client library does not
// expose a typed status.
func classifyErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "status code: 5"), strings.Contains(msg, "status code 5"):
		return worker.Transient(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return worker.Transient(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return worker.Transient(err)
	}
	return err
}
