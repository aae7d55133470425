// Package gemini implements llm.Model on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"google.golang.org/genai"

	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/worker"
)

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	// GoogleSearch and URLContext enable the grounding tools; their sources are
	// returned in Response.Sources.
	GoogleSearch bool
	URLContext   bool
}

type Model struct {
	client *genai.Client
	model  string
	tools  []*genai.Tool
}

func New(ctx context.Context, cfg Config) (*Model, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	m := &Model{client: client, model: strings.TrimSpace(cfg.Model)}
	if cfg.GoogleSearch {
		m.tools = append(m.tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if cfg.URLContext {
		m.tools = append(m.tools, &genai.Tool{URLContext: &genai.URLContext{}})
	}
	return m, nil
}

func (m *Model) Name() string { return "gemini:" + m.model }

func (m *Model) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	gc := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema,
		Tools:            m.tools,
	}
	if strings.TrimSpace(req.System) != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(req.Prompt), gc)
	if err != nil {
		return llm.Response{Model: m.model}, classifyErr(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return llm.Response{Model: m.model}, worker.Transient(llm.ErrEmptyResponse)
	}
	return llm.Response{
		Text:    text,
		Sources: extractSources(resp),
		Model:   m.model,
	}, nil
}

func classifyErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 && strings.Contains(strings.ToLower(apiErr.Message), "quota") {
			// Quota exhaustion rarely clears within a backoff window.
			return &worker.LimitedTransientError{Err: err, ExtraRetries: 1}
		}
		if apiErr.Code == 429 || apiErr.Code/100 == 5 {
			return worker.Transient(err)
		}
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return worker.Transient(err)
	}
	return err
}

func extractSources(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	c := resp.Candidates[0]

	var out []string
	if c.GroundingMetadata != nil {
		for _, chunk := range c.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			out = append(out, chunk.Web.URI)
		}
	}
	if c.URLContextMetadata != nil {
		for _, m := range c.URLContextMetadata.URLMetadata {
			if m == nil {
				continue
			}
			out = append(out, m.RetrievedURL)
		}
	}
	return llm.DedupePreserveOrder(out)
}
