// Package enrich builds a short profile of the requester. Enrichment is
// best-effort: failures are recorded in the document, never returned.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/util"
)

// Document is the enrichment artifact.
type Document struct {
	RequesterProfile Profile  `json:"requester_profile"`
	Errors           []string `json:"errors"`
}

type Profile struct {
	Summary    string   `json:"summary"`
	Confidence string   `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// Enricher profiles the requester of a trigger.
type Enricher interface {
	Enrich(ctx context.Context, rec input.Record) (Document, error)
}

// NotFound is the document produced when nothing could be learned.
func NotFound(errs ...string) Document {
	if errs == nil {
		errs = []string{}
	}
	return Document{
		RequesterProfile: Profile{Summary: brief.NotFound, Confidence: "low"},
		Errors:           errs,
	}
}

// Disabled never calls out and always reports "Not found".
type Disabled struct{}

func (Disabled) Enrich(context.Context, input.Record) (Document, error) {
	return NotFound(), nil
}

var profileSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":    {Type: genai.TypeString},
		"confidence": {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
	},
	Required: []string{"summary", "confidence"},
}

// LLM asks a model for a public-facts profile of the requester.
type LLM struct {
	model llm.Model
	log   logrus.FieldLogger
}

func NewLLM(m llm.Model, log logrus.FieldLogger) *LLM {
	if log == nil {
		log = logger.Discard()
	}
	return &LLM{model: m, log: log}
}

func (e *LLM) Enrich(ctx context.Context, rec input.Record) (Document, error) {
	name := rec.Contact.DisplayName()
	if name == "" {
		return NotFound(), nil
	}

	resp, err := e.model.Generate(ctx, llm.Request{
		System: "You research people for sales meeting preparation. Use only public, professional information.",
		Prompt: buildPrompt(rec, name),
		Schema: profileSchema,
	})
	if err != nil {
		msg := util.RedactSecrets(err.Error())
		e.log.WithField("stage", "enrichment").WithField("error", msg).Warn("requester profile unavailable")
		return NotFound("model: " + msg), nil
	}

	var parsed Profile
	if err := json.Unmarshal([]byte(llm.CleanJSON(resp.Text)), &parsed); err != nil {
		return NotFound(fmt.Sprintf("parse profile: %v", err)), nil
	}
	doc := Document{
		RequesterProfile: Profile{
			Summary:    strings.TrimSpace(parsed.Summary),
			Confidence: normalizeConfidence(parsed.Confidence),
			Sources:    resp.Sources,
		},
		Errors: []string{},
	}
	if doc.RequesterProfile.Summary == "" {
		doc.RequesterProfile.Summary = brief.NotFound
		doc.RequesterProfile.Confidence = "low"
	}
	return doc, nil
}

func normalizeConfidence(s string) string {
	switch c := strings.ToLower(strings.TrimSpace(s)); c {
	case "low", "medium", "high":
		return c
	default:
		return "low"
	}
}

func buildPrompt(rec input.Record, name string) string {
	var b strings.Builder
	b.WriteString("Write a two to three sentence professional summary of this person for someone about to meet them.\n")
	b.WriteString("If you cannot find reliable information, set summary to \"" + brief.NotFound + "\" and confidence to \"low\".\n\n")
	fmt.Fprintf(&b, "Name: %s\n", name)
	if t := strings.TrimSpace(rec.Contact.Title); t != "" {
		fmt.Fprintf(&b, "Title: %s\n", t)
	}
	if org := rec.OrgName(); org != "" {
		fmt.Fprintf(&b, "Organization: %s\n", org)
	}
	if w := rec.OrgWebsite(); w != "" {
		fmt.Fprintf(&b, "Organization website: %s\n", w)
	}
	if li := strings.TrimSpace(rec.Contact.LinkedInURL); li != "" {
		fmt.Fprintf(&b, "LinkedIn: %s\n", li)
	}
	return b.String()
}
