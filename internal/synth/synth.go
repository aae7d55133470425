// Package synth turns the trigger, scrape and enrichment artifacts into a
// validated brief using a language model.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/enrich"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/scrape"
)

// ErrBriefInvalid is returned with the last report when no attempt produced a
// valid brief.
var ErrBriefInvalid = errors.New("brief failed validation")

type Inputs struct {
	Record     input.Record
	RunID      string
	Scrape     *scrape.Document
	Enrichment *enrich.Document
}

type Result struct {
	Brief    map[string]any
	Report   brief.Report
	Attempts int
}

type Config struct {
	MaxAttempts    int
	Validation     brief.Options
	MaxPromptPages int
	MaxPageChars   int
	Now            func() time.Time
}

type Synthesizer struct {
	model llm.Model
	cfg   Config
	log   logrus.FieldLogger
}

func New(m llm.Model, cfg Config, log logrus.FieldLogger) *Synthesizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.MaxPromptPages <= 0 {
		cfg.MaxPromptPages = 8
	}
	if cfg.MaxPageChars <= 0 {
		cfg.MaxPageChars = 2500
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Synthesizer{model: m, cfg: cfg, log: log}
}

// Synthesize asks the model for a brief and validates it, re-prompting with the
// violations until the brief passes or MaxAttempts is spent. A model error
// ends the loop immediately.
func (s *Synthesizer) Synthesize(ctx context.Context, in Inputs) (Result, error) {
	base := s.buildPrompt(in)
	prompt := base
	log := logger.ForRun(s.log, in.RunID).WithField("stage", "synthesis")

	var res Result
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt
		start := time.Now()
		resp, err := s.model.Generate(ctx, llm.Request{
			System: systemPrompt,
			Prompt: prompt,
			Schema: BriefSchema(),
		})
		if err != nil {
			return res, fmt.Errorf("generate brief: %w", err)
		}

		cleaned := []byte(llm.CleanJSON(resp.Text))
		var doc any
		if err := json.Unmarshal(cleaned, &doc); err != nil {
			res.Brief = nil
			res.Report = brief.ValidateJSON(cleaned, s.cfg.Validation)
		} else {
			if m, ok := doc.(map[string]any); ok {
				s.stampMeta(m, in, resp.Sources)
				res.Brief = m
			}
			res.Report = brief.Validate(doc, s.cfg.Validation)
		}

		log.WithFields(logrus.Fields{
			"attempt":    attempt,
			"duration":   time.Since(start).String(),
			"violations": len(res.Report.Violations),
		}).Info("brief generated")
		if res.Report.Valid {
			return res, nil
		}
		prompt = repairPrompt(base, res.Report)
	}
	return res, ErrBriefInvalid
}

// stampMeta overwrites the run-owned meta fields and fills source_urls from the
// evidence when the model left it empty.
func (s *Synthesizer) stampMeta(doc map[string]any, in Inputs, grounding []string) {
	meta, ok := doc["meta"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		doc["meta"] = meta
	}
	meta["run_id"] = in.RunID
	meta["generated_at"] = s.cfg.Now().UTC().Format(time.RFC3339)
	meta["trigger_source"] = string(in.Record.Meta.TriggerSource)

	if arr, ok := meta["source_urls"].([]any); !ok || len(arr) == 0 {
		var urls []string
		if in.Scrape != nil {
			urls = append(urls, in.Scrape.URLs()...)
		}
		urls = append(urls, grounding...)
		if in.Enrichment != nil {
			urls = append(urls, in.Enrichment.RequesterProfile.Sources...)
		}
		urls = llm.DedupePreserveOrder(urls)
		out := make([]any, 0, len(urls))
		for _, u := range urls {
			out = append(out, u)
		}
		meta["source_urls"] = out
	}
}
