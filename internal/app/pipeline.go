// Package app wires the run lifecycle, the collaborators and the delivery
// fan-out into the deal prep pipeline.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/delivery"
	"github.com/longhornrumble/dealprep/internal/enrich"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/render"
	"github.com/longhornrumble/dealprep/internal/scrape"
	"github.com/longhornrumble/dealprep/internal/synth"
	"github.com/longhornrumble/dealprep/internal/util"
)

// Scraper fetches the organization's website.
type Scraper interface {
	Scrape(ctx context.Context, website string) (scrape.Document, error)
}

// Synthesizer produces a validated brief.
type Synthesizer interface {
	Synthesize(ctx context.Context, in synth.Inputs) (synth.Result, error)
}

// MsgAllDeliveriesFailed is recorded when every configured channel failed.
const MsgAllDeliveriesFailed = "all deliveries failed"

type Options struct {
	// ResumeFailed reopens runs whose status is failed instead of returning them.
	ResumeFailed bool
}

type Pipeline struct {
	Manager     *lifecycle.Manager
	Scraper     Scraper
	Enricher    enrich.Enricher
	Synthesizer Synthesizer
	Adapters    []delivery.Adapter
	Options     Options
	Now         func() time.Time
	Log         logrus.FieldLogger
}

// Outcome summarizes one Process call.
type Outcome struct {
	RunID      string                                   `json:"run_id"`
	Status     lifecycle.Status                         `json:"status"`
	Created    bool                                     `json:"created"`
	Skipped    bool                                     `json:"skipped"`
	Deliveries map[lifecycle.Channel]lifecycle.Delivery `json:"deliveries,omitempty"`
	Errors     []string                                 `json:"errors,omitempty"`
}

func outcome(r lifecycle.Run, created, skipped bool) Outcome {
	return Outcome{
		RunID:      r.RunID,
		Status:     r.Status,
		Created:    created,
		Skipped:    skipped,
		Deliveries: r.Deliveries,
		Errors:     r.Errors,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() logrus.FieldLogger {
	if p.Log == nil {
		return logger.Discard()
	}
	return p.Log
}

// Process runs one trigger through every stage. Stages whose artifact is already
// complete are skipped, so a re-run resumes where an interrupted one stopped.
// Validation and delivery failures end the run as failed with a nil error;
// lifecycle, storage and model errors are returned.
func (p *Pipeline) Process(ctx context.Context, rec input.Record) (Outcome, error) {
	run, created, err := p.Manager.CreateOrResume(ctx, rec)
	if err != nil {
		return Outcome{}, err
	}
	log := logger.ForRun(p.logger(), run.RunID)

	switch {
	case run.Status == lifecycle.StatusCompleted:
		log.Info("run already completed; skipping")
		return outcome(run, false, true), nil
	case run.Status == lifecycle.StatusFailed && !p.Options.ResumeFailed:
		log.Info("run previously failed; returning as-is")
		return outcome(run, false, true), nil
	}
	rec = run.Input

	if run.Status == lifecycle.StatusFailed {
		run, err = p.Manager.Reopen(ctx, run.RunID, "resume failed run")
	} else {
		run, err = p.Manager.UpdateStatus(ctx, run.RunID, lifecycle.StatusProcessing)
	}
	if err != nil {
		return Outcome{}, err
	}
	log.WithField("created", created).Info("run processing")

	scraped, err := p.scrapeStage(ctx, log, &run)
	if err != nil {
		return outcome(run, created, false), err
	}
	enriched, err := p.enrichStage(ctx, log, &run)
	if err != nil {
		return outcome(run, created, false), err
	}

	doc, ok, err := p.briefStage(ctx, log, &run, synth.Inputs{
		Record:     rec,
		RunID:      run.RunID,
		Scrape:     &scraped,
		Enrichment: &enriched,
	})
	if err != nil || !ok {
		return outcome(run, created, false), err
	}

	b, err := brief.Decode(doc)
	if err != nil {
		return p.fail(ctx, log, run, created, err.Error())
	}
	views, err := render.All(b, rec, p.now())
	if err != nil {
		return p.fail(ctx, log, run, created, err.Error())
	}

	results := p.deliver(ctx, log, run, views, rec.Routing)
	if run, err = p.Manager.RecordDeliveries(ctx, run.RunID, results); err != nil {
		return Outcome{}, err
	}

	if len(p.Adapters) > 0 && len(run.DeliveredTo()) == 0 {
		return p.fail(ctx, log, run, created, MsgAllDeliveriesFailed)
	}
	if run, err = p.Manager.UpdateStatus(ctx, run.RunID, lifecycle.StatusCompleted); err != nil {
		return Outcome{}, err
	}
	log.WithField("delivered", len(run.DeliveredTo())).Info("run completed")
	return outcome(run, created, false), nil
}

func (p *Pipeline) fail(ctx context.Context, log *logrus.Entry, run lifecycle.Run, created bool, msgs ...string) (Outcome, error) {
	updated, err := p.markFailed(ctx, log, run, msgs...)
	return outcome(updated, created, false), err
}

func (p *Pipeline) markFailed(ctx context.Context, log *logrus.Entry, run lifecycle.Run, msgs ...string) (lifecycle.Run, error) {
	for i := range msgs {
		msgs[i] = util.RedactSecrets(msgs[i])
	}
	updated, err := p.Manager.UpdateStatus(ctx, run.RunID, lifecycle.StatusFailed, msgs...)
	if err != nil {
		return run, err
	}
	log.WithField("errors", len(msgs)).Warn("run failed")
	return updated, nil
}

// timed logs one stage with its duration.
func (p *Pipeline) timed(log *logrus.Entry, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	e := log.WithFields(logrus.Fields{"stage": stage, "duration": time.Since(start).String()})
	if err != nil {
		logger.Err(e, err).Warn("stage failed")
	} else {
		e.Debug("stage done")
	}
	return err
}

func (p *Pipeline) scrapeStage(ctx context.Context, log *logrus.Entry, run *lifecycle.Run) (scrape.Document, error) {
	if run.Complete(artifact.TypeScrape) {
		var doc scrape.Document
		return doc, p.loadJSON(ctx, run.RunID, artifact.TypeScrape, &doc)
	}

	website := run.Input.OrgWebsite()
	doc := scrape.Empty(website, p.now())
	var note string
	switch {
	case p.Scraper == nil:
	case website == "":
		note = "scrape: no organization website"
	default:
		err := p.timed(log, "scrape", func() error {
			got, err := p.Scraper.Scrape(ctx, website)
			if err == nil {
				doc = got
			}
			return err
		})
		if err != nil {
			note = "scrape: " + util.RedactSecrets(err.Error())
		}
	}
	if note != "" {
		doc.Errors = append(doc.Errors, scrape.PageError{URL: website, Message: note})
		updated, err := p.Manager.UpdateStatus(ctx, run.RunID, lifecycle.StatusProcessing, note)
		if err != nil {
			return doc, err
		}
		*run = updated
	}
	return doc, p.saveStage(ctx, run, artifact.TypeScrape, doc)
}

func (p *Pipeline) enrichStage(ctx context.Context, log *logrus.Entry, run *lifecycle.Run) (enrich.Document, error) {
	if run.Complete(artifact.TypeEnrichment) {
		var doc enrich.Document
		return doc, p.loadJSON(ctx, run.RunID, artifact.TypeEnrichment, &doc)
	}
	doc := enrich.NotFound()
	if p.Enricher != nil {
		_ = p.timed(log, "enrichment", func() error {
			got, err := p.Enricher.Enrich(ctx, run.Input)
			if err != nil {
				doc = enrich.NotFound(util.RedactSecrets(err.Error()))
				return err
			}
			doc = got
			return nil
		})
	}
	return doc, p.saveStage(ctx, run, artifact.TypeEnrichment, doc)
}

// briefStage returns the brief document and whether the run may continue.
func (p *Pipeline) briefStage(ctx context.Context, log *logrus.Entry, run *lifecycle.Run, in synth.Inputs) (map[string]any, bool, error) {
	if run.Complete(artifact.TypeBrief) {
		var doc map[string]any
		if err := p.loadJSON(ctx, run.RunID, artifact.TypeBrief, &doc); err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}
	if p.Synthesizer == nil {
		return nil, false, errors.New("no synthesizer configured")
	}

	var res synth.Result
	err := p.timed(log, "synthesis", func() error {
		var err error
		res, err = p.Synthesizer.Synthesize(ctx, in)
		return err
	})
	switch {
	case errors.Is(err, synth.ErrBriefInvalid):
		updated, ferr := p.markFailed(ctx, log, *run, res.Report.Messages()...)
		*run = updated
		return nil, false, ferr
	case err != nil:
		updated, ferr := p.markFailed(ctx, log, *run, "synthesis: "+err.Error())
		*run = updated
		if ferr != nil {
			return nil, false, ferr
		}
		return nil, false, err
	}
	if err := p.saveStage(ctx, run, artifact.TypeBrief, res.Brief); err != nil {
		return nil, false, err
	}
	return res.Brief, true, nil
}

// deliver fans out to every adapter whose channel has not already succeeded.
func (p *Pipeline) deliver(ctx context.Context, log *logrus.Entry, run lifecycle.Run, v render.Views, routing input.Routing) map[lifecycle.Channel]lifecycle.Delivery {
	var pending []delivery.Adapter
	attempted := map[lifecycle.Channel]bool{}
	for _, a := range p.Adapters {
		if run.Deliveries[a.Channel()].Status == lifecycle.DeliverySuccess {
			continue
		}
		pending = append(pending, a)
		attempted[a.Channel()] = true
	}
	var results map[lifecycle.Channel]lifecycle.Delivery
	_ = p.timed(log, "delivery", func() error {
		results = delivery.FanOut(ctx, pending, v, routing, p.now, log)
		return nil
	})
	// Channels not attempted this time keep their recorded state.
	for ch, d := range run.Deliveries {
		if !attempted[ch] {
			results[ch] = d
		}
	}
	return results
}

func (p *Pipeline) saveStage(ctx context.Context, run *lifecycle.Run, t artifact.Type, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}
	if _, err := p.Manager.Store().Save(ctx, run.RunID, t, raw, nil); err != nil {
		return &lifecycle.Error{Code: lifecycle.CodeStorage, Op: "save " + string(t), RunID: run.RunID, Err: err}
	}
	updated, err := p.Manager.MarkArtifactComplete(ctx, run.RunID, t)
	if err != nil {
		return err
	}
	*run = updated
	return nil
}

func (p *Pipeline) loadJSON(ctx context.Context, runID string, t artifact.Type, v any) error {
	got, err := p.Manager.Store().Load(ctx, runID, t)
	if err != nil {
		return &lifecycle.Error{Code: lifecycle.CodeStorage, Op: "load " + string(t), RunID: runID, Err: err}
	}
	if err := json.Unmarshal(got.Content, v); err != nil {
		return fmt.Errorf("decode %s: %w", t, err)
	}
	return nil
}
