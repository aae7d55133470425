package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/config"
	"github.com/longhornrumble/dealprep/internal/delivery"
	"github.com/longhornrumble/dealprep/internal/enrich"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/llm"
	"github.com/longhornrumble/dealprep/internal/llm/gemini"
	"github.com/longhornrumble/dealprep/internal/llm/openai"
	"github.com/longhornrumble/dealprep/internal/scrape"
	"github.com/longhornrumble/dealprep/internal/synth"
	"github.com/longhornrumble/dealprep/internal/worker"
)

// NewModel returns the configured LLM provider wrapped in transient retries.
func NewModel(ctx context.Context, cfg config.LLM, retries int) (llm.Model, error) {
	var (
		m   llm.Model
		err error
	)
	switch cfg.Provider {
	case "gemini":
		m, err = gemini.New(ctx, gemini.Config{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			BaseURL:      cfg.BaseURL,
			GoogleSearch: cfg.GoogleSearch,
			URLContext:   cfg.URLContext,
		})
	case "openai":
		m, err = openai.New(ctx, openai.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout.D(),
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s config: %w", cfg.Provider, err)
	}
	return llm.Retrying(m, retries+1, time.Second), nil
}

// Adapters builds one delivery adapter per configured channel.
func Adapters(ctx context.Context, cfg config.Config, log logrus.FieldLogger) ([]delivery.Adapter, error) {
	var out []delivery.Adapter
	d := cfg.Delivery
	if d.CRM.Enabled() {
		a, err := delivery.NewCRM(delivery.CRMConfig{
			BaseURL: d.CRM.BaseURL,
			Token:   d.CRM.Token,
			CAPath:  cfg.Store.CAPath,
			Timeout: cfg.Store.Timeout.D(),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("crm: %w", err)
		}
		out = append(out, a)
	}
	if d.Email.Enabled() {
		a, err := delivery.NewGmail(ctx, delivery.GmailConfig{
			Sender:       d.Email.Sender,
			ClientID:     d.Email.ClientID,
			ClientSecret: d.Email.ClientSecret,
			RefreshToken: d.Email.RefreshToken,
			AccessToken:  d.Email.AccessToken,
			Endpoint:     d.Email.Endpoint,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("gmail: %w", err)
		}
		out = append(out, a)
	}
	if d.Motion.Enabled() {
		a, err := delivery.NewMotion(delivery.MotionConfig{
			BaseURL: d.Motion.BaseURL,
			APIKey:  d.Motion.APIKey,
			Timeout: cfg.Store.Timeout.D(),
		}, log)
		if err != nil {
			return nil, fmt.Errorf("motion: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// WorkerOptions maps the worker section onto pool options.
func WorkerOptions(cfg config.Worker) worker.Options {
	policy := worker.FailurePolicyPartialOutput
	if cfg.FailFast {
		policy = worker.FailurePolicyFailFast
	}
	return worker.Options{
		Workers:           cfg.Workers,
		MaxRetries:        cfg.MaxRetries,
		RequestTimeout:    cfg.RequestTimeout.D(),
		RateLimitRPS:      cfg.RateLimitRPS,
		FailurePolicy:     policy,
		BackoffInitial:    500 * time.Millisecond,
		BackoffMax:        10 * time.Second,
		BackoffJitterFrac: 0.2,
	}
}

// Build opens the store and wires every collaborator from cfg. The returned
// closer releases the store.
func Build(ctx context.Context, cfg config.Config, opts Options, log logrus.FieldLogger) (*Pipeline, io.Closer, error) {
	store, closer, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	fail := func(err error) (*Pipeline, io.Closer, error) {
		_ = closer.Close()
		return nil, nil, err
	}

	m, err := NewModel(ctx, cfg.LLM, cfg.Worker.MaxRetries)
	if err != nil {
		return fail(err)
	}
	adapters, err := Adapters(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}

	p := &Pipeline{
		Manager:  lifecycle.New(store),
		Enricher: enrich.NewLLM(m, log),
		Synthesizer: synth.New(m, synth.Config{
			MaxAttempts: cfg.Validation.MaxSynthesisAttempts,
			Validation: brief.Options{
				SkipSourceValidation: cfg.Validation.SkipSourceValidation,
				NotFoundMarker:       cfg.Validation.NotFoundMarker,
			},
		}, log),
		Adapters: adapters,
		Options:  opts,
		Log:      log,
	}
	if !cfg.Scrape.Disabled {
		p.Scraper = scrape.New(scrape.Config{
			MaxPages:     cfg.Scrape.MaxPages,
			Timeout:      cfg.Scrape.Timeout.D(),
			RateLimitRPS: cfg.Scrape.RateLimitRPS,
			UserAgent:    cfg.Scrape.UserAgent,
			MaxTextChars: cfg.Scrape.MaxTextChars,
		}, log)
	}
	return p, closer, nil
}
