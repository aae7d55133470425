package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/app"
	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/brief"
	"github.com/longhornrumble/dealprep/internal/config"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/relay"
	"github.com/longhornrumble/dealprep/internal/runid"
	"github.com/longhornrumble/dealprep/internal/util"
	"github.com/longhornrumble/dealprep/internal/version"
)

// common holds the flags every pipeline command shares.
type common struct {
	configPath string
	logLevel   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", os.Getenv("DEALPREP_CONFIG"), "Config file path, .yaml/.yml/.toml (env: DEALPREP_CONFIG)")
	fs.StringVar(&c.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
}

func (c *common) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Format: cfg.Log.Format})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func configErr(err error) int {
	_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
	return 2
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readTrigger(path string) (input.Record, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return input.Record{}, err
	}
	return input.Parse(raw)
}

func runOne(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	inputPath := fs.String("input", "", "Trigger JSON file, or - for stdin")
	resume := fs.Bool("resume-failed", false, "Re-enter a previously failed run")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "run requires --input")
		return 2
	}

	rec, err := readTrigger(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid trigger: %s\n", err)
		return 2
	}
	cfg, log, err := c.load()
	if err != nil {
		return configErr(err)
	}
	p, closer, err := app.Build(ctx, cfg, app.Options{ResumeFailed: *resume}, log)
	if err != nil {
		return configErr(err)
	}
	defer func() { _ = closer.Close() }()

	ctx, cancel := context.WithTimeout(ctx, cfg.Worker.RequestTimeout.D())
	defer cancel()
	out, err := p.Process(ctx, rec)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "run failed: %s\n", util.RedactSecrets(err.Error()))
		if out.RunID == "" {
			return 1
		}
	}
	printJSON(out)
	if err != nil || out.Status == lifecycle.StatusFailed {
		return 1
	}
	return 0
}

func runBatch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	inputPath := fs.String("input", "", "Outbound lead CSV (organization_name, website, contact columns)")
	workers := fs.Int("workers", 0, "Concurrent records; 0 keeps the configured value (env: WORKERS)")
	failFast := fs.Bool("fail-fast", false, "Stop on the first record error (env: FAIL_FAST)")
	resume := fs.Bool("resume-failed", false, "Re-enter previously failed runs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "batch requires --input")
		return 2
	}

	cfg, log, err := c.load()
	if err != nil {
		return configErr(err)
	}
	if *workers > 0 {
		cfg.Worker.Workers = *workers
	}
	if *failFast {
		cfg.Worker.FailFast = true
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "open input: %s\n", err)
		return 2
	}
	defer func() { _ = f.Close() }()
	records, err := input.ReadLeadsCSV(f, time.Now())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid lead CSV: %s\n", err)
		return 2
	}

	p, closer, err := app.Build(ctx, cfg, app.Options{ResumeFailed: *resume}, log)
	if err != nil {
		return configErr(err)
	}
	defer func() { _ = closer.Close() }()

	items, sum, err := p.ProcessBatch(ctx, records, app.WorkerOptions(cfg.Worker))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "batch failed: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	printJSON(struct {
		Summary app.BatchSummary `json:"summary"`
		Items   []app.BatchItem  `json:"items"`
	}{sum, items})
	if sum.Failed > 0 || sum.Errored > 0 {
		return 1
	}
	return 0
}

func runID(args []string) int {
	fs := flag.NewFlagSet("runid", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	inputPath := fs.String("input", "", "Trigger JSON file, or - for stdin")
	full := fs.Bool("full", false, "Print the 64 hex character variant")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "runid requires --input")
		return 2
	}
	rec, err := readTrigger(*inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid trigger: %s\n", err)
		return 2
	}
	comp, err := runid.Derive(rec)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "runid: %s\n", err)
		return 1
	}
	id, err := runid.Compute(rec)
	if *full {
		id, err = runid.ComputeFull(rec)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "runid: %s\n", err)
		return 1
	}
	printJSON(map[string]string{
		"trigger_source":    string(comp.TriggerSource),
		"organization_id":   comp.OrganizationID,
		"rounded_timestamp": comp.RoundedTimestamp,
		"run_id":            id,
	})
	return 0
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	briefPath := fs.String("brief", "", "Brief JSON file, or - for stdin")
	skipSources := fs.Bool("skip-source-validation", false, "Do not require meta.source_urls")
	marker := fs.String("not-found-marker", "", "Sentinel for unknown facts (default Not found)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *briefPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "validate requires --brief")
		return 2
	}
	var (
		raw []byte
		err error
	)
	if *briefPath == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*briefPath)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "read brief: %s\n", err)
		return 2
	}
	report := brief.ValidateJSON(raw, brief.Options{SkipSourceValidation: *skipSources, NotFoundMarker: *marker})
	printJSON(report)
	if !report.Valid {
		return 1
	}
	return 0
}

func openManager(c *common) (*lifecycle.Manager, io.Closer, int) {
	cfg, _, err := c.load()
	if err != nil {
		return nil, nil, configErr(err)
	}
	store, closer, err := app.OpenStore(cfg.Store)
	if err != nil {
		return nil, nil, configErr(err)
	}
	return lifecycle.New(store), closer, 0
}

func runStatus(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	id := fs.String("run-id", "", "Run id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !runid.Valid(*id) {
		_, _ = fmt.Fprintf(os.Stderr, "status requires a valid --run-id, got %q\n", *id)
		return 2
	}
	m, closer, code := openManager(&c)
	if m == nil {
		return code
	}
	defer func() { _ = closer.Close() }()

	run, err := m.Load(ctx, *id)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "status: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	printJSON(run)
	return 0
}

func runDelete(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	id := fs.String("run-id", "", "Run id")
	typ := fs.String("type", "", "Delete only this artifact type (input, scrape, enrichment, brief, run_artifact)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !runid.Valid(*id) {
		_, _ = fmt.Fprintf(os.Stderr, "delete requires a valid --run-id, got %q\n", *id)
		return 2
	}
	var only *artifact.Type
	if strings.TrimSpace(*typ) != "" {
		t, err := artifact.ParseType(*typ)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "delete: %s\n", err)
			return 2
		}
		only = &t
	}
	m, closer, code := openManager(&c)
	if m == nil {
		return code
	}
	defer func() { _ = closer.Close() }()

	var err error
	if only == nil {
		err = m.Delete(ctx, *id)
	} else {
		err = m.Store().Delete(ctx, *id, only)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "delete: %s\n", util.RedactSecrets(err.Error()))
		return 1
	}
	_, _ = fmt.Fprintf(os.Stdout, "deleted %s\n", *id)
	return 0
}

func runRelay(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var c common
	c.register(fs)
	resume := fs.Bool("resume-failed", false, "Re-enter previously failed runs")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, log, err := c.load()
	if err != nil {
		return configErr(err)
	}
	p, closer, err := app.Build(ctx, cfg, app.Options{ResumeFailed: *resume}, log)
	if err != nil {
		return configErr(err)
	}
	defer func() { _ = closer.Close() }()

	client, err := relay.New(relay.Config{
		URL:    cfg.Relay.URL,
		Token:  cfg.Relay.Token,
		CAPath: cfg.Relay.CAPath,
	}, log)
	if err != nil {
		return configErr(err)
	}

	err = client.Run(ctx, func(ctx context.Context, job relay.Job) ([]byte, error) {
		rec, err := input.Parse(job.Payload)
		if err != nil {
			return nil, err
		}
		jobCtx, cancel := context.WithTimeout(ctx, cfg.Worker.RequestTimeout.D())
		defer cancel()
		out, err := p.Process(jobCtx, rec)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
	if err == nil || errors.Is(err, context.Canceled) {
		log.Info("relay stopped")
		return 0
	}
	_, _ = fmt.Fprintf(os.Stderr, "relay: %s\n", util.RedactSecrets(err.Error()))
	return 1
}

func runVersion(w io.Writer) int {
	_, _ = fmt.Fprintln(w, version.Current)
	return 0
}
