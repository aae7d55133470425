package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/util"
	"github.com/longhornrumble/dealprep/internal/worker"
)

// BatchItem is the per-record result of ProcessBatch.
type BatchItem struct {
	Index    int     `json:"index"`
	Outcome  Outcome `json:"outcome"`
	Error    string  `json:"error,omitempty"`
	Attempts int     `json:"attempts"`
}

// BatchSummary counts outcomes by final status.
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
}

// ProcessBatch runs Process for each record through the worker pool. Errors are
// recorded per item; only fail-fast mode or a cancelled context stops the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []input.Record, opts worker.Options) ([]BatchItem, BatchSummary, error) {
	log := p.logger()
	start := time.Now()
	log.WithFields(logrus.Fields{
		"records":        len(records),
		"workers":        opts.Workers,
		"max_retries":    opts.MaxRetries,
		"rate_limit_rps": opts.RateLimitRPS,
	}).Info("batch start")

	results, err := worker.ProcessAll(ctx, records, p.Process, opts)
	if err != nil {
		return nil, BatchSummary{}, err
	}

	items := make([]BatchItem, 0, len(results))
	sum := BatchSummary{Total: len(results)}
	for _, r := range results {
		it := BatchItem{Index: r.Index, Outcome: r.Output, Attempts: r.Attempts}
		if r.Err != nil {
			it.Error = util.RedactSecrets(r.Err.Error())
			sum.Errored++
			logger.Err(logger.ForRun(log, r.Output.RunID), r.Err).WithField("index", r.Index).Warn("record errored")
		}
		switch {
		case r.Output.Skipped:
			sum.Skipped++
		case r.Err != nil:
		case r.Output.Status == lifecycle.StatusCompleted:
			sum.Completed++
		case r.Output.Status == lifecycle.StatusFailed:
			sum.Failed++
		}
		items = append(items, it)
	}

	log.WithFields(logrus.Fields{
		"completed": sum.Completed,
		"failed":    sum.Failed,
		"skipped":   sum.Skipped,
		"errored":   sum.Errored,
		"duration":  time.Since(start).String(),
	}).Info("batch done")
	return items, sum, nil
}
