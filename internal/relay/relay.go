// Package relay long-polls a trigger relay for queued jobs, runs each one and
// posts the outcome back.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/httpapi"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/util"
)

// Job is one queued trigger.
type Job struct {
	JobID   string          `json:"job_id"`
	Payload json.RawMessage `json:"payload"`
}

type envelope struct {
	Job Job `json:"job"`
}

// Handler runs a job and returns the bytes to post as its result.
type Handler func(ctx context.Context, job Job) ([]byte, error)

type Config struct {
	URL        string
	Token      string
	CAPath     string
	HTTPClient *http.Client

	// Idle is the pause after an empty poll. PollBackoffMax caps the backoff
	// after poll errors. ResultRetryBase is the first pause between result
	// post retries.
	Idle            time.Duration
	PollBackoffMin  time.Duration
	PollBackoffMax  time.Duration
	ResultRetries   int
	ResultRetryBase time.Duration
}

func (c Config) withDefaults() Config {
	if c.Idle <= 0 {
		c.Idle = 500 * time.Millisecond
	}
	if c.PollBackoffMin <= 0 {
		c.PollBackoffMin = 500 * time.Millisecond
	}
	if c.PollBackoffMax <= 0 {
		c.PollBackoffMax = 5 * time.Second
	}
	if c.ResultRetries <= 0 {
		c.ResultRetries = 5
	}
	if c.ResultRetryBase <= 0 {
		c.ResultRetryBase = time.Second
	}
	return c
}

type Client struct {
	cfg Config
	api *httpapi.Client
	log logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) (*Client, error) {
	cfg = cfg.withDefaults()
	u, err := normalizeLocalhostURI(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	if u == "" {
		return nil, errors.New("relay url is required")
	}
	api, err := httpapi.New(httpapi.Config{
		Service:    "relay",
		BaseURL:    u,
		Auth:       httpapi.BearerAuth(cfg.Token),
		CAPath:     cfg.CAPath,
		HTTPClient: cfg.HTTPClient,
		Timeout:    60 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{cfg: cfg, api: api, log: log.WithField("component", "relay")}, nil
}

// Run polls until ctx is cancelled, which is the only way it returns.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	c.log.WithField("url", c.api.Resolve("next").String()).Info("relay polling")

	sleep := c.cfg.PollBackoffMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, ok, err := c.next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.WithField("error", util.RedactSecrets(err.Error())).Warn("get job failed")
			if !pause(ctx, sleep) {
				return ctx.Err()
			}
			if sleep < c.cfg.PollBackoffMax {
				sleep *= 2
				if sleep > c.cfg.PollBackoffMax {
					sleep = c.cfg.PollBackoffMax
				}
			}
			continue
		}
		sleep = c.cfg.PollBackoffMin
		if !ok {
			if !pause(ctx, c.cfg.Idle) {
				return ctx.Err()
			}
			continue
		}

		jobID := strings.TrimSpace(job.JobID)
		if jobID == "" {
			c.log.Warn("received job without job_id; skipping")
			continue
		}

		entry := c.log.WithField("job_id", jobID)
		entry.Info("job received")
		result, jobErr := handle(ctx, job)
		if jobErr != nil {
			logger.Err(entry, jobErr).Warn("job failed")
			if len(result) == 0 {
				result = []byte(util.RedactSecrets(jobErr.Error()))
			}
		} else if len(result) == 0 {
			result = []byte("ok")
		}

		if err := c.postResultWithRetry(ctx, jobID, result); err != nil {
			logger.Err(entry, err).Error("post result failed")
		}
	}
}

func (c *Client) next(ctx context.Context) (Job, bool, error) {
	resp, err := c.api.Do(ctx, "get job", http.MethodGet, "next", nil, nil)
	if err != nil {
		return Job{}, false, err
	}
	if resp.StatusCode == http.StatusNoContent || len(strings.TrimSpace(string(resp.Body))) == 0 {
		return Job{}, false, nil
	}
	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return Job{}, false, fmt.Errorf("parse job: %w", err)
	}
	return env.Job, true, nil
}

func (c *Client) postResult(ctx context.Context, jobID string, result []byte) error {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	_, err := c.api.Do(ctx, "post result", http.MethodPost, "results/"+path.Clean("/" + jobID)[1:], result, h)
	return err
}

func (c *Client) postResultWithRetry(ctx context.Context, jobID string, result []byte) error {
	err := c.postResult(ctx, jobID, result)
	for i := 0; err != nil && i < c.cfg.ResultRetries; i++ {
		if !pause(ctx, time.Duration(i+1)*c.cfg.ResultRetryBase) {
			return ctx.Err()
		}
		err = c.postResult(ctx, jobID, result)
	}
	return err
}

func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
