package delivery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/longhornrumble/dealprep/internal/httpapi"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/lifecycle"
	"github.com/longhornrumble/dealprep/internal/logger"
	"github.com/longhornrumble/dealprep/internal/render"
)

type CRMConfig struct {
	BaseURL    string
	Token      string
	CAPath     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// CRM posts the markdown note to the CRM notes API.
type CRM struct {
	api *httpapi.Client
	log logrus.FieldLogger
}

func NewCRM(cfg CRMConfig, log logrus.FieldLogger) (*CRM, error) {
	api, err := httpapi.New(httpapi.Config{
		Service:    "crm",
		BaseURL:    cfg.BaseURL,
		Auth:       httpapi.BearerAuth(cfg.Token),
		CAPath:     cfg.CAPath,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &CRM{api: api, log: log}, nil
}

func (c *CRM) Channel() lifecycle.Channel { return lifecycle.ChannelCRM }

type noteRequest struct {
	Target       string `json:"target"`
	Title        string `json:"title"`
	BodyMarkdown string `json:"body_markdown"`
	RunID        string `json:"run_id"`
}

type createdResponse struct {
	ID string `json:"id"`
}

func (c *CRM) Deliver(ctx context.Context, v render.Views, routing input.Routing) error {
	target := strings.TrimSpace(routing.CRMTarget)
	if target == "" {
		return ErrNotRouted
	}
	var out createdResponse
	err := c.api.PostJSON(ctx, "create note", "v1/notes", noteRequest{
		Target:       target,
		Title:        v.CRM.Title,
		BodyMarkdown: v.CRM.Markdown,
		RunID:        v.RunID,
	}, &out, idempotencyHeader(v.RunID, lifecycle.ChannelCRM))
	if err != nil {
		return err
	}
	logger.ForRun(c.log, v.RunID).WithField("note_id", out.ID).Debug("crm note created")
	return nil
}

// idempotencyHeader keys a delivery by run and channel so a resumed run does
// not create duplicates on servers that honor the header.
func idempotencyHeader(runID string, ch lifecycle.Channel) http.Header {
	h := http.Header{}
	h.Set("Idempotency-Key", fmt.Sprintf("%s:%s", runID, ch))
	return h
}
