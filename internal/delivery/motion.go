package delivery

import (
	"context"
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

type MotionConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Motion creates a prep task in the routed Motion workspace.
type Motion struct {
	api *httpapi.Client
	log logrus.FieldLogger
}

func NewMotion(cfg MotionConfig, log logrus.FieldLogger) (*Motion, error) {
	api, err := httpapi.New(httpapi.Config{
		Service:    "motion",
		BaseURL:    cfg.BaseURL,
		Auth:       httpapi.HeaderAuth("X-API-Key", cfg.APIKey),
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Motion{api: api, log: log}, nil
}

func (m *Motion) Channel() lifecycle.Channel { return lifecycle.ChannelMotion }

type taskRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	WorkspaceID string   `json:"workspaceId"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels"`
}

func (m *Motion) Deliver(ctx context.Context, v render.Views, routing input.Routing) error {
	ws := strings.TrimSpace(routing.MotionWorkspace)
	if ws == "" {
		return ErrNotRouted
	}
	var out createdResponse
	err := m.api.PostJSON(ctx, "create task", "v1/tasks", taskRequest{
		Name:        v.Motion.Title,
		Description: v.Motion.Body,
		DueDate:     v.Motion.DueDate.UTC().Format(time.RFC3339),
		WorkspaceID: ws,
		Priority:    "HIGH",
		Labels:      []string{"deal-prep"},
	}, &out, idempotencyHeader(v.RunID, lifecycle.ChannelMotion))
	if err != nil {
		return err
	}
	logger.ForRun(m.log, v.RunID).WithField("task_id", out.ID).Debug("motion task created")
	return nil
}
