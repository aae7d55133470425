package lifecycle

import (
	"time"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/input"
)

// Status is the state of a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a run in status s may move to next. Runs move
// pending -> processing -> completed|failed; a non-terminal run may be updated
// in place, and terminal states are final.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPending || next == StatusProcessing
	case StatusProcessing:
		return next == StatusProcessing || next.Terminal()
	}
	return false
}

// Valid reports whether s is one of the four known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Channel is a delivery destination.
type Channel string

const (
	ChannelCRM    Channel = "customer_relationship_management"
	ChannelEmail  Channel = "email"
	ChannelMotion Channel = "motion"
)

// Channels lists every delivery channel in a stable order.
func Channels() []Channel {
	return []Channel{ChannelCRM, ChannelEmail, ChannelMotion}
}

type DeliveryStatus string

const (
	DeliveryNotAttempted DeliveryStatus = "not_attempted"
	DeliverySuccess      DeliveryStatus = "success"
	DeliveryFailed       DeliveryStatus = "failed"
)

// Delivery is the outcome of one channel.
type Delivery struct {
	Status      DeliveryStatus `json:"status"`
	AttemptedAt *time.Time     `json:"attempted_at"`
	Error       *string        `json:"error"`
}

// Succeeded builds a success outcome attempted at t.
func Succeeded(t time.Time) Delivery {
	t = t.UTC()
	return Delivery{Status: DeliverySuccess, AttemptedAt: &t}
}

// Failed builds a failure outcome attempted at t.
func Failed(t time.Time, msg string) Delivery {
	t = t.UTC()
	return Delivery{Status: DeliveryFailed, AttemptedAt: &t, Error: &msg}
}

// Run is the lifecycle document persisted as the run_artifact artifact.
type Run struct {
	RunID       string                 `json:"run_id"`
	Status      Status                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at"`
	Input       input.Record           `json:"input"`
	Artifacts   map[artifact.Type]bool `json:"artifacts"`
	Deliveries  map[Channel]Delivery   `json:"deliveries"`
	Errors      []string               `json:"errors"`
}

func newRun(runID string, rec input.Record, now time.Time) Run {
	r := Run{
		RunID:      runID,
		Status:     StatusPending,
		CreatedAt:  now.UTC(),
		Input:      rec,
		Artifacts:  make(map[artifact.Type]bool, len(artifact.Types())),
		Deliveries: make(map[Channel]Delivery, len(Channels())),
		Errors:     []string{},
	}
	for _, t := range artifact.Types() {
		r.Artifacts[t] = false
	}
	for _, c := range Channels() {
		r.Deliveries[c] = Delivery{Status: DeliveryNotAttempted}
	}
	return r
}

// normalize fills maps that an older or hand-edited record may lack.
func (r *Run) normalize() {
	if r.Artifacts == nil {
		r.Artifacts = map[artifact.Type]bool{}
	}
	for _, t := range artifact.Types() {
		if _, ok := r.Artifacts[t]; !ok {
			r.Artifacts[t] = false
		}
	}
	if r.Deliveries == nil {
		r.Deliveries = map[Channel]Delivery{}
	}
	for _, c := range Channels() {
		if _, ok := r.Deliveries[c]; !ok {
			r.Deliveries[c] = Delivery{Status: DeliveryNotAttempted}
		}
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
}

func (r *Run) appendErrors(msgs []string) {
	for _, e := range msgs {
		if e != "" {
			r.Errors = append(r.Errors, e)
		}
	}
}

// Complete reports whether the artifact flag for t is set.
func (r Run) Complete(t artifact.Type) bool {
	return r.Artifacts[t]
}

// DeliveredTo lists channels whose last attempt succeeded.
func (r Run) DeliveredTo() []Channel {
	var out []Channel
	for _, c := range Channels() {
		if r.Deliveries[c].Status == DeliverySuccess {
			out = append(out, c)
		}
	}
	return out
}
