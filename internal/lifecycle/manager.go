// Package lifecycle owns the run record: the small state document stored as the
// run_artifact artifact of every run.
//
// Every mutation is a plain read-modify-write against the artifact store. Nothing
// locks, versions or compares-and-swaps the record, so two concurrent updates to
// the same run can lose one of the writes. Callers that fan work out fold the
// results back with a single RecordDeliveries call.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/longhornrumble/dealprep/internal/artifact"
	"github.com/longhornrumble/dealprep/internal/input"
	"github.com/longhornrumble/dealprep/internal/runid"
)

// Manager creates and mutates run records in a store.
type Manager struct {
	store artifact.Store
	now   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for created_at and completed_at.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns a Manager over store.
func New(store artifact.Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying artifact store.
func (m *Manager) Store() artifact.Store {
	return m.store
}

// RunID computes the run id for rec.
func (m *Manager) RunID(rec input.Record) (string, error) {
	id, err := runid.Compute(rec)
	if err != nil {
		if errors.Is(err, runid.ErrNoOrganizationIdentifier) {
			return "", &Error{Code: CodeNoOrganizationIdentifier, Op: "run id", Err: err}
		}
		return "", fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// CreateOrResume returns the run for rec, creating it when none exists. The
// boolean reports whether this call created it. An existing run is returned
// unchanged whatever its status; resuming is the caller's decision.
func (m *Manager) CreateOrResume(ctx context.Context, rec input.Record) (Run, bool, error) {
	id, err := m.RunID(rec)
	if err != nil {
		return Run{}, false, err
	}

	existing, found, err := m.lookup(ctx, "create or resume", id)
	if err != nil {
		return Run{}, false, err
	}
	if found {
		return existing, false, nil
	}

	rec.Meta.RunID = &id
	r := newRun(id, rec, m.now())
	if err := m.save(ctx, "create run", r); err != nil {
		return Run{}, false, err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return Run{}, false, fmt.Errorf("encode input: %w", err)
	}
	meta := map[string]string{"trigger_source": string(rec.Meta.TriggerSource)}
	if _, err := m.store.Save(ctx, id, artifact.TypeInput, raw, meta); err != nil {
		return Run{}, false, storageErr("save input", id, err)
	}

	r.Artifacts[artifact.TypeInput] = true
	r.Artifacts[artifact.TypeRunArtifact] = true
	if err := m.save(ctx, "create run", r); err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

// CheckIdempotency looks up the run for rec without writing anything.
func (m *Manager) CheckIdempotency(ctx context.Context, rec input.Record) (Run, bool, error) {
	id, err := m.RunID(rec)
	if err != nil {
		return Run{}, false, err
	}
	return m.lookup(ctx, "check idempotency", id)
}

// Load returns the run record, or an error with CodeRunNotFound.
func (m *Manager) Load(ctx context.Context, runID string) (Run, error) {
	return m.load(ctx, "load run", runID)
}

// UpdateStatus moves the run to status, appends any error messages, and stamps
// completed_at when the new status is terminal. Moves out of completed or failed
// and moves backward fail with CodeInvalidTransition and leave the record as is.
func (m *Manager) UpdateStatus(ctx context.Context, runID string, status Status, errs ...string) (Run, error) {
	const op = "update status"
	if !status.Valid() {
		return Run{}, fmt.Errorf("%s: unknown status %q", op, status)
	}
	r, err := m.load(ctx, op, runID)
	if err != nil {
		return Run{}, err
	}
	if !r.Status.CanTransition(status) {
		return r, &Error{Code: CodeInvalidTransition, Op: op, RunID: runID, Err: fmt.Errorf("%s -> %s", r.Status, status)}
	}
	r.Status = status
	r.appendErrors(errs)
	if status.Terminal() {
		now := m.now().UTC()
		r.CompletedAt = &now
	}
	if err := m.save(ctx, op, r); err != nil {
		return Run{}, err
	}
	return r, nil
}

// Reopen is the one way out of a terminal state: it moves a failed run back to
// processing, clears completed_at and records the reopen in errors. Completed
// runs cannot be reopened.
func (m *Manager) Reopen(ctx context.Context, runID, reason string) (Run, error) {
	const op = "reopen run"
	r, err := m.load(ctx, op, runID)
	if err != nil {
		return Run{}, err
	}
	if r.Status != StatusFailed {
		return r, &Error{Code: CodeInvalidTransition, Op: op, RunID: runID, Err: fmt.Errorf("%s -> %s", r.Status, StatusProcessing)}
	}
	note := "reopened"
	if reason != "" {
		note += ": " + reason
	}
	r.Status = StatusProcessing
	r.CompletedAt = nil
	r.appendErrors([]string{note})
	if err := m.save(ctx, op, r); err != nil {
		return Run{}, err
	}
	return r, nil
}

// MarkArtifactComplete sets the completion flag of one artifact type.
func (m *Manager) MarkArtifactComplete(ctx context.Context, runID string, t artifact.Type) (Run, error) {
	if t.FileName() == "" {
		return Run{}, fmt.Errorf("mark artifact: unknown artifact type %q", t)
	}
	return m.update(ctx, "mark artifact", runID, func(r *Run) {
		r.Artifacts[t] = true
	})
}

// UpdateDeliveryStatus overwrites one channel's outcome.
func (m *Manager) UpdateDeliveryStatus(ctx context.Context, runID string, ch Channel, d Delivery) (Run, error) {
	return m.update(ctx, "update delivery", runID, func(r *Run) {
		r.Deliveries[ch] = d
	})
}

// RecordDeliveries folds a whole fan-out result into the run in one write.
func (m *Manager) RecordDeliveries(ctx context.Context, runID string, results map[Channel]Delivery) (Run, error) {
	return m.update(ctx, "record deliveries", runID, func(r *Run) {
		for ch, d := range results {
			r.Deliveries[ch] = d
		}
	})
}

// Delete removes every artifact of the run, the run record included. It is the
// explicit operator action; nothing in the pipeline calls it.
func (m *Manager) Delete(ctx context.Context, runID string) error {
	if _, err := m.load(ctx, "delete run", runID); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, runID, nil); err != nil {
		return storageErr("delete run", runID, err)
	}
	return nil
}

func (m *Manager) update(ctx context.Context, op, runID string, fn func(*Run)) (Run, error) {
	r, err := m.load(ctx, op, runID)
	if err != nil {
		return Run{}, err
	}
	fn(&r)
	if err := m.save(ctx, op, r); err != nil {
		return Run{}, err
	}
	return r, nil
}

func (m *Manager) lookup(ctx context.Context, op, runID string) (Run, bool, error) {
	ok, err := m.store.Exists(ctx, runID, artifact.TypeRunArtifact)
	if err != nil {
		return Run{}, false, storageErr(op, runID, err)
	}
	if !ok {
		return Run{}, false, nil
	}
	r, err := m.load(ctx, op, runID)
	if err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

func (m *Manager) load(ctx context.Context, op, runID string) (Run, error) {
	got, err := m.store.Load(ctx, runID, artifact.TypeRunArtifact)
	if errors.Is(err, artifact.ErrNotFound) {
		return Run{}, &Error{Code: CodeRunNotFound, Op: op, RunID: runID}
	}
	if err != nil {
		return Run{}, storageErr(op, runID, err)
	}
	var r Run
	if err := json.Unmarshal(got.Content, &r); err != nil {
		return Run{}, storageErr(op, runID, fmt.Errorf("decode run record: %w", err))
	}
	r.normalize()
	return r, nil
}

func (m *Manager) save(ctx context.Context, op string, r Run) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: encode run record: %w", op, err)
	}
	meta := map[string]string{"status": string(r.Status)}
	if _, err := m.store.Save(ctx, r.RunID, artifact.TypeRunArtifact, b, meta); err != nil {
		return storageErr(op, r.RunID, err)
	}
	return nil
}

func storageErr(op, runID string, err error) error {
	return &Error{Code: CodeStorage, Op: op, RunID: runID, Err: err}
}
