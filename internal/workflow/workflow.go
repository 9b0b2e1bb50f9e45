// Package workflow applies administrator triage actions to stored requests.
package workflow

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/deskhand/internal/models"
	"github.com/zulandar/deskhand/internal/store"
)

// Action is an administrator-triggered status transition.
type Action string

const (
	ActionClaim    Action = "claim"
	ActionComplete Action = "complete"
	ActionReject   Action = "reject"
)

// ParseAction validates an action tag from a control payload.
func ParseAction(tag string) (Action, error) {
	switch a := Action(tag); a {
	case ActionClaim, ActionComplete, ActionReject:
		return a, nil
	}
	return "", fmt.Errorf("workflow: unknown action %q", tag)
}

// target returns the status an action moves a request to.
func (a Action) target() models.Status {
	switch a {
	case ActionClaim:
		return models.StatusInProgress
	case ActionComplete:
		return models.StatusDone
	case ActionReject:
		return models.StatusRejected
	}
	return ""
}

// Notifier delivers status-change notices to the original submitter.
// Delivery is best-effort and must not fail the transition.
type Notifier interface {
	StatusChanged(ctx context.Context, submitterID string, id uint, description string, status models.Status)
}

// Workflow applies triage transitions and notifies submitters.
type Workflow struct {
	store    *store.Store
	notifier Notifier
}

// Opts holds parameters for creating a Workflow.
type Opts struct {
	Store    *store.Store
	Notifier Notifier
}

// New creates a Workflow.
func New(opts Opts) (*Workflow, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("workflow: store is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("workflow: notifier is required")
	}
	return &Workflow{store: opts.Store, notifier: opts.Notifier}, nil
}

// Apply performs one triage action on a request. The status update is
// last-write-wins, so re-applying an action the admin already took leaves
// the row unchanged and sends no second notice. Returns the new status and
// the action set the admin control should offer next. The submitter notice
// is sent after the store commit; its failure is logged, never returned.
func (w *Workflow) Apply(ctx context.Context, action Action, id uint) (models.Status, []Action, error) {
	status := action.target()
	if status == "" {
		return "", nil, fmt.Errorf("workflow: unknown action %q", action)
	}

	prev, err := w.store.StatusOf(id)
	if err != nil {
		return "", nil, fmt.Errorf("workflow: %s request %d: %w", action, id, err)
	}

	if err := w.store.UpdateStatus(id, status); err != nil {
		return "", nil, fmt.Errorf("workflow: %s request %d: %w", action, id, err)
	}

	if prev != status {
		log.Printf("workflow: request %d %s → %s", id, prev, status)
		w.notifySubmitter(ctx, id, status)
	}

	return status, ActionsFor(status), nil
}

// notifySubmitter looks up the request's submitter and sends the status
// notice. Best-effort: the transition is already committed.
func (w *Workflow) notifySubmitter(ctx context.Context, id uint, status models.Status) {
	ref, err := w.store.Get(id)
	if err != nil {
		log.Printf("workflow: lookup submitter of %d: %v", id, err)
		return
	}
	w.notifier.StatusChanged(ctx, ref.SubmitterID, id, ref.Description, status)
}

// ActionsFor returns the control affordance for a request in the given
// status: the full set before claim, complete/reject only once in progress,
// nothing once terminal.
func ActionsFor(status models.Status) []Action {
	switch status {
	case models.StatusNew:
		return []Action{ActionClaim, ActionComplete, ActionReject}
	case models.StatusInProgress:
		return []Action{ActionComplete, ActionReject}
	}
	return nil
}
