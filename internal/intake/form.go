// Package intake drives the request-submission form: a linear sequence of
// prompts that collects a maintenance request one answer at a time.
package intake

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/deskhand/internal/models"
	"github.com/zulandar/deskhand/internal/store"
)

// Suggested answers offered with the category and urgency prompts. They are
// hints only: whatever text the submitter sends becomes the stored value.
var (
	Categories = []string{"Electrical", "Plumbing", "Furniture", "Cleaning", "Other"}
	Urgencies  = []string{"Normal", "Urgent", "Emergency"}
)

// defaultDescription fills the description field when the final message
// carried no text (e.g. a bare photo).
const defaultDescription = "No description"

// Notifier receives completed requests for fan-out to administrators.
// Delivery is best-effort and must not fail the submission.
type Notifier interface {
	RequestCreated(ctx context.Context, req models.Request)
}

// Submitter identifies the user filling out the form.
type Submitter struct {
	ID     string // opaque transport identity
	Handle string // human-readable handle, may be empty
}

// Reply is the prompt sent back to the submitter after each step. An empty
// Text means nothing should be sent (silently dropped duplicate).
type Reply struct {
	Text        string
	Suggestions []string // quick-answer labels for the next prompt
}

// Form advances submitters through the intake steps and persists the
// completed request.
type Form struct {
	store    *store.Store
	notifier Notifier
	contexts *ContextStore
}

// Opts holds parameters for creating a Form.
type Opts struct {
	Store    *store.Store
	Notifier Notifier
}

// New creates a Form.
func New(opts Opts) (*Form, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("intake: store is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("intake: notifier is required")
	}
	return &Form{
		store:    opts.Store,
		notifier: opts.Notifier,
		contexts: NewContextStore(),
	}, nil
}

// Start opens a fresh form for the submitter. When a remembered full name
// exists the name step is skipped and the name is pre-filled.
func (f *Form) Start(sub Submitter) (Reply, error) {
	name, err := f.store.FullName(sub.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("intake: start for %s: %w", sub.ID, err)
	}

	c := f.contexts.Start(sub.ID)
	if name != "" {
		c.FullName = name
		c.Step = StepCategory
		return Reply{
			Text:        fmt.Sprintf("Hello, %s! Pick a problem category:", name),
			Suggestions: Categories,
		}, nil
	}

	c.Step = StepFullName
	return Reply{
		Text: "We haven't met yet. Please send your last and first name (for example: Ivanov Ivan):",
	}, nil
}

// Active reports whether the submitter has a form in progress.
func (f *Form) Active(submitterID string) bool {
	_, ok := f.contexts.Get(submitterID)
	return ok
}

// Cancel discards the submitter's in-progress form from any step.
// Reports whether a form was open.
func (f *Form) Cancel(sub Submitter) bool {
	return f.contexts.Clear(sub.ID)
}

// Handle feeds one inbound message into the submitter's form. The second
// return value reports whether the message was consumed; false means no
// form is open and the message belongs to someone else's routing path.
func (f *Form) Handle(ctx context.Context, sub Submitter, text, photoRef string) (Reply, bool, error) {
	c, ok := f.contexts.Get(sub.ID)
	if !ok {
		return Reply{}, false, nil
	}

	switch c.Step {
	case StepFullName:
		// Remember the name permanently so later forms skip this step.
		if err := f.store.SetFullName(sub.ID, text); err != nil {
			return Reply{}, true, fmt.Errorf("intake: register name: %w", err)
		}
		c.FullName = text
		c.Step = StepCategory
		return Reply{
			Text:        "Nice to meet you! Now pick a category:",
			Suggestions: Categories,
		}, true, nil

	case StepCategory:
		c.Category = text
		c.Step = StepUrgency
		return Reply{Text: "How urgent is it?", Suggestions: Urgencies}, true, nil

	case StepUrgency:
		c.Urgency = text
		c.Step = StepLocation
		return Reply{Text: "Where is the problem? (room number / floor)"}, true, nil

	case StepLocation:
		c.Location = text
		c.Step = StepDescription
		return Reply{Text: "Describe the problem (you can attach one photo):"}, true, nil

	case StepDescription:
		return f.complete(ctx, sub, c, text, photoRef)

	default:
		return Reply{}, true, fmt.Errorf("intake: context for %s in unknown step %d", sub.ID, c.Step)
	}
}

// complete persists the accumulated answers and fans the new request out to
// administrators. Duplicate completion events for the same context are
// silently dropped.
func (f *Form) complete(ctx context.Context, sub Submitter, c *Context, text, photoRef string) (Reply, bool, error) {
	if !f.contexts.BeginProcessing(sub.ID) {
		return Reply{}, true, nil
	}

	desc := text
	if desc == "" {
		desc = defaultDescription
	}

	req := models.Request{
		SubmitterID:     sub.ID,
		SubmitterHandle: sub.Handle,
		Category:        c.Category,
		Urgency:         c.Urgency,
		Location:        c.Location,
		Description:     desc,
		PhotoRef:        photoRef,
	}
	if c.FullName != "" {
		name := c.FullName
		req.SubmitterFullName = &name
	}

	id, err := f.store.Create(req)
	if err != nil {
		// Leave the context open so the submitter can resend.
		f.contexts.EndProcessing(sub.ID)
		return Reply{}, true, fmt.Errorf("intake: submit for %s: %w", sub.ID, err)
	}
	req.ID = id
	req.Status = models.StatusNew

	f.contexts.Clear(sub.ID)
	log.Printf("intake: request %d submitted by %s", id, sub.ID)

	f.notifier.RequestCreated(ctx, req)

	return Reply{Text: fmt.Sprintf("Request #%d accepted!", id)}, true, nil
}
