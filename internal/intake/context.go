package intake

import "sync"

// Step identifies the form question a submitter is currently answering.
// Steps advance in strict linear order; there is no branching or rollback.
type Step int

const (
	StepFullName Step = iota + 1
	StepCategory
	StepUrgency
	StepLocation
	StepDescription
)

// Context accumulates a submitter's in-progress form answers. It is never
// persisted and never shared across submitters.
type Context struct {
	Step       Step
	FullName   string
	Category   string
	Urgency    string
	Location   string
	Processing bool // set once the final step begins persisting
}

// ContextStore keys in-flight form contexts by submitter id with an
// explicit create/clear lifecycle.
type ContextStore struct {
	mu       sync.Mutex
	contexts map[string]*Context
}

// NewContextStore creates an empty ContextStore.
func NewContextStore() *ContextStore {
	return &ContextStore{contexts: make(map[string]*Context)}
}

// Start creates a fresh context for the submitter, discarding any form
// already in progress.
func (cs *ContextStore) Start(submitterID string) *Context {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c := &Context{}
	cs.contexts[submitterID] = c
	return c
}

// Get returns the submitter's in-flight context, if any.
func (cs *ContextStore) Get(submitterID string) (*Context, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.contexts[submitterID]
	return c, ok
}

// Clear removes the submitter's context. Reports whether one existed.
func (cs *ContextStore) Clear(submitterID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, ok := cs.contexts[submitterID]
	delete(cs.contexts, submitterID)
	return ok
}

// BeginProcessing marks the submitter's context as processing. Returns
// false when the context is absent or already processing, which is how a
// single user action that produced several transport events is collapsed
// into one request.
func (cs *ContextStore) BeginProcessing(submitterID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	c, ok := cs.contexts[submitterID]
	if !ok || c.Processing {
		return false
	}
	c.Processing = true
	return true
}

// EndProcessing lifts the processing guard so the submitter can retry after
// a failed persist. No-op when the context is gone.
func (cs *ContextStore) EndProcessing(submitterID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok := cs.contexts[submitterID]; ok {
		c.Processing = false
	}
}
