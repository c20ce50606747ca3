// Package wizard sequences the authoring steps of a trip draft. It gates
// forward navigation on step completeness, hydrates the draft when editing
// an existing trip and hands the finished draft's identifier downstream.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/trailhead/internal/autosave"
	"github.com/kingrea/trailhead/internal/draft"
	"github.com/kingrea/trailhead/internal/hydrate"
	"github.com/kingrea/trailhead/internal/logbook"
	"github.com/kingrea/trailhead/internal/record"
	"github.com/kingrea/trailhead/internal/validate"
)

// State is the controller's coarse phase.
type State string

const (
	StateIdle             State = "idle"
	StateLoadingHydration State = "loading-hydration"
	StateActive           State = "active"
	StateTransitioning    State = "transitioning"
	StateHandingOff       State = "handing-off"
	StateHandoff          State = "handoff"
	StateClosed           State = "closed"
)

var (
	ErrStepIncomplete  = errors.New("wizard: current step is incomplete")
	ErrAtFirstStep     = errors.New("wizard: already at the first step")
	ErrNotInteractive  = errors.New("wizard: not accepting input right now")
	ErrHydrationFailed = errors.New("wizard: could not load the trip for editing")
	ErrNoSession       = errors.New("wizard: no active session")
	ErrSessionOpen     = errors.New("wizard: a session is already open")

	// ErrSnapshotMismatch is returned by Resume when the slot for an id holds
	// another draft (distinct ids can normalize to the same key).
	ErrSnapshotMismatch = errors.New("wizard: snapshot belongs to another draft")
)

// Controller drives one wizard session at a time over a shared draft store.
type Controller struct {
	store   *draft.Store
	fetcher record.Fetcher
	slot    autosave.Slot
	sink    HandoffSink
	book    *logbook.Logbook
	clock   func() time.Time
	newID   func() string

	mu        sync.Mutex
	state     State
	step      int
	target    int
	editID    string
	session   uint64
	handoffID string
}

// Option customizes the controller.
type Option func(*Controller)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithAutosave sets the local snapshot slot.
func WithAutosave(slot autosave.Slot) Option {
	return func(c *Controller) {
		if slot != nil {
			c.slot = slot
		}
	}
}

// WithHandoff sets where finished drafts are delivered.
func WithHandoff(sink HandoffSink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithLogbook records transitions in the session journal.
func WithLogbook(book *logbook.Logbook) Option {
	return func(c *Controller) {
		c.book = book
	}
}

// WithIDGenerator overrides how new-trip draft ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New wires a controller to the draft store and the trip record source.
func New(store *draft.Store, fetcher record.Fetcher, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("wizard: draft store is required")
	}
	c := &Controller{
		store:   store,
		fetcher: fetcher,
		slot:    autosave.Nop{},
		sink:    HandoffFunc(func(context.Context, draft.TripDraft) error { return nil }),
		clock:   time.Now,
		newID:   func() string { return uuid.NewString() },
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Step returns the active step, or the step being left while transitioning.
func (c *Controller) Step() validate.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return validate.Steps[c.step]
}

// StepIndex returns the zero-based position of Step.
func (c *Controller) StepIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// TargetStep returns the step a pending transition will land on.
func (c *Controller) TargetStep() validate.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return validate.Steps[c.target]
}

// Draft returns a copy of the working draft.
func (c *Controller) Draft() draft.TripDraft {
	return c.store.Get()
}

// HandoffID returns the identifier emitted by the last completed session.
func (c *Controller) HandoffID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handoffID
}

func (c *Controller) canOpen() bool {
	return c.state == StateIdle || c.state == StateClosed || c.state == StateHandoff
}

// StartNew opens a fresh session with a newly minted draft id.
func (c *Controller) StartNew(ctx context.Context) (string, error) {
	c.mu.Lock()
	if !c.canOpen() {
		c.mu.Unlock()
		return "", ErrSessionOpen
	}
	id := c.newID()
	c.store.Reset(id, draft.ModeNew)
	c.session++
	c.state = StateActive
	c.step, c.target = 0, 0
	c.handoffID = ""
	c.mu.Unlock()
	c.book.Info("wizard: new trip %s started", id)
	_ = c.Save(ctx)
	return id, nil
}

// Resume reopens a session from the local snapshot stored for id.
func (c *Controller) Resume(ctx context.Context, id string) error {
	c.mu.Lock()
	if !c.canOpen() {
		c.mu.Unlock()
		return ErrSessionOpen
	}
	c.mu.Unlock()
	id = strings.TrimSpace(id)
	snap, err := c.slot.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("wizard: resume %s: %w", id, err)
	}
	if snap.Draft.ID != id {
		return fmt.Errorf("%w: %q requested, slot holds %q", ErrSnapshotMismatch, id, snap.Draft.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canOpen() {
		return ErrSessionOpen
	}
	c.store.Replace(snap.Draft)
	c.session++
	c.state = StateActive
	c.step = stepIndex(validate.Step(snap.Step))
	c.target = c.step
	c.handoffID = ""
	c.book.Info("wizard: resumed %s at %s (saved %s)", snap.Draft.ID, validate.Steps[c.step], snap.SavedAt.Format(time.RFC3339))
	return nil
}

// BeginEdit enters loading-hydration for the trip id. The draft store is
// cleared so nothing from a previous session survives.
func (c *Controller) BeginEdit(id string) error {
	id = strings.TrimSpace(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canOpen() {
		return ErrSessionOpen
	}
	if id == "" {
		c.state = StateClosed
		return fmt.Errorf("%w: trip id is empty", ErrHydrationFailed)
	}
	c.store.Reset(id, draft.ModeEdit)
	c.session++
	c.state = StateLoadingHydration
	c.step, c.target = 0, 0
	c.editID = id
	c.handoffID = ""
	c.book.Info("wizard: loading trip %s", id)
	return nil
}

// Hydrate fetches and maps the record requested by BeginEdit. Any failure
// closes the session; the returned error wraps ErrHydrationFailed.
func (c *Controller) Hydrate(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateLoadingHydration {
		c.mu.Unlock()
		return ErrNoSession
	}
	id, session := c.editID, c.session
	c.mu.Unlock()

	mapped, err := c.load(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session || c.state != StateLoadingHydration {
		return ErrNoSession
	}
	if err != nil {
		c.store.Reset("", draft.ModeNew)
		c.state = StateClosed
		c.book.Error("wizard: hydration of %s failed: %v", id, err)
		return fmt.Errorf("%w: %w", ErrHydrationFailed, err)
	}
	c.store.Replace(mapped)
	c.state = StateActive
	c.book.Info("wizard: trip %s loaded (%d points, %d days)", id, len(mapped.RoutePoints), len(mapped.Itinerary))
	return nil
}

func (c *Controller) load(ctx context.Context, id string) (draft.TripDraft, error) {
	if c.fetcher == nil {
		return draft.TripDraft{}, errors.New("no trip source configured")
	}
	rec, err := c.fetcher.Fetch(ctx, id)
	if err != nil {
		return draft.TripDraft{}, err
	}
	mapped, err := hydrate.Map(rec)
	if err != nil {
		return draft.TripDraft{}, err
	}
	if mapped.ID != id {
		return draft.TripDraft{}, fmt.Errorf("record id %q does not match requested %q", mapped.ID, id)
	}
	return mapped, nil
}

// StartEdit is BeginEdit followed by Hydrate.
func (c *Controller) StartEdit(ctx context.Context, id string) error {
	if err := c.BeginEdit(id); err != nil {
		return err
	}
	return c.Hydrate(ctx)
}

func (c *Controller) interactive() error {
	switch c.state {
	case StateActive:
		return nil
	case StateLoadingHydration, StateTransitioning, StateHandingOff:
		return ErrNotInteractive
	default:
		return ErrNoSession
	}
}

// CanAdvance reports whether Advance would succeed.
func (c *Controller) CanAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateActive && validate.IsStepComplete(validate.Steps[c.step], c.store.Get())
}

// Missing lists what blocks the active step.
func (c *Controller) Missing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return validate.Missing(validate.Steps[c.step], c.store.Get())
}

// Advance leaves the active step forward. Non-final steps enter
// transitioning; the final step hands the draft off and ends the session.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if err := c.interactive(); err != nil {
		c.mu.Unlock()
		return err
	}
	current := c.store.Get()
	step := validate.Steps[c.step]
	if !validate.IsStepComplete(step, current) {
		c.mu.Unlock()
		return ErrStepIncomplete
	}
	if c.step < len(validate.Steps)-1 {
		c.target = c.step + 1
		c.state = StateTransitioning
		c.mu.Unlock()
		c.book.Info("wizard: %s complete, moving to %s", step, validate.Steps[c.step+1])
		return nil
	}
	c.state = StateHandingOff
	session := c.session
	c.mu.Unlock()
	return c.handoff(ctx, current, session)
}

// handoff delivers current to the sink. The session stays non-interactive
// until the sink returns; a failure reopens it on the final step.
func (c *Controller) handoff(ctx context.Context, current draft.TripDraft, session uint64) error {
	if err := c.sink.Handoff(ctx, current); err != nil {
		c.mu.Lock()
		if c.session == session && c.state == StateHandingOff {
			c.state = StateActive
		}
		c.mu.Unlock()
		c.book.Error("wizard: handoff of %s failed: %v", current.ID, err)
		return fmt.Errorf("wizard: handoff %s: %w", current.ID, err)
	}
	c.mu.Lock()
	if c.session == session && c.state == StateHandingOff {
		c.state = StateHandoff
		c.handoffID = current.ID
	}
	c.mu.Unlock()
	if err := c.slot.Discard(ctx, current.ID); err != nil && !errors.Is(err, autosave.ErrSnapshotNotFound) {
		c.book.Warn("wizard: discard autosave %s: %v", current.ID, err)
	}
	c.book.Info("wizard: handed off %s (%s)", current.ID, current.Mode)
	return nil
}

// Back moves to the previous step. It is refused on the first step.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.interactive(); err != nil {
		return err
	}
	if c.step == 0 {
		return ErrAtFirstStep
	}
	c.target = c.step - 1
	c.state = StateTransitioning
	return nil
}

// FinishTransition lands on the pending step and autosaves.
func (c *Controller) FinishTransition(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateTransitioning {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.step = c.target
	c.state = StateActive
	c.mu.Unlock()
	_ = c.Save(ctx)
	return nil
}

// Close ends the session from any state. An open draft is snapshotted
// locally first; the in-memory draft is then discarded.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	open := c.state == StateActive || c.state == StateTransitioning
	c.mu.Unlock()
	if open {
		_ = c.Save(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.state == StateClosed {
		return
	}
	previous := c.state
	c.session++
	c.state = StateClosed
	c.store.Reset("", draft.ModeNew)
	c.book.Info("wizard: closed from %s", previous)
}

// Save writes the local snapshot of an open session. Failures are logged
// and returned but never change the session.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive && c.state != StateTransitioning {
		c.mu.Unlock()
		return ErrNoSession
	}
	step := validate.Steps[c.step]
	c.mu.Unlock()
	current := c.store.Get()
	key, err := autosave.Key(current.ID)
	if err != nil {
		return err
	}
	snap := autosave.Snapshot{Key: key, Step: string(step), Draft: current, SavedAt: c.clock()}
	if err := c.slot.Save(ctx, snap); err != nil {
		c.book.Warn("wizard: autosave %s failed: %v", key, err)
		return fmt.Errorf("wizard: autosave %s: %w", key, err)
	}
	return nil
}

func stepIndex(step validate.Step) int {
	for i, s := range validate.Steps {
		if s == step {
			return i
		}
	}
	return 0
}
