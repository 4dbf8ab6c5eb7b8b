// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session is the planning, review, and production state machine.
// A Session owns one deck from briefing to finished cards and admits one
// model operation at a time; every other request is checked against the
// current state and rejected with a *TransitionError.
//
// Operations block until the model work finishes. Abort may be called from
// another goroutine to cancel the operation in flight.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/deck-engine/internal/planner"
	"github.com/pdiddy/deck-engine/internal/producer"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// State is a session state.
type State string

const (
	StateIdle      State = "idle"
	StatePlanning  State = "planning"
	StatePlanReady State = "plan_ready"
	StateRevising  State = "revising"
	StateApproving State = "approving"
	StateProducing State = "producing"
	StateComplete  State = "complete"
	StateError     State = "error"
	StateAborted   State = "aborted"
)

// InFlight reports whether a model operation runs in this state.
func (s State) InFlight() bool {
	switch s {
	case StatePlanning, StateRevising, StateApproving, StateProducing:
		return true
	}
	return false
}

// Operation names recorded with errors.
const (
	OpPlan    = "plan"
	OpRevise  = "revise"
	OpProduce = "produce"
)

// Planner generates and revises plans.
type Planner interface {
	Generate(ctx context.Context, in planner.Input) (types.Plan, error)
}

// Producer turns an approved plan into cards.
type Producer interface {
	Produce(ctx context.Context, job producer.Job, onBatch func(producer.BatchResult)) producer.Outcome
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithBatchObserver registers fn to see each production batch as it
// finishes, including batches whose results arrive after an abort.
func WithBatchObserver(fn func(producer.BatchResult)) Option {
	return func(s *Session) { s.observer = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the aggregate root of one deck. It is safe for concurrent use.
type Session struct {
	planner  Planner
	producer Producer
	logger   *slog.Logger
	observer func(producer.BatchResult)
	now      func() time.Time

	mu sync.Mutex

	id    string
	state State

	// lastStable is where RetryFromReview returns to; failedOp is what it
	// re-issues.
	lastStable State
	failedOp   string

	briefing  types.Briefing
	documents []types.SourceDocument
	lod       types.LOD
	subject   string

	// plan is the reviewed draft, including the reviewer's toggles,
	// answers, and comment.
	plan      *types.Plan
	acceptAll bool

	// pending is the feedback of a failed revision, kept for retry.
	pending *types.Feedback

	approved *types.Plan
	cards    []types.ProducedCard
	notices  []types.Notice
	err      *types.ErrorInfo

	// run identifies the operation in flight. Abort and Reset bump it, so
	// the outcome of a cancelled operation is not applied.
	run    uint64
	cancel context.CancelFunc

	// aborted is the run Abort cancelled.
	aborted uint64

	created time.Time
	updated time.Time
}

// New returns an idle session.
func New(p Planner, prod Producer, opts ...Option) *Session {
	s := &Session{
		planner:  p,
		producer: prod,
		state:    StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.id = uuid.NewString()
	s.created = s.now()
	s.updated = s.created
	return s
}

// ID returns the session identifier. Reset assigns a new one.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Plan returns a copy of the reviewed plan, if there is one.
func (s *Session) Plan() (types.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return types.Plan{}, false
	}
	return s.plan.Clone(), true
}

// Approved returns a copy of the plan sent to production, if any.
func (s *Session) Approved() (types.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.approved == nil {
		return types.Plan{}, false
	}
	return s.approved.Clone(), true
}

// Cards returns the produced cards in number order.
func (s *Session) Cards() []types.ProducedCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.ProducedCard(nil), s.cards...)
}

// Notices returns the warnings raised during production.
func (s *Session) Notices() []types.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Notice(nil), s.notices...)
}

// Error returns the recoverable error of the Error state, or nil.
func (s *Session) Error() *types.ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	e := *s.err
	return &e
}

// Briefing returns the briefing the session was started with.
func (s *Session) Briefing() types.Briefing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.briefing
}

// reject builds the error for op in the current state. Callers hold mu.
func (s *Session) reject(op string) error {
	return &TransitionError{Op: op, State: s.state}
}

// arm enters state next for a new operation and returns its context and
// run number. Callers hold mu.
func (s *Session) arm(ctx context.Context, next State) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(ctx)
	s.run++
	s.cancel = cancel
	s.err = nil
	s.setState(next)
	return ctx, s.run
}

// abortedRun reports whether run was cancelled by Abort and nothing has
// happened since. Callers hold mu.
func (s *Session) abortedRun(run uint64) bool {
	return s.state == StateAborted && s.aborted == run && s.run == run+1
}

// disarm releases the context of the finished operation. Callers hold mu.
func (s *Session) disarm() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// setState records a transition. Callers hold mu.
func (s *Session) setState(next State) {
	if next != s.state {
		s.logger.Debug("session state", "session_id", s.id, "from", s.state, "to", next)
	}
	s.state = next
	s.updated = s.now()
}

// fail enters the Error state. Callers hold mu.
func (s *Session) fail(info types.ErrorInfo, lastStable State) {
	s.err = &info
	s.failedOp = info.Op
	s.lastStable = lastStable
	s.setState(StateError)
	s.logger.Warn("session operation failed",
		"session_id", s.id,
		"op", info.Op,
		"kind", info.Kind,
		"error", info.Message)
}

// feedback derives revision feedback from the reviewed draft. Callers
// hold mu and s.plan is set.
func (s *Session) feedback() types.Feedback {
	fb := types.Feedback{
		AcceptAllRecommended: s.acceptAll,
		Comment:              s.plan.GeneralComment,
	}
	for _, c := range s.plan.Cards {
		if c.Excluded {
			fb.Excluded = append(fb.Excluded, c.Number)
		}
	}
	for _, q := range s.plan.Questions {
		if q.Answer != "" {
			if fb.Answers == nil {
				fb.Answers = map[string]string{}
			}
			fb.Answers[q.ID] = q.Answer
		}
	}
	return fb
}

func (s *Session) planInput(prior *types.Plan, fb *types.Feedback) planner.Input {
	return planner.Input{
		Briefing:  s.briefing,
		Documents: s.documents,
		LOD:       s.lod,
		Subject:   s.subject,
		Prior:     prior,
		Feedback:  fb,
	}
}

func (s *Session) job(plan types.Plan, done []types.ProducedCard) producer.Job {
	return producer.Job{
		Briefing:  s.briefing,
		Documents: s.documents,
		LOD:       s.lod,
		Subject:   s.subject,
		Plan:      plan,
		Done:      append([]types.ProducedCard(nil), done...),
	}
}
