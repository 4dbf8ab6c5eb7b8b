// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/deck-engine/internal/planner"
	"github.com/pdiddy/deck-engine/internal/producer"
	"github.com/pdiddy/deck-engine/pkg/types"
)

// StartPlanning asks for the first plan. Valid only from Idle. On success
// the session is PlanReady; on failure it is in Error with no plan.
func (s *Session) StartPlanning(ctx context.Context, b types.Briefing, documents []types.SourceDocument, lod types.LOD, subject string) (State, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		defer s.mu.Unlock()
		return s.state, s.reject("start planning")
	}
	if err := b.Validate(); err != nil {
		s.mu.Unlock()
		return StateIdle, err
	}
	if len(documents) == 0 {
		s.mu.Unlock()
		return StateIdle, planner.ErrNoDocuments
	}
	lod, err := types.ParseLOD(string(lod))
	if err != nil {
		s.mu.Unlock()
		return StateIdle, err
	}

	s.briefing = b
	s.documents = append([]types.SourceDocument(nil), documents...)
	s.lod = lod
	s.subject = subject
	runCtx, run := s.arm(ctx, StatePlanning)
	in := s.planInput(nil, nil)
	s.mu.Unlock()

	plan, err := s.planner.Generate(runCtx, in)
	return s.finishPlan(run, OpPlan, plan, err)
}

// RevisePlan merges fb into the reviewed draft and asks for a revised plan.
// Valid only from PlanReady. A failed revision leaves the session in Error
// with the prior plan and the reviewer's edits intact.
func (s *Session) RevisePlan(ctx context.Context, fb types.Feedback) (State, error) {
	s.mu.Lock()
	if s.state != StatePlanReady {
		defer s.mu.Unlock()
		return s.state, s.reject("revise the plan")
	}
	if err := s.applyFeedback(fb); err != nil {
		s.mu.Unlock()
		return StatePlanReady, err
	}

	full := s.feedback()
	s.pending = &full
	prior := s.plan.Clone()
	runCtx, run := s.arm(ctx, StateRevising)
	in := s.planInput(&prior, &full)
	s.mu.Unlock()

	plan, err := s.planner.Generate(runCtx, in)
	return s.finishPlan(run, OpRevise, plan, err)
}

// applyFeedback validates fb against the draft and then applies it, so a
// bad card number or question ID changes nothing. Callers hold mu.
func (s *Session) applyFeedback(fb types.Feedback) error {
	for _, n := range fb.Excluded {
		if _, ok := s.plan.Card(n); !ok {
			return fmt.Errorf("%w: %d", ErrUnknownCard, n)
		}
	}
	for id := range fb.Answers {
		if s.question(id) < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
		}
	}

	for _, n := range fb.Excluded {
		s.plan.Cards[s.card(n)].Excluded = true
	}
	for id, a := range fb.Answers {
		s.plan.Questions[s.question(id)].Answer = a
	}
	if fb.AcceptAllRecommended {
		s.acceptAll = true
	}
	if fb.Comment != "" {
		s.plan.GeneralComment = fb.Comment
	}
	return nil
}

// finishPlan records the result of a planning or revision call.
func (s *Session) finishPlan(run uint64, op string, plan types.Plan, err error) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != run {
		// Aborted or reset while the call was in flight.
		return s.state, ErrAborted
	}
	s.disarm()

	switch {
	case err == nil:
		s.plan = &plan
		s.acceptAll = false
		s.pending = nil
		s.failedOp = ""
		s.setState(StatePlanReady)
		s.logger.Info("plan ready", "session_id", s.id, "op", op, "cards", len(plan.Cards))
		return s.state, nil
	case cancellation(err):
		s.setState(StateAborted)
		return s.state, ErrAborted
	}

	lastStable := StateIdle
	if op == OpRevise {
		lastStable = StatePlanReady
	}
	s.fail(classify(op, err), lastStable)
	return s.state, err
}

// ApprovePlan sends the included cards, renumbered 1..N, to production.
// Valid only from PlanReady. An empty selection is rejected with
// ErrEmptySelection and no state change. If every batch succeeds the
// session is Complete; otherwise it is in Error holding the cards of the
// batches that did succeed.
func (s *Session) ApprovePlan(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state != StatePlanReady {
		defer s.mu.Unlock()
		return s.state, s.reject("approve the plan")
	}
	approved := s.plan.Included()
	if len(approved.Cards) == 0 {
		s.mu.Unlock()
		return StatePlanReady, ErrEmptySelection
	}
	if s.acceptAll {
		for i, q := range approved.Questions {
			if q.Answer == "" {
				approved.Questions[i].Answer = q.Recommended
			}
		}
	}

	s.setState(StateApproving)
	s.approved = &approved
	s.cards = nil
	s.notices = nil
	runCtx, run := s.arm(ctx, StateProducing)
	job := s.job(approved, nil)
	s.mu.Unlock()

	return s.produce(runCtx, run, job)
}

// RetryProduction re-issues only the batches whose cards are missing after
// a production failure. Valid only from Error following production.
func (s *Session) RetryProduction(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state != StateError || s.failedOp != OpProduce || s.approved == nil {
		defer s.mu.Unlock()
		return s.state, s.reject("retry production")
	}
	runCtx, run := s.arm(ctx, StateProducing)
	job := s.job(*s.approved, s.cards)
	s.mu.Unlock()

	return s.produce(runCtx, run, job)
}

func (s *Session) produce(ctx context.Context, run uint64, job producer.Job) (State, error) {
	s.logger.Info("production started", "session_id", s.ID(), "cards", len(job.Plan.Cards), "done", len(job.Done))

	out := s.producer.Produce(ctx, job, func(r producer.BatchResult) {
		s.mu.Lock()
		if r.Err == nil && (s.run == run || s.abortedRun(run)) {
			s.cards = append(s.cards, r.Cards...)
			types.SortCards(s.cards)
			s.notices = append(s.notices, r.Notices...)
			s.updated = s.now()
		}
		s.mu.Unlock()
		if s.observer != nil {
			s.observer(r)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != run {
		return s.state, ErrAborted
	}
	s.disarm()
	s.cards = out.Cards

	switch {
	case out.Cancelled:
		s.setState(StateAborted)
		return s.state, ErrAborted
	case len(out.Failures) > 0:
		s.fail(classifyProduction(out), StatePlanReady)
		return s.state, out.Err()
	}

	s.failedOp = ""
	s.setState(StateComplete)
	s.logger.Info("deck complete", "session_id", s.id, "cards", len(s.cards), "notices", len(s.notices))
	return s.state, nil
}

// RetryFromReview recovers from Error whose last stable state is
// PlanReady. A failed revision is issued again with the same inputs and the
// reviewer's edits; after a production failure the session returns to
// PlanReady for another review, dropping the partial cards. A failed first
// plan has nothing to review: Reset and start again.
func (s *Session) RetryFromReview(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state != StateError || s.lastStable != StatePlanReady {
		defer s.mu.Unlock()
		return s.state, s.reject("retry")
	}

	switch s.failedOp {
	case OpProduce:
		defer s.mu.Unlock()
		s.err = nil
		s.failedOp = ""
		s.approved = nil
		s.cards = nil
		s.notices = nil
		s.setState(StatePlanReady)
		return s.state, nil

	case OpRevise:
		if s.plan == nil || s.pending == nil {
			break
		}
		prior := s.plan.Clone()
		fb := *s.pending
		runCtx, run := s.arm(ctx, StateRevising)
		in := s.planInput(&prior, &fb)
		s.mu.Unlock()
		plan, err := s.planner.Generate(runCtx, in)
		return s.finishPlan(run, OpRevise, plan, err)
	}

	defer s.mu.Unlock()
	return s.state, s.reject("retry")
}

// Abort cancels the operation in flight and moves to Aborted. Cards from
// batches whose model call had already returned are kept, even if they are
// recorded after the abort; calls cut off by it produce nothing. Valid from every state except Idle, Complete, and Aborted.
func (s *Session) Abort() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle, StateComplete, StateAborted:
		return s.state, s.reject("abort")
	}

	s.disarm()
	s.aborted = s.run
	s.run++
	s.err = nil
	s.setState(StateAborted)
	s.logger.Info("session aborted", "session_id", s.id, "cards_kept", len(s.cards))
	return s.state, nil
}

// Reset discards everything and returns to Idle under a new ID. Valid from
// Idle, Complete, Aborted, and Error.
func (s *Session) Reset() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateIdle, StateComplete, StateAborted, StateError:
	default:
		return s.state, s.reject("reset")
	}

	s.disarm()
	s.run++
	s.id = uuid.NewString()
	s.lastStable = ""
	s.failedOp = ""
	s.briefing = types.Briefing{}
	s.documents = nil
	s.lod = ""
	s.subject = ""
	s.plan = nil
	s.acceptAll = false
	s.pending = nil
	s.approved = nil
	s.cards = nil
	s.notices = nil
	s.err = nil
	s.created = s.now()
	s.setState(StateIdle)
	return s.state, nil
}

// ToggleCardIncluded flips whether card n goes to production.
func (s *Session) ToggleCardIncluded(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlanReady {
		return s.reject("edit the plan")
	}
	i := s.card(n)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownCard, n)
	}
	s.plan.Cards[i].Excluded = !s.plan.Cards[i].Excluded
	s.updated = s.now()
	return nil
}

// SetQuestionAnswer records the reviewer's answer to question id. An empty
// answer clears it.
func (s *Session) SetQuestionAnswer(id, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlanReady {
		return s.reject("edit the plan")
	}
	i := s.question(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	s.plan.Questions[i].Answer = answer
	s.updated = s.now()
	return nil
}

// SetAllRecommended sets whether unanswered questions take their
// recommended answer.
func (s *Session) SetAllRecommended(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlanReady {
		return s.reject("edit the plan")
	}
	s.acceptAll = on
	s.updated = s.now()
	return nil
}

// SetGeneralComment sets the free-text comment sent with a revision.
func (s *Session) SetGeneralComment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePlanReady {
		return s.reject("edit the plan")
	}
	s.plan.GeneralComment = text
	s.updated = s.now()
	return nil
}

// AcceptAllRecommended reports the draft's accept-all flag.
func (s *Session) AcceptAllRecommended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptAll
}

func (s *Session) card(n int) int {
	if s.plan == nil {
		return -1
	}
	for i, c := range s.plan.Cards {
		if c.Number == n {
			return i
		}
	}
	return -1
}

func (s *Session) question(id string) int {
	if s.plan == nil {
		return -1
	}
	for i, q := range s.plan.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}
