// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"time"

	"github.com/pdiddy/deck-engine/pkg/types"
)

// Snapshot is the persistent form of a session.
type Snapshot struct {
	ID         string `json:"id" yaml:"id"`
	State      State  `json:"state" yaml:"state"`
	LastStable State  `json:"last_stable,omitempty" yaml:"last_stable,omitempty"`
	FailedOp   string `json:"failed_op,omitempty" yaml:"failed_op,omitempty"`

	Briefing  types.Briefing         `json:"briefing" yaml:"briefing"`
	Documents []types.SourceDocument `json:"documents,omitempty" yaml:"documents,omitempty"`
	LOD       types.LOD              `json:"lod,omitempty" yaml:"lod,omitempty"`
	Subject   string                 `json:"subject,omitempty" yaml:"subject,omitempty"`

	Plan                 *types.Plan     `json:"plan,omitempty" yaml:"plan,omitempty"`
	AcceptAllRecommended bool            `json:"accept_all_recommended,omitempty" yaml:"accept_all_recommended,omitempty"`
	PendingFeedback      *types.Feedback `json:"pending_feedback,omitempty" yaml:"pending_feedback,omitempty"`

	Approved *types.Plan          `json:"approved,omitempty" yaml:"approved,omitempty"`
	Cards    []types.ProducedCard `json:"cards,omitempty" yaml:"cards,omitempty"`
	Notices  []types.Notice       `json:"notices,omitempty" yaml:"notices,omitempty"`
	Error    *types.ErrorInfo     `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                   s.id,
		State:                s.state,
		LastStable:           s.lastStable,
		FailedOp:             s.failedOp,
		Briefing:             s.briefing,
		Documents:            append([]types.SourceDocument(nil), s.documents...),
		LOD:                  s.lod,
		Subject:              s.subject,
		AcceptAllRecommended: s.acceptAll,
		Cards:                append([]types.ProducedCard(nil), s.cards...),
		Notices:              append([]types.Notice(nil), s.notices...),
		CreatedAt:            s.created,
		UpdatedAt:            s.updated,
	}
	if s.plan != nil {
		p := s.plan.Clone()
		snap.Plan = &p
	}
	if s.approved != nil {
		p := s.approved.Clone()
		snap.Approved = &p
	}
	if s.pending != nil {
		fb := *s.pending
		snap.PendingFeedback = &fb
	}
	if s.err != nil {
		e := *s.err
		snap.Error = &e
	}
	return snap
}

// Restore rebuilds a session from snap. A snapshot taken while an
// operation was in flight restores as Aborted, since that operation's
// result can no longer arrive.
func Restore(snap Snapshot, p Planner, prod Producer, opts ...Option) *Session {
	s := New(p, prod, opts...)

	if snap.ID != "" {
		s.id = snap.ID
	}
	s.state = snap.State
	if s.state == "" {
		s.state = StateIdle
	}
	if s.state.InFlight() {
		s.state = StateAborted
	}
	s.lastStable = snap.LastStable
	s.failedOp = snap.FailedOp
	s.briefing = snap.Briefing
	s.documents = append([]types.SourceDocument(nil), snap.Documents...)
	s.lod = snap.LOD
	s.subject = snap.Subject
	s.acceptAll = snap.AcceptAllRecommended
	s.cards = append([]types.ProducedCard(nil), snap.Cards...)
	types.SortCards(s.cards)
	s.notices = append([]types.Notice(nil), snap.Notices...)
	if snap.Plan != nil {
		p := snap.Plan.Clone()
		s.plan = &p
	}
	if snap.Approved != nil {
		p := snap.Approved.Clone()
		s.approved = &p
	}
	if s.plan == nil && s.state == StatePlanReady {
		s.state = StateIdle
	}
	if snap.PendingFeedback != nil {
		fb := *snap.PendingFeedback
		s.pending = &fb
	}
	if snap.Error != nil && s.state == StateError {
		e := *snap.Error
		s.err = &e
	}
	if !snap.CreatedAt.IsZero() {
		s.created = snap.CreatedAt
	}
	if !snap.UpdatedAt.IsZero() {
		s.updated = snap.UpdatedAt
	}
	return s
}
