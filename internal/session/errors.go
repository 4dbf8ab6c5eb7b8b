// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/deck-engine/internal/llm"
	"github.com/pdiddy/deck-engine/internal/planner"
	"github.com/pdiddy/deck-engine/internal/producer"
	"github.com/pdiddy/deck-engine/pkg/types"
)

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("session: invalid transition")

	// ErrEmptySelection is returned by ApprovePlan when every card is
	// excluded.
	ErrEmptySelection = errors.New("session: no cards selected")

	// ErrAborted is returned by an operation that was cancelled, either by
	// Abort or through its context. It is an outcome, not a failure: the
	// session carries no ErrorInfo for it.
	ErrAborted = errors.New("session: aborted")

	ErrUnknownCard     = errors.New("session: unknown card")
	ErrUnknownQuestion = errors.New("session: unknown question")
)

// TransitionError rejects an operation that is not valid in the current
// state. The session is left untouched.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("session: cannot %s while %s", e.Op, e.State)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// cancellation reports whether err means the operation was cancelled
// rather than failed.
func cancellation(err error) bool {
	return llm.IsCancelled(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// classify maps a failed planning or revision call to the error kind shown
// to the user.
func classify(op string, err error) types.ErrorInfo {
	info := types.ErrorInfo{Kind: types.ErrorTerminal, Op: op, Message: err.Error()}

	var planErr *planner.SchemaError
	var batchErr *producer.SchemaError
	var exhausted *llm.ExhaustedError
	switch {
	case errors.As(err, &planErr), errors.As(err, &batchErr):
		info.Kind = types.ErrorSchema
	case errors.As(err, &exhausted), llm.IsRetryable(err):
		info.Kind = types.ErrorTransient
	}
	return info
}

// severity orders kinds for a production run with mixed failures: one
// terminal batch makes the whole run terminal.
var severity = map[types.ErrorKind]int{
	types.ErrorTransient: 1,
	types.ErrorSchema:    2,
	types.ErrorTerminal:  3,
}

// classifyProduction classifies each failed batch of out. The run takes
// the most severe batch kind.
func classifyProduction(out producer.Outcome) types.ErrorInfo {
	info := types.ErrorInfo{Op: OpProduce, Message: out.Err().Error()}
	for _, f := range out.Failures {
		kind := classify(OpProduce, f.Err).Kind
		info.Batches = append(info.Batches, types.BatchError{
			First:   f.First,
			Last:    f.Last,
			Kind:    kind,
			Message: f.Err.Error(),
		})
		if severity[kind] > severity[info.Kind] {
			info.Kind = kind
		}
	}
	return info
}
