package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nurpe/rental-contracts/internal/model"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrActorNotAllowed   = errors.New("actor not allowed")
	ErrCommentRequired   = errors.New("comment required")
	ErrGateClosed        = errors.New("precondition not met")
	ErrHistoryCorrupt    = errors.New("history corrupt")
)

type TransitionError struct {
	Action model.WorkflowAction
	From   model.ContractState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// GateError names the missing preconditions so callers can render them.
type GateError struct {
	Gate    string
	Missing []string
}

func (e *GateError) Error() string {
	if len(e.Missing) == 0 {
		return e.Gate
	}
	return fmt.Sprintf("%s: %s", e.Gate, strings.Join(e.Missing, ", "))
}

func (e *GateError) Unwrap() error { return ErrGateClosed }
