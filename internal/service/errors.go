package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nurpe/rental-contracts/internal/checklist"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/signing"
	"github.com/nurpe/rental-contracts/internal/workflow"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidState     = errors.New("invalid state")
	ErrOrderViolation   = errors.New("order violation")
	ErrConflict         = errors.New("conflict")
	ErrExpired          = errors.New("expired")
	ErrTokenReused      = errors.New("token already used")
)

// PreconditionError is a validation or state failure that names what is
// missing, e.g. the required document slots that are not yet approved.
type PreconditionError struct {
	Kind    error
	Message string
	Missing []string
}

func (e *PreconditionError) Error() string {
	msg := e.Kind.Error() + ": " + e.Message
	if len(e.Missing) > 0 {
		msg += " (" + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error { return e.Kind }

func MissingOf(err error) []string {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Missing
	}
	return nil
}

func missing(kind error, message string, items []string) error {
	return &PreconditionError{Kind: kind, Message: message, Missing: items}
}

// translate maps rule and storage errors onto the service taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var gate *workflow.GateError
	switch {
	case errors.As(err, &gate):
		return missing(ErrInvalidState, gate.Gate, gate.Missing)
	case isServiceError(err):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: record changed, reload and retry", ErrConflict)
	case errors.Is(err, workflow.ErrActorNotAllowed):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, workflow.ErrCommentRequired):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, workflow.ErrIllegalTransition):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, signing.ErrOrderViolation):
		return fmt.Errorf("%w: %w", ErrOrderViolation, err)
	case errors.Is(err, signing.ErrInvalidPayload),
		errors.Is(err, signing.ErrRoleNotRequired),
		errors.Is(err, checklist.ErrNotesRequired),
		errors.Is(err, checklist.ErrInvalidDecision),
		errors.Is(err, checklist.ErrCustomDetails),
		errors.Is(err, checklist.ErrUnknownType):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, signing.ErrAlreadyComplete),
		errors.Is(err, checklist.ErrSlotLocked),
		errors.Is(err, checklist.ErrNoFile),
		errors.Is(err, checklist.ErrNotApproved),
		errors.Is(err, checklist.ErrAwaitingUpload),
		errors.Is(err, checklist.ErrAlreadyRequired):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	default:
		return err
	}
}

func isServiceError(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrPermissionDenied, ErrInvalidInput, ErrInvalidState,
		ErrOrderViolation, ErrConflict, ErrExpired, ErrTokenReused,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
