package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/rental-contracts/internal/model"
)

type Snapshot struct {
	State            model.ContractState
	TenantApproved   bool
	LandlordApproved bool
}

func SnapshotOf(p *model.ContractProcess) Snapshot {
	return Snapshot{
		State:            p.State,
		TenantApproved:   p.TenantApproved,
		LandlordApproved: p.LandlordApproved,
	}
}

func Initial() Snapshot {
	return Snapshot{State: model.StateDraft}
}

type side int

const (
	sideLandlord side = iota
	sideTenant
	sideEither
	sideSystem
)

var actionSides = map[model.WorkflowAction]side{
	model.ActionInvite:            sideLandlord,
	model.ActionAcceptInvitation:  sideTenant,
	model.ActionTenantApprove:     sideTenant,
	model.ActionRequestChanges:    sideTenant,
	model.ActionRespondObjections: sideLandlord,
	model.ActionLandlordApprove:   sideLandlord,
	model.ActionCompleteSigning:   sideEither,
	model.ActionPublish:           sideLandlord,
	model.ActionCancel:            sideEither,
	model.ActionTerminate:         sideEither,
	model.ActionExpire:            sideSystem,
}

// AllowedActor reports whether the actor's role may perform the action. The
// system may always act; identity against the process is the caller's check.
func AllowedActor(action model.WorkflowAction, role model.Role) bool {
	s, ok := actionSides[action]
	if !ok {
		return false
	}
	if role == model.RoleSystem {
		return true
	}
	switch s {
	case sideLandlord:
		return role == model.RoleLandlord || role == model.RoleAgent
	case sideTenant:
		return role == model.RoleTenant
	case sideEither:
		return role == model.RoleLandlord || role == model.RoleAgent || role == model.RoleTenant
	default:
		return false
	}
}

// Next is the structural transition table. It knows nothing about actors or
// external gates, so Replay can reuse it on recorded history.
func Next(s Snapshot, action model.WorkflowAction) (Snapshot, error) {
	illegal := &TransitionError{Action: action, From: s.State}
	if s.State.IsTerminal() {
		return s, illegal
	}

	next := s
	switch action {
	case model.ActionInvite:
		if s.State != model.StateDraft {
			return s, illegal
		}
		next.State = model.StateTenantInvited

	case model.ActionAcceptInvitation:
		if s.State != model.StateTenantInvited {
			return s, illegal
		}
		next.State = model.StateTenantReviewing

	case model.ActionTenantApprove:
		switch s.State {
		case model.StateTenantReviewing:
			next.State = model.StateLandlordReviewing
		case model.StateBothReviewing:
			next.State = model.StateReadyToSign
		default:
			return s, illegal
		}
		next.TenantApproved = true

	case model.ActionRequestChanges:
		if s.State != model.StateTenantReviewing && s.State != model.StateBothReviewing {
			return s, illegal
		}
		next.State = model.StateObjectionsPending
		next.TenantApproved = false
		next.LandlordApproved = false

	case model.ActionRespondObjections:
		if s.State != model.StateObjectionsPending {
			return s, illegal
		}
		next.State = model.StateTenantReviewing

	case model.ActionLandlordApprove:
		switch s.State {
		case model.StateTenantReviewing:
			next.State = model.StateBothReviewing
		case model.StateLandlordReviewing:
			next.State = model.StateReadyToSign
		default:
			return s, illegal
		}
		next.LandlordApproved = true

	case model.ActionCompleteSigning:
		if s.State != model.StateReadyToSign {
			return s, illegal
		}
		next.State = model.StateFullySigned

	case model.ActionPublish:
		if s.State != model.StateFullySigned {
			return s, illegal
		}
		next.State = model.StatePublished

	case model.ActionCancel:
		next.State = model.StateCancelled

	case model.ActionTerminate:
		next.State = model.StateTerminated

	case model.ActionExpire:
		next.State = model.StateExpired

	default:
		return s, illegal
	}
	return next, nil
}

// Gates carries guard inputs owned by other components.
type Gates struct {
	ChecklistComplete bool
	MissingDocuments  []string
	SigningComplete   bool
	MissingSignatures []string
}

type Command struct {
	Action  model.WorkflowAction
	Actor   model.Actor
	At      time.Time
	Comment string
}

// Apply validates the command against the process and, on success, mutates
// the process and returns the appended history entry. On error the process is
// left untouched.
func Apply(p *model.ContractProcess, cmd Command, gates Gates) (model.HistoryEntry, error) {
	if !AllowedActor(cmd.Action, cmd.Actor.Role) {
		return model.HistoryEntry{}, fmt.Errorf("%w: %s may not %s", ErrActorNotAllowed, cmd.Actor.Role, cmd.Action)
	}
	comment := strings.TrimSpace(cmd.Comment)
	if (cmd.Action == model.ActionRequestChanges || cmd.Action == model.ActionTerminate) && comment == "" {
		return model.HistoryEntry{}, fmt.Errorf("%w for %s", ErrCommentRequired, cmd.Action)
	}

	next, err := Next(SnapshotOf(p), cmd.Action)
	if err != nil {
		return model.HistoryEntry{}, err
	}

	switch next.State {
	case model.StateReadyToSign:
		if !next.TenantApproved || !next.LandlordApproved {
			var missing []string
			if !next.TenantApproved {
				missing = append(missing, "tenant_approval")
			}
			if !next.LandlordApproved {
				missing = append(missing, "landlord_approval")
			}
			return model.HistoryEntry{}, &GateError{Gate: "both parties must approve", Missing: missing}
		}
		if !gates.ChecklistComplete {
			return model.HistoryEntry{}, &GateError{Gate: "required documents not approved", Missing: gates.MissingDocuments}
		}
	case model.StateFullySigned:
		if !gates.SigningComplete {
			return model.HistoryEntry{}, &GateError{Gate: "signatures incomplete", Missing: gates.MissingSignatures}
		}
	}

	entry := model.HistoryEntry{
		Seq:     len(p.History) + 1,
		Action:  cmd.Action,
		From:    p.State,
		To:      next.State,
		Actor:   cmd.Actor,
		At:      cmd.At,
		Comment: comment,
	}
	p.History = append(p.History, entry)
	p.State = next.State
	p.TenantApproved = next.TenantApproved
	p.LandlordApproved = next.LandlordApproved
	p.UpdatedAt = cmd.At
	if next.State.IsClosed() {
		at := cmd.At
		p.ArchivedAt = &at
	}
	return entry, nil
}
