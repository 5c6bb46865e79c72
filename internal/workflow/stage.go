package workflow

import "github.com/nurpe/rental-contracts/internal/model"

type StageInput struct {
	Process              *model.ContractProcess
	ChecklistInitialized bool
	ChecklistComplete    bool
	Signing              model.SigningStatus
}

// Aggregate maps fine-grained state to the five reporting stages. It must
// stay deterministic and side-effect free.
func Aggregate(in StageInput) model.StageView {
	if in.Process == nil {
		return view(model.StageVisit, false)
	}
	p := in.Process
	closed := p.State.IsClosed()
	state := p.LastActiveState()

	switch {
	case state == model.StateFullySigned || state == model.StatePublished:
		return view(model.StageMoveIn, closed)
	case !in.ChecklistInitialized || !p.Visit.Completed():
		return view(model.StageVisit, closed)
	case !in.ChecklistComplete:
		return view(model.StageDocuments, closed)
	case inContractReview(state):
		return view(model.StageContractReview, closed)
	default:
		return view(model.StageAuthentication, closed)
	}
}

func inContractReview(state model.ContractState) bool {
	switch state {
	case model.StateDraft,
		model.StateTenantInvited,
		model.StateTenantReviewing,
		model.StateLandlordReviewing,
		model.StateBothReviewing,
		model.StateObjectionsPending:
		return true
	default:
		return false
	}
}

func view(stage model.WorkflowStage, closed bool) model.StageView {
	return model.StageView{Stage: stage, Name: stage.Name(), Closed: closed}
}
