package model

import "time"

type WorkflowStage int

const (
	StageVisit          WorkflowStage = 1
	StageDocuments      WorkflowStage = 2
	StageContractReview WorkflowStage = 3
	StageAuthentication WorkflowStage = 4
	StageMoveIn         WorkflowStage = 5
)

func (s WorkflowStage) Name() string {
	switch s {
	case StageVisit:
		return "visit"
	case StageDocuments:
		return "documents"
	case StageContractReview:
		return "contract_review"
	case StageAuthentication:
		return "authentication"
	case StageMoveIn:
		return "move_in"
	default:
		return "unknown"
	}
}

// StageView is the reporting projection of a process. Closed is set when the
// process was cancelled, terminated or expired; Stage then reflects where it
// stopped.
type StageView struct {
	Stage  WorkflowStage `json:"stage"`
	Name   string        `json:"name"`
	Closed bool          `json:"closed"`
}

type ProcessReport struct {
	Process       ContractProcess
	Stage         StageView
	Slots         []DocumentSlot
	Signings      []SigningRecord
	SigningStatus SigningStatus
	GeneratedAt   time.Time
}
