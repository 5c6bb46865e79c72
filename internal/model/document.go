package model

import (
	"time"

	"github.com/google/uuid"
)

type DocumentCategory string

const (
	CategoryPrincipal DocumentCategory = "principal"
	CategoryCosigner  DocumentCategory = "cosigner"
	CategoryGuarantee DocumentCategory = "guarantee"
	CategoryOther     DocumentCategory = "other"
)

type DocumentType string

const (
	DocPrincipalID               DocumentType = "principal_id"
	DocPrincipalIncomeProof      DocumentType = "principal_income_proof"
	DocPrincipalEmploymentLetter DocumentType = "principal_employment_letter"
	DocPrincipalBankStatement    DocumentType = "principal_bank_statement"
	DocPrincipalRentalHistory    DocumentType = "principal_rental_history"

	DocCosignerID               DocumentType = "cosigner_id"
	DocCosignerIncomeProof      DocumentType = "cosigner_income_proof"
	DocCosignerEmploymentLetter DocumentType = "cosigner_employment_letter"

	DocGuaranteeBankGuarantee     DocumentType = "guarantee_bank_guarantee"
	DocGuaranteeDepositInsurance  DocumentType = "guarantee_deposit_insurance"
	DocGuaranteePropertyDeed      DocumentType = "guarantee_property_deed"
	DocGuaranteePropertyValuation DocumentType = "guarantee_property_valuation"

	// DocOther is a custom document named by the uploader.
	DocOther DocumentType = "otros"
)

type DocumentStatus string

const (
	DocumentPending            DocumentStatus = "pending"
	DocumentApproved           DocumentStatus = "approved"
	DocumentRejected           DocumentStatus = "rejected"
	DocumentRequiresCorrection DocumentStatus = "requires_correction"
)

type ReviewDecision string

const (
	DecisionApprove           ReviewDecision = "approve"
	DecisionReject            ReviewDecision = "reject"
	DecisionRequestCorrection ReviewDecision = "request_correction"
)

func (d ReviewDecision) Status() (DocumentStatus, bool) {
	switch d {
	case DecisionApprove:
		return DocumentApproved, true
	case DecisionReject:
		return DocumentRejected, true
	case DecisionRequestCorrection:
		return DocumentRequiresCorrection, true
	default:
		return "", false
	}
}

// ExtractionResult is what an external verification collaborator reports for
// an uploaded identity or financial document.
type ExtractionResult struct {
	Name       string     `json:"name"`
	Number     string     `json:"number"`
	Expiry     *time.Time `json:"expiry,omitempty"`
	Issuer     string     `json:"issuer"`
	Confidence float64    `json:"confidence"`
}

type SlotAuditEntry struct {
	Action string    `json:"action"`
	Actor  Actor     `json:"actor"`
	At     time.Time `json:"at"`
	Notes  string    `json:"notes,omitempty"`
}

type DocumentSlot struct {
	ID                uuid.UUID
	ProcessID         uuid.UUID
	Type              DocumentType
	Category          DocumentCategory
	Required          bool
	Status            DocumentStatus
	FileRef           string
	FileName          string
	ContentType       string
	FileSize          int64
	CustomName        string
	CustomDescription string
	UploadedBy        *uuid.UUID
	ReviewedBy        *uuid.UUID
	ReviewNotes       string
	UploadedAt        *time.Time
	ReviewedAt        *time.Time
	Extraction        *ExtractionResult
	Audit             []SlotAuditEntry
	Version           int64
	CreatedAt         time.Time
}

func (s DocumentSlot) HasFile() bool {
	return s.FileRef != ""
}

func (s DocumentSlot) IsCustom() bool {
	return s.Type == DocOther
}

// Label names the slot for messages: the custom name for "otros" slots,
// otherwise the type.
func (s DocumentSlot) Label() string {
	if s.IsCustom() && s.CustomName != "" {
		return string(s.Type) + ":" + s.CustomName
	}
	return string(s.Type)
}
