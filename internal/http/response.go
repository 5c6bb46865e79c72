package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/rental-contracts/internal/model"
	"github.com/nurpe/rental-contracts/internal/service"
)

type matchResponse struct {
	ID         uuid.UUID              `json:"id"`
	Code       string                 `json:"code"`
	PropertyID uuid.UUID              `json:"property_id"`
	TenantID   uuid.UUID              `json:"tenant_id"`
	LandlordID uuid.UUID              `json:"landlord_id"`
	Status     model.MatchStatus      `json:"status"`
	Priority   model.MatchPriority    `json:"priority"`
	Profile    model.ApplicantProfile `json:"profile"`
	Message    string                 `json:"message,omitempty"`
	ExpiresAt  time.Time              `json:"expires_at"`
	DecidedAt  *time.Time             `json:"decided_at,omitempty"`
	ProcessID  *uuid.UUID             `json:"process_id,omitempty"`
	ReleasedAt *time.Time             `json:"released_at,omitempty"`
	Version    int64                  `json:"version"`
	CreatedAt  time.Time              `json:"created_at"`
}

func newMatchResponse(m *model.MatchRequest) matchResponse {
	return matchResponse{
		ID:         m.ID,
		Code:       m.Code,
		PropertyID: m.PropertyID,
		TenantID:   m.TenantID,
		LandlordID: m.LandlordID,
		Status:     m.Status,
		Priority:   m.Priority,
		Profile:    m.Profile,
		Message:    m.Message,
		ExpiresAt:  m.ExpiresAt,
		DecidedAt:  m.DecidedAt,
		ProcessID:  m.ProcessID,
		ReleasedAt: m.ReleasedAt,
		Version:    m.Version,
		CreatedAt:  m.CreatedAt,
	}
}

func newMatchList(matches []model.MatchRequest) []matchResponse {
	out := make([]matchResponse, 0, len(matches))
	for i := range matches {
		out = append(out, newMatchResponse(&matches[i]))
	}
	return out
}

type invitationResponse struct {
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

type processResponse struct {
	ID                 uuid.UUID                `json:"id"`
	MatchID            uuid.UUID                `json:"match_id"`
	PropertyID         uuid.UUID                `json:"property_id"`
	State              model.ContractState      `json:"state"`
	Landlord           model.Party              `json:"landlord"`
	Tenant             model.Party              `json:"tenant"`
	Property           model.PropertySnapshot   `json:"property"`
	Terms              model.ContractTerms      `json:"terms"`
	GuaranteeType      model.GuaranteeType      `json:"guarantee_type,omitempty"`
	TenantApproved     bool                     `json:"tenant_approved"`
	LandlordApproved   bool                     `json:"landlord_approved"`
	TenantReviewStatus model.TenantReviewStatus `json:"tenant_review_status"`
	Published          bool                     `json:"published"`
	Invitation         *invitationResponse      `json:"invitation,omitempty"`
	Visit              model.Visit              `json:"visit"`
	Version            int64                    `json:"version"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`

	SigningStatus     model.SigningStatus `json:"signing_status,omitempty"`
	Stage             *model.StageView    `json:"stage,omitempty"`
	MissingDocuments  []string            `json:"missing_documents,omitempty"`
	MissingSignatures []string            `json:"missing_signatures,omitempty"`
}

// newProcessResponse never exposes the invitation token hash.
func newProcessResponse(p *model.ContractProcess) processResponse {
	resp := processResponse{
		ID:                 p.ID,
		MatchID:            p.MatchID,
		PropertyID:         p.PropertyID,
		State:              p.State,
		Landlord:           p.Landlord,
		Tenant:             p.Tenant,
		Property:           p.Property,
		Terms:              p.Terms,
		GuaranteeType:      p.GuaranteeType,
		TenantApproved:     p.TenantApproved,
		LandlordApproved:   p.LandlordApproved,
		TenantReviewStatus: p.TenantReviewStatus(),
		Published:          p.Published(),
		Visit:              p.Visit,
		Version:            p.Version,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.Invitation != nil {
		resp.Invitation = &invitationResponse{ExpiresAt: p.Invitation.ExpiresAt, ConsumedAt: p.Invitation.ConsumedAt}
	}
	return resp
}

func newProcessView(v *service.ProcessView) processResponse {
	resp := newProcessResponse(v.Process)
	stage := v.Stage
	resp.SigningStatus = v.SigningStatus
	resp.Stage = &stage
	resp.MissingDocuments = v.MissingDocuments
	resp.MissingSignatures = v.MissingSignatures
	return resp
}

type slotResponse struct {
	ID                uuid.UUID               `json:"id"`
	Type              model.DocumentType      `json:"type"`
	Category          model.DocumentCategory  `json:"category"`
	Required          bool                    `json:"required"`
	Status            model.DocumentStatus    `json:"status"`
	FileName          string                  `json:"file_name,omitempty"`
	ContentType       string                  `json:"content_type,omitempty"`
	FileSize          int64                   `json:"file_size,omitempty"`
	CustomName        string                  `json:"custom_name,omitempty"`
	CustomDescription string                  `json:"custom_description,omitempty"`
	UploadedBy        *uuid.UUID              `json:"uploaded_by,omitempty"`
	UploadedAt        *time.Time              `json:"uploaded_at,omitempty"`
	ReviewedBy        *uuid.UUID              `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time              `json:"reviewed_at,omitempty"`
	ReviewNotes       string                  `json:"review_notes,omitempty"`
	Extraction        *model.ExtractionResult `json:"extraction,omitempty"`
	Audit             []model.SlotAuditEntry  `json:"audit,omitempty"`
	Version           int64                   `json:"version"`
}

func newSlotResponse(s *model.DocumentSlot) slotResponse {
	return slotResponse{
		ID:                s.ID,
		Type:              s.Type,
		Category:          s.Category,
		Required:          s.Required,
		Status:            s.Status,
		FileName:          s.FileName,
		ContentType:       s.ContentType,
		FileSize:          s.FileSize,
		CustomName:        s.CustomName,
		CustomDescription: s.CustomDescription,
		UploadedBy:        s.UploadedBy,
		UploadedAt:        s.UploadedAt,
		ReviewedBy:        s.ReviewedBy,
		ReviewedAt:        s.ReviewedAt,
		ReviewNotes:       s.ReviewNotes,
		Extraction:        s.Extraction,
		Audit:             s.Audit,
		Version:           s.Version,
	}
}

type checklistResponse struct {
	Initialized bool           `json:"initialized"`
	Complete    bool           `json:"complete"`
	Missing     []string       `json:"missing"`
	Slots       []slotResponse `json:"slots"`
}

func newChecklistResponse(v *service.ChecklistView) checklistResponse {
	slots := make([]slotResponse, 0, len(v.Slots))
	for i := range v.Slots {
		slots = append(slots, newSlotResponse(&v.Slots[i]))
	}
	missing := v.Missing
	if missing == nil {
		missing = []string{}
	}
	return checklistResponse{
		Initialized: v.Initialized,
		Complete:    v.Complete,
		Missing:     missing,
		Slots:       slots,
	}
}

type signingRecordResponse struct {
	Role             model.SigningRole   `json:"role"`
	SignerID         uuid.UUID           `json:"signer_id"`
	StartedAt        time.Time           `json:"started_at"`
	Completed        bool                `json:"completed"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	VerificationHash string              `json:"verification_hash,omitempty"`
	Context          model.DeviceContext `json:"context"`
	Geolocation      *model.Geolocation  `json:"geolocation,omitempty"`
}

func newSigningRecordResponse(r *model.SigningRecord) signingRecordResponse {
	return signingRecordResponse{
		Role:             r.Role,
		SignerID:         r.SignerID,
		StartedAt:        r.StartedAt,
		Completed:        r.Completed,
		CompletedAt:      r.CompletedAt,
		VerificationHash: r.VerificationHash,
		Context:          r.Context,
		Geolocation:      r.Geolocation,
	}
}

type signingStatusResponse struct {
	Status   model.SigningStatus     `json:"status"`
	Complete bool                    `json:"complete"`
	Missing  []string                `json:"missing"`
	Records  []signingRecordResponse `json:"records"`
}

func newSigningStatusResponse(v *service.SigningView) signingStatusResponse {
	records := make([]signingRecordResponse, 0, len(v.Records))
	for i := range v.Records {
		records = append(records, newSigningRecordResponse(&v.Records[i]))
	}
	missing := v.Missing
	if missing == nil {
		missing = []string{}
	}
	return signingStatusResponse{Status: v.Status, Complete: v.Complete, Missing: missing, Records: records}
}
