package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContractState string

const (
	StateDraft             ContractState = "DRAFT"
	StateTenantInvited     ContractState = "TENANT_INVITED"
	StateTenantReviewing   ContractState = "TENANT_REVIEWING"
	StateLandlordReviewing ContractState = "LANDLORD_REVIEWING"
	StateObjectionsPending ContractState = "OBJECTIONS_PENDING"
	StateBothReviewing     ContractState = "BOTH_REVIEWING"
	StateReadyToSign       ContractState = "READY_TO_SIGN"
	StateFullySigned       ContractState = "FULLY_SIGNED"
	StatePublished         ContractState = "PUBLISHED"
	StateExpired           ContractState = "EXPIRED"
	StateTerminated        ContractState = "TERMINATED"
	StateCancelled         ContractState = "CANCELLED"
)

// IsClosed reports the terminal side-states reachable by cancel, terminate or
// expire.
func (s ContractState) IsClosed() bool {
	switch s {
	case StateExpired, StateTerminated, StateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal includes PUBLISHED, which admits no further transitions.
func (s ContractState) IsTerminal() bool {
	return s == StatePublished || s.IsClosed()
}

type WorkflowAction string

const (
	ActionInvite            WorkflowAction = "invite"
	ActionAcceptInvitation  WorkflowAction = "accept_invitation"
	ActionTenantApprove     WorkflowAction = "tenant_approve"
	ActionRequestChanges    WorkflowAction = "request_changes"
	ActionRespondObjections WorkflowAction = "respond_objections"
	ActionLandlordApprove   WorkflowAction = "landlord_approve"
	ActionCompleteSigning   WorkflowAction = "complete_signing"
	ActionPublish           WorkflowAction = "publish"
	ActionCancel            WorkflowAction = "cancel"
	ActionTerminate         WorkflowAction = "terminate"
	ActionExpire            WorkflowAction = "expire"
)

type TenantReviewStatus string

const (
	TenantReviewPending          TenantReviewStatus = "pending"
	TenantReviewReviewing        TenantReviewStatus = "reviewing"
	TenantReviewApproved         TenantReviewStatus = "approved"
	TenantReviewChangesRequested TenantReviewStatus = "changes_requested"
)

type GuaranteeType string

const (
	GuaranteeNone      GuaranteeType = "none"
	GuaranteePersonal  GuaranteeType = "personal"
	GuaranteeFinancial GuaranteeType = "financial"
	GuaranteeProperty  GuaranteeType = "property"
)

func (g GuaranteeType) Valid() bool {
	switch g {
	case GuaranteeNone, GuaranteePersonal, GuaranteeFinancial, GuaranteeProperty:
		return true
	default:
		return false
	}
}

// Party is one side of the contract with legal identity, contact and banking
// data.
type Party struct {
	UserID      uuid.UUID `json:"user_id"`
	FullName    string    `json:"full_name"`
	NationalID  string    `json:"national_id"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	BankName    string    `json:"bank_name"`
	BankAccount string    `json:"bank_account"`
}

func (p Party) MissingFields(prefix string) []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, prefix+"."+name)
		}
	}
	if p.UserID == uuid.Nil {
		missing = append(missing, prefix+".user_id")
	}
	check("full_name", p.FullName)
	check("national_id", p.NationalID)
	check("email", p.Email)
	check("phone", p.Phone)
	check("bank_name", p.BankName)
	check("bank_account", p.BankAccount)
	return missing
}

type PropertySnapshot struct {
	Address string       `json:"address"`
	AreaM2  float64      `json:"area_m2"`
	Type    PropertyType `json:"type"`
}

func (p PropertySnapshot) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(p.Address) == "" {
		missing = append(missing, "property.address")
	}
	if p.AreaM2 <= 0 {
		missing = append(missing, "property.area_m2")
	}
	if p.Type == "" {
		missing = append(missing, "property.type")
	}
	return missing
}

type ContractTerms struct {
	MonthlyRent    float64   `json:"monthly_rent"`
	Deposit        float64   `json:"deposit"`
	StartDate      time.Time `json:"start_date"`
	DurationMonths int       `json:"duration_months"`
	PaymentDay     int       `json:"payment_day"`
	SpecialClauses []string  `json:"special_clauses,omitempty"`
}

func (t ContractTerms) MissingFields() []string {
	var missing []string
	if t.MonthlyRent <= 0 {
		missing = append(missing, "terms.monthly_rent")
	}
	if t.Deposit < 0 {
		missing = append(missing, "terms.deposit")
	}
	if t.StartDate.IsZero() {
		missing = append(missing, "terms.start_date")
	}
	if t.DurationMonths <= 0 {
		missing = append(missing, "terms.duration_months")
	}
	if t.PaymentDay < 1 || t.PaymentDay > 28 {
		missing = append(missing, "terms.payment_day")
	}
	return missing
}

// Invitation holds only the hash of the single-use token handed to the tenant.
type Invitation struct {
	TokenHash  string     `json:"token_hash"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

type Visit struct {
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (v Visit) Completed() bool {
	return v.CompletedAt != nil
}

type HistoryEntry struct {
	Seq     int            `json:"seq"`
	Action  WorkflowAction `json:"action"`
	From    ContractState  `json:"from"`
	To      ContractState  `json:"to"`
	Actor   Actor          `json:"actor"`
	At      time.Time      `json:"at"`
	Comment string         `json:"comment,omitempty"`
}

// ContractProcess is the aggregate root of one contract workflow. State and
// the approval flags are written only by the workflow machine; everything else
// a caller might want to know about progress is derived.
type ContractProcess struct {
	ID               uuid.UUID
	MatchID          uuid.UUID
	PropertyID       uuid.UUID
	Landlord         Party
	Tenant           Party
	Property         PropertySnapshot
	Terms            ContractTerms
	GuaranteeType    GuaranteeType
	State            ContractState
	TenantApproved   bool
	LandlordApproved bool
	History          []HistoryEntry
	Invitation       *Invitation
	Visit            Visit
	ArchivedAt       *time.Time
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *ContractProcess) Published() bool {
	return p.State == StatePublished
}

func (p *ContractProcess) IsParty(principal Principal) bool {
	if principal.IsTenant() {
		return principal.UserID == p.Tenant.UserID
	}
	return principal.ActsForLandlord(p.Landlord.UserID)
}

func (p *ContractProcess) TenantReviewStatus() TenantReviewStatus {
	switch {
	case p.State == StateObjectionsPending:
		return TenantReviewChangesRequested
	case p.TenantApproved:
		return TenantReviewApproved
	case p.State == StateTenantReviewing, p.State == StateBothReviewing:
		return TenantReviewReviewing
	default:
		return TenantReviewPending
	}
}

// LastActiveState is the state before the process was closed, or the current
// state when it is still open.
func (p *ContractProcess) LastActiveState() ContractState {
	if !p.State.IsClosed() || len(p.History) == 0 {
		return p.State
	}
	return p.History[len(p.History)-1].From
}
