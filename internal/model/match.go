package model

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusViewed    MatchStatus = "viewed"
	MatchStatusAccepted  MatchStatus = "accepted"
	MatchStatusRejected  MatchStatus = "rejected"
	MatchStatusCancelled MatchStatus = "cancelled"
	MatchStatusExpired   MatchStatus = "expired"
)

func (s MatchStatus) IsTerminal() bool {
	switch s {
	case MatchStatusAccepted, MatchStatusRejected, MatchStatusCancelled, MatchStatusExpired:
		return true
	default:
		return false
	}
}

type MatchPriority string

const (
	MatchPriorityLow    MatchPriority = "low"
	MatchPriorityNormal MatchPriority = "normal"
	MatchPriorityHigh   MatchPriority = "high"
)

type EmploymentType string

const (
	EmploymentEmployed     EmploymentType = "employed"
	EmploymentSelfEmployed EmploymentType = "self_employed"
	EmploymentStudent      EmploymentType = "student"
	EmploymentRetired      EmploymentType = "retired"
	EmploymentUnemployed   EmploymentType = "unemployed"
)

func (t EmploymentType) Valid() bool {
	switch t {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentStudent, EmploymentRetired, EmploymentUnemployed:
		return true
	default:
		return false
	}
}

type ApplicantProfile struct {
	MonthlyIncome  float64        `json:"monthly_income"`
	EmploymentType EmploymentType `json:"employment_type"`
	Occupants      int            `json:"occupants"`
	HasPets        bool           `json:"has_pets"`
	Smoker         bool           `json:"smoker"`
}

type MatchRequest struct {
	ID         uuid.UUID
	Code       string
	PropertyID uuid.UUID
	TenantID   uuid.UUID
	LandlordID uuid.UUID
	Status     MatchStatus
	Priority   MatchPriority
	Profile    ApplicantProfile
	Message    string
	ExpiresAt  time.Time
	DecidedAt  *time.Time
	ProcessID  *uuid.UUID
	// ReleasedAt is set when the process spawned by an accepted request is
	// closed without publication; the property is back on the market.
	ReleasedAt *time.Time
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HoldsProperty reports whether the request keeps its property off the
// market.
func (m MatchRequest) HoldsProperty() bool {
	return m.Status == MatchStatusAccepted && m.ReleasedAt == nil
}

// IsExpired reports whether a non-terminal request is past its expiry.
func (m MatchRequest) IsExpired(now time.Time) bool {
	return !m.Status.IsTerminal() && !now.Before(m.ExpiresAt)
}

// EffectiveStatus applies expiry lazily so a stale request is never
// actionable even before the sweep persists it.
func (m MatchRequest) EffectiveStatus(now time.Time) MatchStatus {
	if m.IsExpired(now) {
		return MatchStatusExpired
	}
	return m.Status
}
