package model

import (
	"time"

	"github.com/google/uuid"
)

type SigningRole string

const (
	SigningLandlord SigningRole = "landlord"
	SigningTenant   SigningRole = "tenant"
	// SigningCosigner is required only when the guarantee is personal.
	SigningCosigner SigningRole = "cosigner"
)

type SigningStatus string

const (
	SigningNone            SigningStatus = "none"
	SigningLandlordSigning SigningStatus = "landlord_signing"
	SigningLandlordSigned  SigningStatus = "landlord_signed"
	SigningTenantSigning   SigningStatus = "tenant_signing"
	SigningTenantSigned    SigningStatus = "tenant_signed"
	SigningComplete        SigningStatus = "complete"
)

type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AccuracyM float64 `json:"accuracy_m,omitempty"`
}

type DeviceContext struct {
	Device    string `json:"device"`
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// SignaturePayload is what the capturing client submits. Hash must match the
// digest of the other fields.
type SignaturePayload struct {
	Signature   string        `json:"signature"`
	Context     DeviceContext `json:"context"`
	CapturedAt  time.Time     `json:"captured_at"`
	Geolocation *Geolocation  `json:"geolocation,omitempty"`
	Hash        string        `json:"hash"`
}

type SigningRecord struct {
	ProcessID        uuid.UUID
	Role             SigningRole
	SignerID         uuid.UUID
	StartedAt        time.Time
	Completed        bool
	CompletedAt      *time.Time
	VerificationHash string
	Context          DeviceContext
	Geolocation      *Geolocation
}
