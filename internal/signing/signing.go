// Package signing enforces signing order and completeness for a contract.
// It never verifies identity; a signature here is a captured payload whose
// digest matches what the client claims.
package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/rental-contracts/internal/model"
)

var (
	ErrOrderViolation  = errors.New("signing order violation")
	ErrInvalidPayload  = errors.New("invalid signature payload")
	ErrAlreadyComplete = errors.New("signature already completed")
	ErrRoleNotRequired = errors.New("signing role not required")
)

const hashPrefix = "sha256:"

// RequiredRoles lists the roles that must sign, in order.
func RequiredRoles(guarantee model.GuaranteeType) []model.SigningRole {
	roles := []model.SigningRole{model.SigningLandlord, model.SigningTenant}
	if guarantee == model.GuaranteePersonal {
		roles = append(roles, model.SigningCosigner)
	}
	return roles
}

func Find(records []model.SigningRecord, role model.SigningRole) (model.SigningRecord, bool) {
	for _, r := range records {
		if r.Role == role {
			return r, true
		}
	}
	return model.SigningRecord{}, false
}

func completed(records []model.SigningRecord, role model.SigningRole) bool {
	r, ok := Find(records, role)
	return ok && r.Completed
}

// CheckOrder rejects a role whose predecessor has not completed. It does not
// look at contract state, so the tenant-before-landlord rule holds from any
// state.
func CheckOrder(role model.SigningRole, guarantee model.GuaranteeType, records []model.SigningRecord) error {
	roles := RequiredRoles(guarantee)
	for i, r := range roles {
		if r != role {
			continue
		}
		if i > 0 && !completed(records, roles[i-1]) {
			return fmt.Errorf("%w: %s must sign first", ErrOrderViolation, roles[i-1])
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRoleNotRequired, role)
}

func IsComplete(records []model.SigningRecord, guarantee model.GuaranteeType) bool {
	return len(Missing(records, guarantee)) == 0
}

func Missing(records []model.SigningRecord, guarantee model.GuaranteeType) []string {
	var missing []string
	for _, role := range RequiredRoles(guarantee) {
		if !completed(records, role) {
			missing = append(missing, string(role))
		}
	}
	return missing
}

// Status derives the coordinator state from the stored records.
func Status(records []model.SigningRecord, guarantee model.GuaranteeType) model.SigningStatus {
	landlord, hasLandlord := Find(records, model.SigningLandlord)
	tenant, hasTenant := Find(records, model.SigningTenant)
	switch {
	case IsComplete(records, guarantee):
		return model.SigningComplete
	case hasTenant && tenant.Completed:
		return model.SigningTenantSigned
	case hasTenant:
		return model.SigningTenantSigning
	case hasLandlord && landlord.Completed:
		return model.SigningLandlordSigned
	case hasLandlord:
		return model.SigningLandlordSigning
	default:
		return model.SigningNone
	}
}

type canonicalPayload struct {
	Signature   string             `json:"signature"`
	Device      string             `json:"device"`
	UserAgent   string             `json:"user_agent"`
	IP          string             `json:"ip"`
	CapturedAt  string             `json:"captured_at"`
	Geolocation *model.Geolocation `json:"geolocation"`
}

// ComputeHash digests the signature together with its capture context.
func ComputeHash(p model.SignaturePayload) (string, error) {
	b, err := json.Marshal(canonicalPayload{
		Signature:   p.Signature,
		Device:      p.Context.Device,
		UserAgent:   p.Context.UserAgent,
		IP:          p.Context.IP,
		CapturedAt:  p.CapturedAt.UTC().Format(time.RFC3339Nano),
		Geolocation: p.Geolocation,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hashPrefix + hex.EncodeToString(sum[:]), nil
}

// VerifyPayload checks completeness and integrity of a captured signature.
func VerifyPayload(p model.SignaturePayload) error {
	if strings.TrimSpace(p.Signature) == "" {
		return fmt.Errorf("%w: signature is empty", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Context.Device) == "" {
		return fmt.Errorf("%w: device is required", ErrInvalidPayload)
	}
	if p.CapturedAt.IsZero() {
		return fmt.Errorf("%w: captured_at is required", ErrInvalidPayload)
	}
	if g := p.Geolocation; g != nil && (g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180) {
		return fmt.Errorf("%w: geolocation out of range", ErrInvalidPayload)
	}
	want, err := ComputeHash(p)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(p.Hash), want) {
		return fmt.Errorf("%w: hash mismatch", ErrInvalidPayload)
	}
	return nil
}

// Begin returns the record for role, creating it lazily.
func Begin(records []model.SigningRecord, rec model.SigningRecord) (model.SigningRecord, bool) {
	if existing, ok := Find(records, rec.Role); ok {
		return existing, false
	}
	return rec, true
}

// Complete stamps a record with a verified payload. Completed records are
// immutable.
func Complete(rec *model.SigningRecord, p model.SignaturePayload, at time.Time) error {
	if rec.Completed {
		return ErrAlreadyComplete
	}
	if err := VerifyPayload(p); err != nil {
		return err
	}
	rec.Completed = true
	rec.CompletedAt = &at
	rec.VerificationHash = strings.ToLower(strings.TrimSpace(p.Hash))
	rec.Context = p.Context
	rec.Geolocation = p.Geolocation
	return nil
}
