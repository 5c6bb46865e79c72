package model

import "github.com/google/uuid"

type Role string

const (
	RoleLandlord Role = "LANDLORD"
	RoleTenant   Role = "TENANT"
	// RoleAgent acts on behalf of the landlord named in Principal.ActingFor.
	RoleAgent    Role = "AGENT"
	RoleSystem   Role = "SYSTEM"
)

// Principal is the caller identity supplied by the auth collaborator. The
// role claim is trusted as-is.
type Principal struct {
	UserID    uuid.UUID
	Role      Role
	ActingFor *uuid.UUID
}

func SystemPrincipal() Principal {
	return Principal{Role: RoleSystem}
}

func (p Principal) IsLandlord() bool {
	return p.Role == RoleLandlord
}

func (p Principal) IsTenant() bool {
	return p.Role == RoleTenant
}

func (p Principal) IsAgent() bool {
	return p.Role == RoleAgent && p.ActingFor != nil
}

func (p Principal) IsSystem() bool {
	return p.Role == RoleSystem
}

// ActsForLandlord reports whether the principal is the landlord or a delegate
// of the landlord.
func (p Principal) ActsForLandlord(landlordID uuid.UUID) bool {
	switch {
	case p.IsLandlord():
		return p.UserID == landlordID
	case p.IsAgent():
		return *p.ActingFor == landlordID
	default:
		return false
	}
}

func (p Principal) Actor() Actor {
	return Actor{Role: p.Role, UserID: p.UserID}
}

// Actor is the party recorded in audit trails.
type Actor struct {
	Role   Role      `json:"role"`
	UserID uuid.UUID `json:"user_id"`
}
