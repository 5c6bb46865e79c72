package model

import (
	"time"

	"github.com/google/uuid"
)

type PropertyType string

const (
	PropertyTypeApartment PropertyType = "apartment"
	PropertyTypeHouse     PropertyType = "house"
	PropertyTypeRoom      PropertyType = "room"
	PropertyTypeStudio    PropertyType = "studio"
)

// Property is the listing a match refers to. The catalog is owned elsewhere;
// this service only reads it and flips Available on acceptance.
type Property struct {
	ID          uuid.UUID
	LandlordID  uuid.UUID
	Address     string
	AreaM2      float64
	Type        PropertyType
	MonthlyRent float64
	Deposit     float64
	Available   bool
	UpdatedAt   time.Time
}

func (p Property) Snapshot() PropertySnapshot {
	return PropertySnapshot{
		Address: p.Address,
		AreaM2:  p.AreaM2,
		Type:    p.Type,
	}
}
