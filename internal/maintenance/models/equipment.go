package models

import (
	"time"

	"github.com/google/uuid"
)

// Equipment is a physical asset maintained by exactly one team.
type Equipment struct {
	ID                uuid.UUID
	Name              string
	SerialNumber      string
	Category          string
	Department        string
	Location          string
	PurchaseDate      time.Time
	WarrantyEndDate   time.Time
	MaintenanceTeamID uuid.UUID
	// IsScrapped only ever moves from false to true.
	IsScrapped bool
}

// EquipmentInput holds the fields required to register equipment.
type EquipmentInput struct {
	Name              string    `validate:"required"`
	SerialNumber      string    `validate:"required"`
	Category          string    `validate:"required"`
	Department        string    `validate:"required"`
	Location          string    `validate:"required"`
	PurchaseDate      time.Time `validate:"required"`
	WarrantyEndDate   time.Time `validate:"required,gtefield=PurchaseDate"`
	MaintenanceTeamID uuid.UUID `validate:"required"`
}
