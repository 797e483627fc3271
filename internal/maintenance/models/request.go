package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestType distinguishes reactive repairs from scheduled upkeep.
type RequestType string

const (
	Corrective RequestType = "corrective"
	Preventive RequestType = "preventive"
)

// Status is the lifecycle position of a maintenance request.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusRepaired   Status = "repaired"
	StatusScrap      Status = "scrap"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusNew, StatusInProgress, StatusRepaired, StatusScrap}

// OpenStatuses are the statuses counted as open work.
var OpenStatuses = []Status{StatusNew, StatusInProgress}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusRepaired, StatusScrap:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusRepaired || s == StatusScrap
}

// Priority orders requests for the technicians.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// MaintenanceRequest is a unit of maintenance work on one piece of equipment.
type MaintenanceRequest struct {
	ID            uuid.UUID
	Subject       string
	EquipmentID   uuid.UUID
	TeamID        uuid.UUID
	AssignedToID  *uuid.UUID
	RequestType   RequestType
	ScheduledDate *time.Time
	DurationHours *float64
	Status        Status
	Priority      Priority
	CreatedBy     uuid.UUID
	CreatedAt     time.Time

	// Expanded from related rows when the query asks for them.
	EquipmentName string
	AssigneeName  string
}

// RequestInput holds the fields of a new maintenance request. A nil TeamID
// is filled from the equipment's maintenance team; a nil CreatedBy is filled
// from the calling profile.
type RequestInput struct {
	Subject       string      `validate:"required"`
	EquipmentID   uuid.UUID   `validate:"required"`
	TeamID        *uuid.UUID
	AssignedToID  *uuid.UUID
	RequestType   RequestType `validate:"omitempty,oneof=corrective preventive"`
	ScheduledDate *time.Time
	DurationHours *float64    `validate:"omitempty,gte=0"`
	Priority      Priority    `validate:"omitempty,oneof=low normal high"`
	CreatedBy     *uuid.UUID
}

// RequestFilter narrows request queries. Zero values mean "no constraint".
type RequestFilter struct {
	EquipmentID   *uuid.UUID
	RequestType   RequestType
	Statuses      []Status
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
}
