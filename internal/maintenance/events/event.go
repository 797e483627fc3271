// Package events publishes maintenance domain events to Kafka and consumes
// them back for follow-up work such as the scrap cascade repair.
package events

import (
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
)

type EventType string

const (
	TeamCreated          EventType = "team_created"
	MemberAssigned       EventType = "member_assigned"
	EquipmentCreated     EventType = "equipment_created"
	EquipmentScrapped    EventType = "equipment_scrapped"
	RequestCreated       EventType = "request_created"
	RequestStatusChanged EventType = "request_status_changed"
	RequestAssigned      EventType = "request_assigned"
	SessionSignedIn      EventType = "session_signed_in"
	SessionSignedOut     EventType = "session_signed_out"
)

// Event is the message value written to the topic. Only the entity
// relevant to Type is set.
type Event struct {
	Type       EventType
	EntityID   uuid.UUID
	OccurredAt time.Time

	Team      *models.Team               `json:",omitempty"`
	Profile   *models.Profile            `json:",omitempty"`
	Equipment *models.Equipment          `json:",omitempty"`
	Request   *models.MaintenanceRequest `json:",omitempty"`
	// PreviousStatus is set on RequestStatusChanged.
	PreviousStatus models.Status `json:",omitempty"`
}
