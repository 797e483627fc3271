// Package models contains the table rows of the maintenance store,
// configured to work using GORM as the ORM.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a row of the teams table. Members is filled by Preload.
type Team struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"size:255;not null"`
	CreatedAt time.Time
	Members   []Profile `gorm:"foreignKey:TeamID"`
}

// Profile is a row of the profiles table.
type Profile struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	FullName string     `gorm:"size:255;not null"`
	Email    string     `gorm:"size:255;uniqueIndex"`
	Role     string     `gorm:"size:32;not null;default:technician"`
	TeamID   *uuid.UUID `gorm:"type:uuid;index"`
	Phone    *string    `gorm:"size:64"`
}

// Equipment is a row of the equipment table.
type Equipment struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name              string    `gorm:"size:255;not null;index"`
	SerialNumber      string    `gorm:"size:255;not null;uniqueIndex"`
	Category          string    `gorm:"size:255;not null"`
	Department        string    `gorm:"size:255;not null"`
	Location          string    `gorm:"size:255;not null"`
	PurchaseDate      time.Time `gorm:"type:date"`
	WarrantyEndDate   time.Time `gorm:"type:date"`
	MaintenanceTeamID uuid.UUID `gorm:"type:uuid;not null;index"`
	IsScrapped        bool      `gorm:"not null;default:false"`
}

// TableName keeps the table singular; gorm would pluralize it to "equipments".
func (Equipment) TableName() string { return "equipment" }

// MaintenanceRequest is a row of the maintenance_requests table.
type MaintenanceRequest struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Subject       string     `gorm:"size:255;not null"`
	EquipmentID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	TeamID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	AssignedToID  *uuid.UUID `gorm:"type:uuid"`
	RequestType   string     `gorm:"size:32;not null"`
	ScheduledDate *time.Time `gorm:"type:date;index"`
	DurationHours *float64
	Status        string    `gorm:"size:32;not null;default:new;index"`
	Priority      string    `gorm:"size:32;not null;default:normal"`
	CreatedBy     uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt     time.Time `gorm:"index"`

	Equipment  *Equipment `gorm:"foreignKey:EquipmentID"`
	AssignedTo *Profile   `gorm:"foreignKey:AssignedToID"`
}

// Credential stores the password hash of a profile able to sign in.
type Credential struct {
	ProfileID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"size:255;uniqueIndex"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

// All lists every row type for migrations.
func All() []interface{} {
	return []interface{}{&Team{}, &Profile{}, &Equipment{}, &MaintenanceRequest{}, &Credential{}}
}
