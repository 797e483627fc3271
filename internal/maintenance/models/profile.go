package models

import (
	"github.com/google/uuid"
)

// Role is the capability level of a profile.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTechnician:
		return true
	}
	return false
}

// Profile is a person known to the system. A nil TeamID means the profile is unassigned.
type Profile struct {
	ID       uuid.UUID
	FullName string
	Email    string
	Role     Role
	TeamID   *uuid.UUID
	Phone    *string
}

// CanManageTeams reports whether the profile may create teams, assign members and register equipment.
func (p *Profile) CanManageTeams() bool {
	return p != nil && (p.Role == RoleAdmin || p.Role == RoleManager)
}

// Unassigned reports whether the profile belongs to no team.
func (p *Profile) Unassigned() bool {
	return p.TeamID == nil
}

// Assignment is the change applied to an unassigned profile when it joins a team.
type Assignment struct {
	ProfileID uuid.UUID `validate:"required"`
	TeamID    uuid.UUID `validate:"required"`
	Role      Role      `validate:"required,oneof=admin manager technician"`
	Phone     *string
}
