// Package models defines the core domain models of the maintenance engine:
// teams and the profiles assigned to them, equipment assets and the
// maintenance requests raised against them.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a maintenance team. Members is only populated by queries that
// expand the team's profiles.
type Team struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	Members   []Profile
}
