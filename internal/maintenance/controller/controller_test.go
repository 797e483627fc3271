package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/auth"
	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/gartstein/maintenance/internal/maintenance/db/dbtest"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockProducer records produced events.
type MockProducer struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockProducer) Produce(event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockProducer) Types() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]events.EventType, 0, len(m.events))
	for _, ev := range m.events {
		types = append(types, ev.Type)
	}
	return types
}

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	repo     *db.Repository
	producer *MockProducer
	team     *models.Team
	manager  *models.Profile
	tech     *models.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := dbtest.NewRepository(t)
	ctx := context.Background()

	team := &models.Team{ID: uuid.New(), Name: "Assembly"}
	require.NoError(t, repo.CreateTeam(ctx, team))

	return &fixture{
		repo:     repo,
		producer: &MockProducer{},
		team:     team,
		manager:  seedProfile(t, repo, "Grace Hopper", models.RoleManager, &team.ID),
		tech:     seedProfile(t, repo, "Tom Tech", models.RoleTechnician, &team.ID),
	}
}

func seedProfile(t *testing.T, repo *db.Repository, name string, role models.Role, teamID *uuid.UUID) *models.Profile {
	t.Helper()
	p := &models.Profile{
		ID:       uuid.New(),
		FullName: name,
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		TeamID:   teamID,
	}
	require.NoError(t, repo.CreateProfile(context.Background(), p))
	return p
}

func as(p *models.Profile) context.Context {
	return auth.WithPrincipal(context.Background(), auth.Principal{ProfileID: p.ID, Email: p.Email})
}

func cncInput(teamID uuid.UUID) models.EquipmentInput {
	return models.EquipmentInput{
		Name:              "CNC-01",
		SerialNumber:      "SN-1",
		Category:          "CNC",
		Department:        "Mfg",
		Location:          "A",
		PurchaseDate:      date("2024-01-01"),
		WarrantyEndDate:   date("2026-01-01"),
		MaintenanceTeamID: teamID,
	}
}

func (f *fixture) seedEquipment(t *testing.T, serial string) *models.Equipment {
	t.Helper()
	in := cncInput(f.team.ID)
	in.Name = "CNC-" + serial
	in.SerialNumber = serial
	eq, err := NewEquipmentService(f.repo, nil, zaptest.NewLogger(t)).Create(as(f.manager), in)
	require.NoError(t, err)
	return eq
}
