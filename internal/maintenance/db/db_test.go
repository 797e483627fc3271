package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/gartstein/maintenance/internal/maintenance/db/dbtest"
	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedTeam(t *testing.T, repo *db.Repository, name string) *models.Team {
	team := &models.Team{ID: uuid.New(), Name: name}
	require.NoError(t, repo.CreateTeam(context.Background(), team))
	return team
}

func seedEquipment(t *testing.T, repo *db.Repository, teamID uuid.UUID, serial string) *models.Equipment {
	eq := &models.Equipment{
		ID:                uuid.New(),
		Name:              "CNC-" + serial,
		SerialNumber:      serial,
		Category:          "CNC",
		Department:        "Mfg",
		Location:          "A",
		PurchaseDate:      date("2024-01-01"),
		WarrantyEndDate:   date("2026-01-01"),
		MaintenanceTeamID: teamID,
	}
	require.NoError(t, repo.CreateEquipment(context.Background(), eq))
	return eq
}

func seedProfile(t *testing.T, repo *db.Repository, name string, teamID *uuid.UUID) *models.Profile {
	p := &models.Profile{
		ID:       uuid.New(),
		FullName: name,
		Email:    uuid.NewString() + "@example.com",
		Role:     models.RoleTechnician,
		TeamID:   teamID,
	}
	require.NoError(t, repo.CreateProfile(context.Background(), p))
	return p
}

func seedRequest(t *testing.T, repo *db.Repository, eq *models.Equipment, createdBy uuid.UUID, mutate func(*models.MaintenanceRequest)) *models.MaintenanceRequest {
	req := &models.MaintenanceRequest{
		ID:          uuid.New(),
		Subject:     "Oil leak",
		EquipmentID: eq.ID,
		TeamID:      eq.MaintenanceTeamID,
		RequestType: models.Corrective,
		Status:      models.StatusNew,
		Priority:    models.PriorityNormal,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now().UTC(),
	}
	if mutate != nil {
		mutate(req)
	}
	require.NoError(t, repo.CreateRequest(context.Background(), req))
	return req
}

func TestListTeamsIncludesMembers(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()

	mechanics := seedTeam(t, repo, "Mechanics")
	seedTeam(t, repo, "Electricians")
	seedProfile(t, repo, "Ada", &mechanics.ID)

	teams, err := repo.ListTeams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Electricians", teams[0].Name, "teams should be ordered by name")
	assert.Empty(t, teams[0].Members)
	assert.Equal(t, "Mechanics", teams[1].Name)
	require.Len(t, teams[1].Members, 1)
	assert.Equal(t, "Ada", teams[1].Members[0].FullName)
}

func TestTeamExists(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()

	exists, err := repo.TeamExists(ctx, uuid.New())
	assert.NoError(t, err)
	assert.False(t, exists)

	team := seedTeam(t, repo, "Mechanics")
	exists, err = repo.TeamExists(ctx, team.ID)
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestGetEquipmentNotFound(t *testing.T) {
	repo := dbtest.NewRepository(t)

	_, err := repo.GetEquipment(context.Background(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestCreateEquipmentDuplicateSerial(t *testing.T) {
	repo := dbtest.NewRepository(t)
	team := seedTeam(t, repo, "Mechanics")
	seedEquipment(t, repo, team.ID, "SN-1")

	dup := &models.Equipment{
		ID:                uuid.New(),
		Name:              "Other",
		SerialNumber:      "SN-1",
		Category:          "CNC",
		Department:        "Mfg",
		Location:          "B",
		PurchaseDate:      date("2024-01-01"),
		WarrantyEndDate:   date("2025-01-01"),
		MaintenanceTeamID: team.ID,
	}
	err := repo.CreateEquipment(context.Background(), dup)
	assert.ErrorIs(t, err, e.ErrConflict)
}

func TestMarkEquipmentScrapped(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	eq := seedEquipment(t, repo, team.ID, "SN-1")

	require.NoError(t, repo.MarkEquipmentScrapped(ctx, eq.ID))
	// Applying it twice is harmless.
	require.NoError(t, repo.MarkEquipmentScrapped(ctx, eq.ID))

	got, err := repo.GetEquipment(ctx, eq.ID)
	require.NoError(t, err)
	assert.True(t, got.IsScrapped)

	assert.ErrorIs(t, repo.MarkEquipmentScrapped(ctx, uuid.New()), e.ErrNotFound)
}

func TestAssignProfile(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	profile := seedProfile(t, repo, "Ada", nil)
	phone := "+1-555-0100"

	updated, err := repo.AssignProfile(ctx, &models.Assignment{
		ProfileID: profile.ID,
		TeamID:    team.ID,
		Role:      models.RoleManager,
		Phone:     &phone,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.TeamID)
	assert.Equal(t, team.ID, *updated.TeamID)
	assert.Equal(t, models.RoleManager, updated.Role)
	require.NotNil(t, updated.Phone)
	assert.Equal(t, phone, *updated.Phone)

	t.Run("already assigned", func(t *testing.T) {
		_, err := repo.AssignProfile(ctx, &models.Assignment{ProfileID: profile.ID, TeamID: team.ID, Role: models.RoleTechnician})
		assert.ErrorIs(t, err, e.ErrConflict)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, err := repo.AssignProfile(ctx, &models.Assignment{ProfileID: uuid.New(), TeamID: team.ID, Role: models.RoleTechnician})
		assert.ErrorIs(t, err, e.ErrNotFound)
	})
}

func TestUnassignedProfilesIsRestartable(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	seedProfile(t, repo, "Bob", nil)
	seedProfile(t, repo, "Ada", nil)
	seedProfile(t, repo, "Cy", &team.ID)

	collect := func() []string {
		var names []string
		for p, err := range repo.UnassignedProfiles(ctx) {
			require.NoError(t, err)
			names = append(names, p.FullName)
		}
		return names
	}

	assert.Equal(t, []string{"Ada", "Bob"}, collect())

	// A profile added between iterations shows up on the next pass.
	seedProfile(t, repo, "Dee", nil)
	assert.Equal(t, []string{"Ada", "Bob", "Dee"}, collect())
}

func TestListRequestsFilters(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	eq1 := seedEquipment(t, repo, team.ID, "SN-1")
	eq2 := seedEquipment(t, repo, team.ID, "SN-2")
	tech := seedProfile(t, repo, "Ada", &team.ID)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	old := seedRequest(t, repo, eq1, tech.ID, func(r *models.MaintenanceRequest) {
		r.CreatedAt = base
		r.AssignedToID = &tech.ID
	})
	scheduled := date("2025-03-10")
	preventive := seedRequest(t, repo, eq1, tech.ID, func(r *models.MaintenanceRequest) {
		r.CreatedAt = base.Add(time.Hour)
		r.RequestType = models.Preventive
		r.ScheduledDate = &scheduled
		r.Status = models.StatusInProgress
	})
	seedRequest(t, repo, eq2, tech.ID, func(r *models.MaintenanceRequest) {
		r.CreatedAt = base.Add(2 * time.Hour)
		r.Status = models.StatusRepaired
	})

	t.Run("equipment filter newest first", func(t *testing.T) {
		list, err := repo.ListRequests(ctx, models.RequestFilter{EquipmentID: &eq1.ID})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, preventive.ID, list[0].ID)
		assert.Equal(t, old.ID, list[1].ID)
		assert.Equal(t, eq1.Name, list[1].EquipmentName)
		assert.Equal(t, "Ada", list[1].AssigneeName)
	})

	t.Run("scheduled range", func(t *testing.T) {
		from, to := date("2025-03-01"), date("2025-03-31")
		list, err := repo.ListRequests(ctx, models.RequestFilter{
			RequestType:   models.Preventive,
			ScheduledFrom: &from,
			ScheduledTo:   &to,
		})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, preventive.ID, list[0].ID)
		require.NotNil(t, list[0].ScheduledDate)
		assert.True(t, scheduled.Equal(*list[0].ScheduledDate))
	})

	t.Run("count open", func(t *testing.T) {
		count, err := repo.CountRequests(ctx, models.RequestFilter{EquipmentID: &eq1.ID, Statuses: models.OpenStatuses})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = repo.CountRequests(ctx, models.RequestFilter{EquipmentID: &eq2.ID, Statuses: models.OpenStatuses})
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestUpdateRequestStatusAndAssign(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	eq := seedEquipment(t, repo, team.ID, "SN-1")
	tech := seedProfile(t, repo, "Ada", &team.ID)
	req := seedRequest(t, repo, eq, tech.ID, nil)

	require.NoError(t, repo.UpdateRequestStatus(ctx, req.ID, models.StatusInProgress))
	require.NoError(t, repo.AssignRequest(ctx, req.ID, &tech.ID))

	got, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.AssignedToID)
	assert.Equal(t, tech.ID, *got.AssignedToID)

	require.NoError(t, repo.AssignRequest(ctx, req.ID, nil))
	got, err = repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToID)

	assert.ErrorIs(t, repo.UpdateRequestStatus(ctx, uuid.New(), models.StatusRepaired), e.ErrNotFound)
	_, err = repo.GetRequest(ctx, uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestUpdateRequestStatusKeepsTerminalRows(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	eq := seedEquipment(t, repo, team.ID, "SN-1")
	tech := seedProfile(t, repo, "Ada", &team.ID)

	for _, final := range []models.Status{models.StatusRepaired, models.StatusScrap} {
		t.Run(string(final), func(t *testing.T) {
			req := seedRequest(t, repo, eq, tech.ID, nil)
			require.NoError(t, repo.UpdateRequestStatus(ctx, req.ID, final))

			for _, next := range models.Statuses {
				err := repo.UpdateRequestStatus(ctx, req.ID, next)
				assert.ErrorIs(t, err, e.ErrInvalidState, "%s -> %s", final, next)
			}

			got, err := repo.GetRequest(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, final, got.Status)
		})
	}
}

func TestListRequestsScheduledRangeIsInclusive(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	team := seedTeam(t, repo, "Mechanics")
	eq := seedEquipment(t, repo, team.ID, "SN-1")
	tech := seedProfile(t, repo, "Ada", &team.ID)

	ids := map[string]uuid.UUID{}
	for _, day := range []string{"2025-02-28", "2025-03-01", "2025-03-31", "2025-04-01"} {
		scheduled := date(day)
		req := seedRequest(t, repo, eq, tech.ID, func(r *models.MaintenanceRequest) {
			r.RequestType = models.Preventive
			r.ScheduledDate = &scheduled
		})
		ids[day] = req.ID
	}

	from, to := date("2025-03-01"), date("2025-03-31")
	list, err := repo.ListRequests(ctx, models.RequestFilter{ScheduledFrom: &from, ScheduledTo: &to})
	require.NoError(t, err)

	got := make([]uuid.UUID, 0, len(list))
	for _, req := range list {
		got = append(got, req.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{ids["2025-03-01"], ids["2025-03-31"]}, got)
}

func TestCredentials(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	profile := seedProfile(t, repo, "Ada", nil)

	cred := &dbm.Credential{ProfileID: profile.ID, Email: profile.Email, PasswordHash: "hash"}
	require.NoError(t, repo.CreateCredential(ctx, cred))

	got, err := repo.GetCredentialByEmail(ctx, profile.Email)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, got.ProfileID)

	_, err = repo.GetCredentialByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestWithTransactionRollsBack(t *testing.T) {
	repo := dbtest.NewRepository(t)
	ctx := context.Background()
	id := uuid.New()

	err := repo.WithTransaction(ctx, func(tx *db.Repository) error {
		if err := tx.CreateTeam(ctx, &models.Team{ID: id, Name: "Temp"}); err != nil {
			return err
		}
		return e.ErrConflict
	})
	assert.ErrorIs(t, err, e.ErrConflict)

	exists, err := repo.TeamExists(ctx, id)
	assert.NoError(t, err)
	assert.False(t, exists, "team should not survive a rolled back transaction")
}

func TestCheckHealth(t *testing.T) {
	repo := dbtest.NewRepository(t)

	health := repo.CheckHealth(context.Background())
	assert.True(t, health.Healthy())
	for _, table := range []string{"teams", "profiles", "equipment", "maintenance_requests", "credentials"} {
		assert.True(t, health.Tables[table], "table %s should answer", table)
	}
}
