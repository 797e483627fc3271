package controller

import (
	"context"
	"iter"
	"strings"
	"time"

	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TeamStore interface {
	ProfileReader
	CreateTeam(ctx context.Context, team *models.Team) error
	ListTeams(ctx context.Context) ([]*models.Team, error)
	TeamExists(ctx context.Context, id uuid.UUID) (bool, error)
	AssignProfile(ctx context.Context, a *models.Assignment) (*models.Profile, error)
	UnassignedProfiles(ctx context.Context) iter.Seq2[models.Profile, error]
}

// TeamService is the team directory.
type TeamService struct {
	store    TeamStore
	producer EventProducer
	logger   *zap.Logger
	opts     options
}

func NewTeamService(store TeamStore, producer EventProducer, logger *zap.Logger, opts ...Option) *TeamService {
	return &TeamService{
		store:    store,
		producer: producer,
		logger:   logger.Named("team_service"),
		opts:     buildOptions(opts),
	}
}

// CreateTeam adds a team. The caller must be able to manage teams.
func (s *TeamService) CreateTeam(ctx context.Context, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, e.Invalid("name", "is required")
	}
	if _, err := requireTeamManager(ctx, s.store); err != nil {
		return nil, err
	}
	defer s.opts.metrics.TrackDBOperation("create_team")(time.Now())

	team := &models.Team{ID: uuid.New(), Name: name, Members: []models.Profile{}}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, err
	}

	s.logger.Info("Team created", zap.String("team_id", team.ID.String()), zap.String("name", name))
	produce(s.producer, s.logger, events.Event{
		Type:       events.TeamCreated,
		EntityID:   team.ID,
		OccurredAt: s.opts.now().UTC(),
		Team:       team,
	})
	return team, nil
}

// AssignMember moves an unassigned profile into a team. Profiles that
// already belong to a team are rejected with ErrConflict.
func (s *TeamService) AssignMember(ctx context.Context, a models.Assignment) (*models.Profile, error) {
	if a.Phone != nil {
		phone := strings.TrimSpace(*a.Phone)
		if phone == "" {
			a.Phone = nil
		} else {
			a.Phone = &phone
		}
	}
	if err := validateInput(a); err != nil {
		return nil, err
	}
	if _, err := requireTeamManager(ctx, s.store); err != nil {
		return nil, err
	}
	defer s.opts.metrics.TrackDBOperation("assign_member")(time.Now())

	exists, err := s.store.TeamExists(ctx, a.TeamID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, e.Invalid("team_id", "does not reference a team")
	}

	profile, err := s.store.AssignProfile(ctx, &a)
	if err != nil {
		return nil, err
	}

	produce(s.producer, s.logger, events.Event{
		Type:       events.MemberAssigned,
		EntityID:   profile.ID,
		OccurredAt: s.opts.now().UTC(),
		Profile:    profile,
	})
	return profile, nil
}

// ListUnassigned yields the profiles without a team. Every range over the
// returned sequence queries the store again.
func (s *TeamService) ListUnassigned(ctx context.Context) iter.Seq2[models.Profile, error] {
	return s.store.UnassignedProfiles(ctx)
}

// ListTeams returns the teams ordered by name, members included.
func (s *TeamService) ListTeams(ctx context.Context) ([]*models.Team, error) {
	defer s.opts.metrics.TrackDBOperation("list_teams")(time.Now())
	return s.store.ListTeams(ctx)
}
