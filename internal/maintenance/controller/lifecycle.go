package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/cache"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/events"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const preventiveUnscheduled = "Preventive maintenance requires a scheduled date"

type RequestStore interface {
	ProfileReader
	CreateRequest(ctx context.Context, req *models.MaintenanceRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.MaintenanceRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status models.Status) error
	AssignRequest(ctx context.Context, id uuid.UUID, profileID *uuid.UUID) error
	GetEquipment(ctx context.Context, id uuid.UUID) (*models.Equipment, error)
	MarkEquipmentScrapped(ctx context.Context, id uuid.UUID) error
	TeamExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// RequestService drives maintenance requests through their lifecycle.
type RequestService struct {
	store    RequestStore
	producer EventProducer
	logger   *zap.Logger
	opts     options
}

func NewRequestService(store RequestStore, producer EventProducer, logger *zap.Logger, opts ...Option) *RequestService {
	return &RequestService{
		store:    store,
		producer: producer,
		logger:   logger.Named("request_service"),
		opts:     buildOptions(opts),
	}
}

// Create opens a request in status new. The team defaults to the
// equipment's maintenance team and the creator to the calling profile.
func (s *RequestService) Create(ctx context.Context, in models.RequestInput) (*models.MaintenanceRequest, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if in.RequestType == "" {
		in.RequestType = models.Corrective
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.RequestType == models.Preventive && in.ScheduledDate == nil {
		return nil, &e.ValidationError{
			Message:    preventiveUnscheduled,
			Violations: []e.FieldViolation{{Field: "scheduled_date", Description: "is required for preventive maintenance"}},
		}
	}
	defer s.opts.metrics.TrackDBOperation("create_request")(time.Now())

	creator, err := s.resolveCreator(ctx, in.CreatedBy)
	if err != nil {
		return nil, err
	}

	equipment, err := s.store.GetEquipment(ctx, in.EquipmentID)
	if err != nil {
		if isNotFound(err) {
			return nil, e.Invalid("equipment_id", "does not reference equipment")
		}
		return nil, err
	}

	if in.TeamID == nil {
		in.TeamID = SuggestTeam(in, equipment)
	}
	if in.TeamID == nil {
		return nil, e.Invalid("team_id", "is required")
	}
	exists, err := s.store.TeamExists(ctx, *in.TeamID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, e.Invalid("team_id", "does not reference a team")
	}

	var assignee *models.Profile
	if in.AssignedToID != nil {
		assignee, err = s.store.GetProfile(ctx, *in.AssignedToID)
		if err != nil {
			if isNotFound(err) {
				return nil, e.Invalid("assigned_to_id", "does not reference a profile")
			}
			return nil, err
		}
	}

	req := &models.MaintenanceRequest{
		ID:            uuid.New(),
		Subject:       in.Subject,
		EquipmentID:   equipment.ID,
		TeamID:        *in.TeamID,
		AssignedToID:  in.AssignedToID,
		RequestType:   in.RequestType,
		DurationHours: in.DurationHours,
		Status:        models.StatusNew,
		Priority:      in.Priority,
		CreatedBy:     creator.ID,
		EquipmentName: equipment.Name,
	}
	if in.ScheduledDate != nil {
		day := calendarDay(*in.ScheduledDate)
		req.ScheduledDate = &day
	}
	if assignee != nil {
		req.AssigneeName = assignee.FullName
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.opts.metrics.RecordRequestCreated(string(req.RequestType))
	s.afterWrite(ctx, events.RequestCreated, req, "")
	return req, nil
}

func (s *RequestService) resolveCreator(ctx context.Context, createdBy *uuid.UUID) (*models.Profile, error) {
	if createdBy == nil {
		profile, err := callerProfile(ctx, s.store)
		if err != nil {
			return nil, e.Invalid("created_by", "is required")
		}
		return profile, nil
	}
	profile, err := s.store.GetProfile(ctx, *createdBy)
	if err != nil {
		if isNotFound(err) {
			return nil, e.Invalid("created_by", "does not reference a profile")
		}
		return nil, err
	}
	return profile, nil
}

// Get returns the request with its equipment and assignee names.
func (s *RequestService) Get(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	defer s.opts.metrics.TrackDBOperation("get_request")(time.Now())
	return s.store.GetRequest(ctx, id)
}

// Transition moves a request to status to. Any status may follow new or
// in_progress; repaired and scrap are final. Moving to scrap also retires
// the equipment. That second write is best effort: a failure is logged and
// counted, the status change stands and the scrap reconciler repairs it
// from the status event.
func (s *RequestService) Transition(ctx context.Context, id uuid.UUID, to models.Status) (*models.MaintenanceRequest, error) {
	if !to.Valid() {
		return nil, e.Invalid("status", "must be one of: new, in_progress, repaired, scrap")
	}
	defer s.opts.metrics.TrackDBOperation("transition_request")(time.Now())

	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: request %s does not exist", e.ErrInvalidState, id)
		}
		return nil, err
	}

	from := req.Status
	if from.Terminal() {
		if from != to {
			return nil, fmt.Errorf("%w: request %s is already %s", e.ErrInvalidState, id, from)
		}
		// Replaying the final status only repeats the cascade.
		if to == models.StatusScrap {
			s.scrapEquipment(ctx, req)
		}
		return req, nil
	}

	if err := s.store.UpdateRequestStatus(ctx, id, to); err != nil {
		return nil, err
	}
	req.Status = to
	s.opts.metrics.RecordTransition(string(from), string(to))
	s.logger.Info("Request transitioned",
		zap.String("request_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	if to == models.StatusScrap {
		s.scrapEquipment(ctx, req)
	}
	s.afterWrite(ctx, events.RequestStatusChanged, req, from)
	return req, nil
}

func (s *RequestService) scrapEquipment(ctx context.Context, req *models.MaintenanceRequest) {
	if err := s.store.MarkEquipmentScrapped(ctx, req.EquipmentID); err != nil {
		s.opts.metrics.RecordScrapCascadeFailure()
		s.logger.Error("Failed to scrap equipment",
			zap.Error(err),
			zap.String("request_id", req.ID.String()),
			zap.String("equipment_id", req.EquipmentID.String()),
		)
		return
	}
	cache.Invalidate(ctx, s.opts.cache, s.logger, cache.EquipmentPrefix)
	produce(s.producer, s.logger, events.Event{
		Type:       events.EquipmentScrapped,
		EntityID:   req.EquipmentID,
		OccurredAt: s.opts.now().UTC(),
		Request:    req,
	})
}

// Assign sets the technician working on a request; a nil profileID clears it.
func (s *RequestService) Assign(ctx context.Context, id uuid.UUID, profileID *uuid.UUID) (*models.MaintenanceRequest, error) {
	defer s.opts.metrics.TrackDBOperation("assign_request")(time.Now())
	if profileID != nil {
		if _, err := s.store.GetProfile(ctx, *profileID); err != nil {
			if isNotFound(err) {
				return nil, e.Invalid("assigned_to_id", "does not reference a profile")
			}
			return nil, err
		}
	}

	if err := s.store.AssignRequest(ctx, id, profileID); err != nil {
		return nil, err
	}
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, events.RequestAssigned, req, "")
	return req, nil
}

// List returns matching requests, newest first.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]*models.MaintenanceRequest, error) {
	return cache.Fetch(ctx, s.opts.cache, s.logger, filterKey(filter), s.opts.cacheTTL,
		func(ctx context.Context) ([]*models.MaintenanceRequest, error) {
			defer s.opts.metrics.TrackDBOperation("list_requests")(time.Now())
			return s.store.ListRequests(ctx, filter)
		})
}

// Board lays out requests as kanban columns, one per status, each card
// flagged overdue as of now.
func (s *RequestService) Board(ctx context.Context, equipmentID *uuid.UUID) (*Board, error) {
	requests, err := s.List(ctx, models.RequestFilter{EquipmentID: equipmentID})
	if err != nil {
		return nil, err
	}
	return BuildBoard(requests, s.opts.now()), nil
}

// Calendar returns the preventive requests scheduled in the month containing
// month, grouped by day.
func (s *RequestService) Calendar(ctx context.Context, month time.Time) (*Calendar, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	requests, err := s.List(ctx, models.RequestFilter{
		RequestType:   models.Preventive,
		ScheduledFrom: &start,
		ScheduledTo:   &end,
	})
	if err != nil {
		return nil, err
	}
	return &Calendar{Month: start, Days: ByMonth(requests, start, end)}, nil
}

func (s *RequestService) afterWrite(ctx context.Context, eventType events.EventType, req *models.MaintenanceRequest, previous models.Status) {
	cache.Invalidate(ctx, s.opts.cache, s.logger, cache.RequestsPrefix, cache.EquipmentPrefix)
	produce(s.producer, s.logger, events.Event{
		Type:           eventType,
		EntityID:       req.ID,
		OccurredAt:     s.opts.now().UTC(),
		Request:        req,
		PreviousStatus: previous,
	})
}

// IsOverdue reports whether req is scheduled before now and not yet repaired.
func IsOverdue(req *models.MaintenanceRequest, now time.Time) bool {
	return req.ScheduledDate != nil &&
		req.Status != models.StatusRepaired &&
		req.ScheduledDate.Before(now)
}

// SuggestTeam returns the team a draft should carry once its equipment is
// set to equipment: the equipment's maintenance team when it has one,
// otherwise whatever the draft already carries. It is a suggestion; the
// caller may still override it before submitting.
func SuggestTeam(draft models.RequestInput, equipment *models.Equipment) *uuid.UUID {
	if equipment == nil || equipment.MaintenanceTeamID == uuid.Nil {
		return draft.TeamID
	}
	team := equipment.MaintenanceTeamID
	return &team
}

func filterKey(f models.RequestFilter) string {
	parts := []string{"list"}
	if f.EquipmentID != nil {
		parts = append(parts, "equipment="+f.EquipmentID.String())
	}
	if f.RequestType != "" {
		parts = append(parts, "type="+string(f.RequestType))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		parts = append(parts, "status="+strings.Join(statuses, ","))
	}
	if f.ScheduledFrom != nil {
		parts = append(parts, "from="+f.ScheduledFrom.Format(time.DateOnly))
	}
	if f.ScheduledTo != nil {
		parts = append(parts, "to="+f.ScheduledTo.Format(time.DateOnly))
	}
	return cache.Key(cache.RequestsPrefix, parts...)
}
