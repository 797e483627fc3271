package controller

import (
	"context"
	"errors"
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

// EquipmentStore defines the storage the equipment registry needs.
type EquipmentStore interface {
	ProfileReader
	CreateEquipment(ctx context.Context, equipment *models.Equipment) error
	GetEquipment(ctx context.Context, id uuid.UUID) (*models.Equipment, error)
	ListEquipment(ctx context.Context) ([]*models.Equipment, error)
	SerialNumberExists(ctx context.Context, serial string) (bool, error)
	MarkEquipmentScrapped(ctx context.Context, id uuid.UUID) error
	TeamExists(ctx context.Context, id uuid.UUID) (bool, error)
	CountRequests(ctx context.Context, filter models.RequestFilter) (int64, error)
}

// EquipmentService is the equipment registry.
type EquipmentService struct {
	store    EquipmentStore
	producer EventProducer
	logger   *zap.Logger
	opts     options
}

func NewEquipmentService(store EquipmentStore, producer EventProducer, logger *zap.Logger, opts ...Option) *EquipmentService {
	return &EquipmentService{
		store:    store,
		producer: producer,
		logger:   logger.Named("equipment_service"),
		opts:     buildOptions(opts),
	}
}

// Create registers equipment owned by an existing team. Only team managers
// may register equipment.
func (s *EquipmentService) Create(ctx context.Context, in models.EquipmentInput) (*models.Equipment, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := requireTeamManager(ctx, s.store); err != nil {
		return nil, err
	}
	defer s.opts.metrics.TrackDBOperation("create_equipment")(time.Now())

	exists, err := s.store.TeamExists(ctx, in.MaintenanceTeamID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, e.Invalid("maintenance_team_id", "does not reference a team")
	}

	taken, err := s.store.SerialNumberExists(ctx, in.SerialNumber)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: serial number %q already registered", e.ErrConflict, in.SerialNumber)
	}

	equipment := &models.Equipment{
		ID:                uuid.New(),
		Name:              in.Name,
		SerialNumber:      in.SerialNumber,
		Category:          in.Category,
		Department:        in.Department,
		Location:          in.Location,
		PurchaseDate:      calendarDay(in.PurchaseDate),
		WarrantyEndDate:   calendarDay(in.WarrantyEndDate),
		MaintenanceTeamID: in.MaintenanceTeamID,
	}
	if err := s.store.CreateEquipment(ctx, equipment); err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, s.opts.cache, s.logger, cache.EquipmentPrefix)
	produce(s.producer, s.logger, events.Event{
		Type:       events.EquipmentCreated,
		EntityID:   equipment.ID,
		OccurredAt: s.opts.now().UTC(),
		Equipment:  equipment,
	})
	return equipment, nil
}

func (s *EquipmentService) Get(ctx context.Context, id uuid.UUID) (*models.Equipment, error) {
	return s.store.GetEquipment(ctx, id)
}

// List returns every piece of equipment ordered by name.
func (s *EquipmentService) List(ctx context.Context) ([]*models.Equipment, error) {
	return cache.Fetch(ctx, s.opts.cache, s.logger, cache.Key(cache.EquipmentPrefix, "list"), s.opts.cacheTTL,
		func(ctx context.Context) ([]*models.Equipment, error) {
			return s.store.ListEquipment(ctx)
		})
}

// OpenMaintenanceCount counts the equipment's requests that are still new or in progress.
func (s *EquipmentService) OpenMaintenanceCount(ctx context.Context, equipmentID uuid.UUID) (int64, error) {
	defer s.opts.metrics.TrackDBOperation("count_open_requests")(time.Now())
	return s.store.CountRequests(ctx, models.RequestFilter{
		EquipmentID: &equipmentID,
		Statuses:    models.OpenStatuses,
	})
}

// MarkEquipmentScrapped retires the equipment for good. It is what the
// scrap reconciler replays, so it must stay idempotent.
func (s *EquipmentService) MarkEquipmentScrapped(ctx context.Context, id uuid.UUID) error {
	if err := s.store.MarkEquipmentScrapped(ctx, id); err != nil {
		return err
	}
	cache.Invalidate(ctx, s.opts.cache, s.logger, cache.EquipmentPrefix)
	return nil
}

// calendarDay drops the time of day, keeping the date as seen in t's location.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isNotFound(err error) bool {
	return errors.Is(err, e.ErrNotFound)
}
