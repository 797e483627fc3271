package db

import (
	"context"
	"fmt"
	"time"

	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreateRequest(ctx context.Context, req *models.MaintenanceRequest) error {
	row := requestToRow(req)
	if err := r.db.WithContext(ctx).Omit("Equipment", "AssignedTo").Create(row).Error; err != nil {
		return mapError(err)
	}
	req.CreatedAt = row.CreatedAt
	return nil
}

// GetRequest loads a request with its equipment name and assignee name expanded.
func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (*models.MaintenanceRequest, error) {
	var row dbm.MaintenanceRequest
	err := r.expanded(ctx).First(&row, "maintenance_requests.id = ?", id).Error
	if err != nil {
		return nil, mapError(err)
	}
	return rowToRequest(&row), nil
}

// ListRequests returns the requests matching filter, newest first.
func (r *Repository) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.MaintenanceRequest, error) {
	var rows []dbm.MaintenanceRequest
	err := r.expanded(ctx).
		Scopes(applyFilter(filter)).
		Order("maintenance_requests.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, mapError(err)
	}
	list := make([]*models.MaintenanceRequest, 0, len(rows))
	for i := range rows {
		list = append(list, rowToRequest(&rows[i]))
	}
	return list, nil
}

// CountRequests counts matching rows without loading them.
func (r *Repository) CountRequests(ctx context.Context, filter models.RequestFilter) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&dbm.MaintenanceRequest{}).
		Scopes(applyFilter(filter)).
		Count(&count).Error
	return count, mapError(err)
}

// UpdateRequestStatus moves a request that is not yet repaired or scrapped.
// The update only matches non-terminal rows, so a concurrent transition that
// finished the request first surfaces as ErrInvalidState rather than being
// overwritten.
func (r *Repository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	result := r.db.WithContext(ctx).Model(&dbm.MaintenanceRequest{}).
		Where("id = ? AND status NOT IN ?", id, []string{string(models.StatusRepaired), string(models.StatusScrap)}).
		Update("status", string(status))
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var current dbm.MaintenanceRequest
	if err := r.db.WithContext(ctx).Select("status").First(&current, "id = ?", id).Error; err != nil {
		return mapError(err)
	}
	return fmt.Errorf("%w: request %s is already %s", e.ErrInvalidState, id, current.Status)
}

// AssignRequest sets or, with a nil profile, clears the assignee.
func (r *Repository) AssignRequest(ctx context.Context, id uuid.UUID, profileID *uuid.UUID) error {
	return r.updateRequest(ctx, id, "assigned_to_id", profileID)
}

func (r *Repository) updateRequest(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(&dbm.MaintenanceRequest{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

func (r *Repository) expanded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Joins("Equipment").
		Joins("AssignedTo")
}

func applyFilter(f models.RequestFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.EquipmentID != nil {
			db = db.Where("maintenance_requests.equipment_id = ?", *f.EquipmentID)
		}
		if f.RequestType != "" {
			db = db.Where("maintenance_requests.request_type = ?", string(f.RequestType))
		}
		if len(f.Statuses) > 0 {
			statuses := make([]string, 0, len(f.Statuses))
			for _, s := range f.Statuses {
				statuses = append(statuses, string(s))
			}
			db = db.Where("maintenance_requests.status IN ?", statuses)
		}
		// Dates bind as YYYY-MM-DD so the session time zone cannot shift the
		// boundary; the upper bound is the exclusive following day.
		if f.ScheduledFrom != nil {
			db = db.Where("maintenance_requests.scheduled_date >= ?", f.ScheduledFrom.Format(time.DateOnly))
		}
		if f.ScheduledTo != nil {
			db = db.Where("maintenance_requests.scheduled_date < ?", f.ScheduledTo.AddDate(0, 0, 1).Format(time.DateOnly))
		}
		return db
	}
}
