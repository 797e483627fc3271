package db

import (
	"context"

	dbm "github.com/gartstein/maintenance/internal/maintenance/db/models"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
)

func (r *Repository) CreateEquipment(ctx context.Context, equipment *models.Equipment) error {
	return mapError(r.db.WithContext(ctx).Create(equipmentToRow(equipment)).Error)
}

func (r *Repository) GetEquipment(ctx context.Context, id uuid.UUID) (*models.Equipment, error) {
	var row dbm.Equipment
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return rowToEquipment(&row), nil
}

// ListEquipment returns all equipment ordered by name.
func (r *Repository) ListEquipment(ctx context.Context) ([]*models.Equipment, error) {
	var rows []dbm.Equipment
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	list := make([]*models.Equipment, 0, len(rows))
	for i := range rows {
		list = append(list, rowToEquipment(&rows[i]))
	}
	return list, nil
}

func (r *Repository) SerialNumberExists(ctx context.Context, serial string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&dbm.Equipment{}).
		Where("serial_number = ?", serial).
		Limit(1).
		Count(&count)
	return count > 0, mapError(result.Error)
}

// MarkEquipmentScrapped sets is_scrapped. There is deliberately no way to clear it.
func (r *Repository) MarkEquipmentScrapped(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&dbm.Equipment{}).
		Where("id = ?", id).
		Update("is_scrapped", true)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return mapError(r.db.WithContext(ctx).First(&dbm.Equipment{}, "id = ?", id).Error)
	}
	return nil
}
