package events

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	e "github.com/gartstein/maintenance/internal/maintenance/errors"
	"github.com/gartstein/maintenance/internal/maintenance/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EquipmentScrapper is the single store write the reconciler repeats.
type EquipmentScrapper interface {
	MarkEquipmentScrapped(ctx context.Context, id uuid.UUID) error
}

// ScrapReconciler re-applies the equipment scrap write for every request
// that reached the scrap status. The write is idempotent, so replays and
// redeliveries are harmless.
type ScrapReconciler struct {
	store      EquipmentScrapper
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

func NewScrapReconciler(store EquipmentScrapper, logger *zap.Logger) *ScrapReconciler {
	return &ScrapReconciler{
		store:  store,
		logger: logger.Named("scrap_reconciler"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Handle is registered on a Consumer.
func (r *ScrapReconciler) Handle(ctx context.Context, event Event) error {
	if event.Type != RequestStatusChanged || event.Request == nil || event.Request.Status != models.StatusScrap {
		return nil
	}
	equipmentID := event.Request.EquipmentID

	op := func() error {
		err := r.store.MarkEquipmentScrapped(ctx, equipmentID)
		if errors.Is(err, e.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("Retrying equipment scrap",
			zap.Error(err),
			zap.String("equipment_id", equipmentID.String()),
			zap.Duration("wait", wait),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(r.newBackOff(), ctx), notify); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			r.logger.Warn("Scrapped request references missing equipment",
				zap.String("request_id", event.Request.ID.String()),
				zap.String("equipment_id", equipmentID.String()),
			)
			return nil
		}
		return err
	}
	return nil
}
