package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tobiumeh/vendora-backend/pkg/db/models"
	pkgerrors "github.com/tobiumeh/vendora-backend/pkg/errors"
	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

const expirySweepBatchSize = 100

type lapsedHoldReader interface {
	FindLapsedAvailabilityHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type holdExpirer interface {
	ExpireLapsedHold(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// AvailabilityExpiryJobParams configure the lapsed-hold sweep.
type AvailabilityExpiryJobParams struct {
	Logger       *logger.Logger
	Orders       lapsedHoldReader
	Availability holdExpirer
	BatchSize    int
}

// NewAvailabilityExpiryJob builds the job that cancels availability holds
// whose wait window passed with no buyer response.
func NewAvailabilityExpiryJob(params AvailabilityExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Availability == nil {
		return nil, fmt.Errorf("availability service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = expirySweepBatchSize
	}
	return &availabilityExpiryJob{
		logg:         params.Logger,
		orders:       params.Orders,
		availability: params.Availability,
		batch:        batch,
		now:          time.Now,
	}, nil
}

type availabilityExpiryJob struct {
	logg         *logger.Logger
	orders       lapsedHoldReader
	availability holdExpirer
	batch        int
	now          func() time.Time
}

func (j *availabilityExpiryJob) Name() string { return "availability-expiry" }

// Run expires one batch of lapsed holds per cycle. Each hold resolves in its
// own transaction, so one poisoned order cannot block the rest of the sweep.
func (j *availabilityExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	holds, err := j.orders.FindLapsedAvailabilityHolds(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query lapsed holds: %w", err)
	}

	var errs []error
	expired := 0
	for _, order := range holds {
		if _, err := j.availability.ExpireLapsedHold(ctx, order.ID); err != nil {
			// races with a buyer response lose cleanly; anything else is reported
			if isExpirySkip(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("expire hold %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(holds),
		"expired":    expired,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "availability expiry sweep complete")
	return multierr.Combine(errs...)
}

func isExpirySkip(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeStateConflict, pkgerrors.CodeNotFound:
		return true
	default:
		return false
	}
}
