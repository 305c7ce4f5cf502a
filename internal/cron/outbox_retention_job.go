package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tobiumeh/vendora-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	dlqRetentionDays    = 90
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedEventPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the outbox cleanup job.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Outbox        publishedEventPruner
	DLQ           deadLetterPruner
	RetentionDays int
	DLQDays       int
}

// NewOutboxRetentionJob builds the job that reclaims published outbox events
// and stale dead letters.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.DLQ == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	dlqDays := params.DLQDays
	if dlqDays <= 0 {
		dlqDays = dlqRetentionDays
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		outbox:    params.Outbox,
		dlq:       params.DLQ,
		retention: retention,
		dlqDays:   dlqDays,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	outbox    publishedEventPruner
	dlq       deadLetterPruner
	retention int
	dlqDays   int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs []error

	var deleted int64
	cutoff := now.Add(-time.Duration(j.retention) * 24 * time.Hour)
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.outbox.DeletePublishedBefore(tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("outbox retention: %w", err))
	}

	var dlqDeleted int64
	dlqCutoff := now.Add(-time.Duration(j.dlqDays) * 24 * time.Hour)
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.dlq.DeleteFailedBefore(tx, dlqCutoff)
		if err != nil {
			return err
		}
		dlqDeleted = rows
		return nil
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("dlq retention: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"rows_deleted":   deleted,
		"dlq_days":       j.dlqDays,
		"dlq_deleted":    dlqDeleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return multierr.Combine(errs...)
}
