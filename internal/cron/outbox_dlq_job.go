package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/logger"
)

const defaultDLQReportBatchSize = 200

type dlqLister interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

type dlqGauge interface {
	SetDLQEntries(n int)
}

type OutboxDLQJobParams struct {
	Logger     *logger.Logger
	Repository dlqLister
	Metrics    dlqGauge
	BatchSize  int
}

// NewOutboxDLQJob surfaces dead-lettered bookkeeping events, such as voucher
// increments rejected after the order committed, so they can be reconciled by
// hand. Rows are never modified.
func NewOutboxDLQJob(params OutboxDLQJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDLQReportBatchSize
	}
	return &outboxDLQJob{
		logg:    params.Logger,
		repo:    params.Repository,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type outboxDLQJob struct {
	logg    *logger.Logger
	repo    dlqLister
	metrics dlqGauge
	batch   int
}

func (j *outboxDLQJob) Name() string { return "outbox-dlq-report" }

func (j *outboxDLQJob) Run(ctx context.Context) error {
	rows, err := j.repo.List(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list outbox dlq: %w", err)
	}
	if j.metrics != nil {
		j.metrics.SetDLQEntries(len(rows))
	}

	byType := map[string]int{}
	for _, row := range rows {
		byType[string(row.EventType)]++
		fields := map[string]any{
			"event_id":       row.EventID.String(),
			"event_type":     row.EventType,
			"aggregate_type": row.AggregateType,
			"aggregate_id":   row.AggregateID.String(),
			"error_reason":   row.ErrorReason,
			"attempt_count":  row.AttemptCount,
			"failed_at":      row.FailedAt.UTC().Format(time.RFC3339),
		}
		if row.ErrorMessage != nil {
			fields["error"] = *row.ErrorMessage
		}
		j.logg.Warn(j.logg.WithFields(ctx, fields), "outbox event awaiting reconciliation")
	}

	summary := j.logg.WithFields(ctx, map[string]any{
		"dlq_entries": len(rows),
		"by_type":     byType,
		"batch_size":  j.batch,
	})
	if len(rows) >= j.batch {
		j.logg.Warn(summary, "dlq report hit batch size; older entries not listed")
		return nil
	}
	j.logg.Info(summary, "dlq report complete")
	return nil
}
