package cron

import (
	"context"
	"fmt"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/pkg/logger"
)

const defaultDriftBatchSize = 500

type driftFinder interface {
	FindDrift(ctx context.Context, limit int) ([]customers.Drift, error)
}

type driftGauge interface {
	SetDriftPhones(n int)
}

// LedgerDriftJobParams configure the customer ledger reconciliation scan.
type LedgerDriftJobParams struct {
	Logger    *logger.Logger
	Finder    driftFinder
	Metrics   driftGauge
	BatchSize int
}

// NewLedgerDriftJob compares customer counters with the orders table. It only
// reports; counters are corrected by hand.
func NewLedgerDriftJob(params LedgerDriftJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Finder == nil {
		return nil, fmt.Errorf("drift finder required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultDriftBatchSize
	}
	return &ledgerDriftJob{
		logg:    params.Logger,
		finder:  params.Finder,
		metrics: params.Metrics,
		batch:   batch,
	}, nil
}

type ledgerDriftJob struct {
	logg    *logger.Logger
	finder  driftFinder
	metrics driftGauge
	batch   int
}

func (j *ledgerDriftJob) Name() string { return "ledger-drift" }

func (j *ledgerDriftJob) Run(ctx context.Context) error {
	drift, err := j.finder.FindDrift(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("scan ledger drift: %w", err)
	}
	if j.metrics != nil {
		j.metrics.SetDriftPhones(len(drift))
	}

	for _, d := range drift {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"phone":          d.Phone,
			"ledger_orders":  d.LedgerOrders,
			"actual_orders":  d.ActualOrders,
			"ledger_spent":   d.LedgerSpent.StringFixed(2),
			"actual_spent":   d.ActualSpent.StringFixed(2),
			"missing_orders": d.MissingOrders(),
		})
		j.logg.Warn(logCtx, "customer ledger drift")
	}

	summary := j.logg.WithFields(ctx, map[string]any{
		"drift_phones": len(drift),
		"batch_size":   j.batch,
	})
	if len(drift) >= j.batch {
		j.logg.Warn(summary, "ledger drift scan hit batch size; more phones may drift")
		return nil
	}
	j.logg.Info(summary, "ledger drift scan complete")
	return nil
}
