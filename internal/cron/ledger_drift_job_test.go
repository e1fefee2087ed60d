package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/pkg/logger"
)

type stubDriftFinder struct {
	drift []customers.Drift
	err   error
	limit int
}

func (s *stubDriftFinder) FindDrift(_ context.Context, limit int) ([]customers.Drift, error) {
	s.limit = limit
	return s.drift, s.err
}

type recordingGauge struct {
	values []int
}

func (r *recordingGauge) SetDriftPhones(n int) {
	r.values = append(r.values, n)
}

func newLedgerDriftJob(t *testing.T, finder driftFinder, gauge driftGauge, batch int) Job {
	t.Helper()
	job, err := NewLedgerDriftJob(LedgerDriftJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Finder:    finder,
		Metrics:   gauge,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("NewLedgerDriftJob: %v", err)
	}
	return job
}

func TestLedgerDriftJobExportsDriftCount(t *testing.T) {
	finder := &stubDriftFinder{drift: []customers.Drift{
		{Phone: "03001234567", LedgerOrders: 1, ActualOrders: 2, LedgerSpent: decimal.NewFromInt(700), ActualSpent: decimal.NewFromInt(1000)},
		{Phone: "03007654321", LedgerOrders: 0, ActualOrders: 1, LedgerSpent: decimal.Zero, ActualSpent: decimal.NewFromInt(900)},
	}}
	gauge := &recordingGauge{}
	job := newLedgerDriftJob(t, finder, gauge, 0)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if finder.limit != defaultDriftBatchSize {
		t.Fatalf("expected default batch %d, got %d", defaultDriftBatchSize, finder.limit)
	}
	if len(gauge.values) != 1 || gauge.values[0] != 2 {
		t.Fatalf("expected gauge set to 2, got %v", gauge.values)
	}
	if job.Name() != "ledger-drift" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestLedgerDriftJobResetsGaugeWhenClean(t *testing.T) {
	gauge := &recordingGauge{}
	job := newLedgerDriftJob(t, &stubDriftFinder{}, gauge, 10)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gauge.values) != 1 || gauge.values[0] != 0 {
		t.Fatalf("expected gauge reset to 0, got %v", gauge.values)
	}
}

func TestLedgerDriftJobPropagatesScanError(t *testing.T) {
	gauge := &recordingGauge{}
	job := newLedgerDriftJob(t, &stubDriftFinder{err: errors.New("timeout")}, gauge, 10)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(gauge.values) != 0 {
		t.Fatalf("gauge must keep its last value on failure, got %v", gauge.values)
	}
}

func TestNewLedgerDriftJobRequiresFinder(t *testing.T) {
	_, err := NewLedgerDriftJob(LedgerDriftJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err == nil {
		t.Fatal("expected missing finder to fail")
	}
}
