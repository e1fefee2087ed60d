package bookkeeping

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	"github.com/freshfeet/storefront-backend/pkg/db/dbtest"
	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
	"github.com/freshfeet/storefront-backend/pkg/outbox/payloads"
	"github.com/freshfeet/storefront-backend/pkg/outbox/registry"
)

type recordingSink struct {
	name     string
	messages []outbox.SinkMessage
	err      error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, msg outbox.SinkMessage) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *recordingSink) Close() error { return nil }

type memoryGuard struct {
	claimed  map[string]bool
	released int
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{claimed: map[string]bool{}}
}

func (g *memoryGuard) Claim(_ context.Context, sink string, id uuid.UUID) (bool, error) {
	key := sink + ":" + id.String()
	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, sink string, id uuid.UUID) error {
	delete(g.claimed, sink+":"+id.String())
	g.released++
	return nil
}

type stubTracker struct {
	err   error
	codes []string
}

func (s *stubTracker) Increment(_ context.Context, _ *gorm.DB, code string) error {
	s.codes = append(s.codes, code)
	return s.err
}

func orderPlaced(t *testing.T) (models.OutboxEvent, *registry.ResolvedEvent) {
	t.Helper()
	orderID := uuid.New()
	data, err := json.Marshal(payloads.OrderPlacedEvent{OrderID: orderID, OrderNumber: "FF-482913"})
	require.NoError(t, err)
	envelope := outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now().UTC(), Data: data}
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       raw,
	}
	resolved, err := registry.NewEventRegistry().Resolve(event)
	require.NoError(t, err)
	return event, resolved
}

func TestOrderSinkHandlerPublishesOnce(t *testing.T) {
	sink := &recordingSink{name: "kafka"}
	guard := newMemoryGuard()
	handler, err := NewOrderSinkHandler(sink, guard)
	require.NoError(t, err)

	event, resolved := orderPlaced(t)
	require.NoError(t, handler.Handle(context.Background(), nil, event, resolved))
	require.NoError(t, handler.Handle(context.Background(), nil, event, resolved))

	require.Len(t, sink.messages, 1)
	msg := sink.messages[0]
	assert.Equal(t, "FF-482913", msg.Key)
	assert.Equal(t, string(enums.EventOrderPlaced), msg.Attributes["event_type"])
	assert.Equal(t, resolved.Envelope.EventID, msg.Attributes["event_id"])
	assert.JSONEq(t, string(event.Payload), string(msg.Data))
}

func TestOrderSinkHandlerReleasesClaimOnFailure(t *testing.T) {
	sink := &recordingSink{name: "pubsub", err: errors.New("unavailable")}
	guard := newMemoryGuard()
	handler, err := NewOrderSinkHandler(sink, guard)
	require.NoError(t, err)

	event, resolved := orderPlaced(t)
	err = handler.Handle(context.Background(), nil, event, resolved)
	require.Error(t, err)
	assert.Equal(t, 1, guard.released)

	sink.err = nil
	require.NoError(t, handler.Handle(context.Background(), nil, event, resolved))
	assert.Len(t, sink.messages, 1)
}

func TestOrderSinkHandlerNoopSinkAcks(t *testing.T) {
	guard := newMemoryGuard()
	handler, err := NewOrderSinkHandler(outbox.NoopSink{}, guard)
	require.NoError(t, err)

	event, resolved := orderPlaced(t)
	require.NoError(t, handler.Handle(context.Background(), nil, event, resolved))
	assert.Empty(t, guard.claimed)
}

func TestVoucherUsageHandlerRejectedIsNonRetryable(t *testing.T) {
	tracker := &stubTracker{err: vouchers.ErrLimitReached}
	handler, err := NewVoucherUsageHandler(tracker)
	require.NoError(t, err)

	resolved := &registry.ResolvedEvent{Payload: &payloads.VoucherUsageDeferredEvent{VoucherCode: "SAVE10", OrderNumber: "FF-100200"}}
	err = handler.Handle(context.Background(), nil, models.OutboxEvent{}, resolved)

	var nonRetry registry.NonRetryableError
	require.ErrorAs(t, err, &nonRetry)
	assert.ErrorIs(t, err, vouchers.ErrLimitReached)
	assert.Equal(t, []string{"SAVE10"}, tracker.codes)
}

func TestVoucherUsageHandlerTransientErrorRetries(t *testing.T) {
	handler, err := NewVoucherUsageHandler(&stubTracker{err: errors.New("connection reset")})
	require.NoError(t, err)

	resolved := &registry.ResolvedEvent{Payload: &payloads.VoucherUsageDeferredEvent{VoucherCode: "SAVE10"}}
	err = handler.Handle(context.Background(), nil, models.OutboxEvent{}, resolved)

	var nonRetry registry.NonRetryableError
	require.Error(t, err)
	assert.False(t, errors.As(err, &nonRetry))
}

func TestLedgerHandlerAppliesDeferredEntry(t *testing.T) {
	db := dbtest.Open(t)
	ledger, err := customers.NewLedger(customers.NewRepository(db))
	require.NoError(t, err)
	handler, err := NewLedgerHandler(ledger)
	require.NoError(t, err)

	resolved := &registry.ResolvedEvent{Payload: &payloads.CustomerLedgerDeferredEvent{
		Phone:      "03001234567",
		Name:       "Ayesha",
		City:       "Lahore",
		OrderTotal: decimal.RequireFromString("4700.00"),
	}}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return handler.Handle(context.Background(), tx, models.OutboxEvent{}, resolved)
	}))

	customer, err := customers.NewRepository(db).FindByPhone(context.Background(), "03001234567")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, 1, customer.TotalOrders)
	assert.True(t, customer.TotalSpent.Equal(decimal.RequireFromString("4700")))
}

func TestDispatcherUnknownTypeIsNonRetryable(t *testing.T) {
	sink, err := NewOrderSinkHandler(outbox.NoopSink{}, nil)
	require.NoError(t, err)
	voucher, err := NewVoucherUsageHandler(&stubTracker{})
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(HandlersParams{
		OrderPlaced:            sink,
		CustomerLedgerDeferred: voucher,
		VoucherUsageDeferred:   voucher,
	})
	require.NoError(t, err)

	err = dispatcher.Dispatch(context.Background(), nil, models.OutboxEvent{EventType: "order_refunded"}, &registry.ResolvedEvent{})
	var nonRetry registry.NonRetryableError
	require.ErrorAs(t, err, &nonRetry)

	_, err = NewDispatcher(HandlersParams{OrderPlaced: sink})
	require.Error(t, err)
}
