// Package bookkeeping applies outbox events inside the worker transaction:
// deferred ledger and voucher updates left behind by checkout, and the
// order_placed hand-off to the configured event sink.
package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
	"github.com/freshfeet/storefront-backend/pkg/outbox/payloads"
	"github.com/freshfeet/storefront-backend/pkg/outbox/registry"
)

// Handler applies one resolved outbox event. Writes go through tx so they
// commit together with the row being marked published.
type Handler interface {
	Handle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, resolved *registry.ResolvedEvent) error
}

type customerLedger interface {
	Upsert(ctx context.Context, tx *gorm.DB, entry customers.Entry) (*models.Customer, error)
}

type usageTracker interface {
	Increment(ctx context.Context, tx *gorm.DB, code string) error
}

type deliveryGuard interface {
	Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, sink string, eventID uuid.UUID) error
}

// LedgerHandler replays customer_ledger_deferred events.
type LedgerHandler struct {
	ledger customerLedger
}

func NewLedgerHandler(ledger customerLedger) (*LedgerHandler, error) {
	if ledger == nil {
		return nil, errors.New("customer ledger required")
	}
	return &LedgerHandler{ledger: ledger}, nil
}

func (h *LedgerHandler) Handle(ctx context.Context, tx *gorm.DB, _ models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	payload, ok := resolved.Payload.(*payloads.CustomerLedgerDeferredEvent)
	if !ok {
		return registry.NewNonRetryableError(fmt.Errorf("unexpected payload %T", resolved.Payload))
	}
	_, err := h.ledger.Upsert(ctx, tx, customers.Entry{
		Phone:      payload.Phone,
		Name:       payload.Name,
		Email:      payload.Email,
		City:       payload.City,
		OrderTotal: payload.OrderTotal,
	})
	return err
}

// VoucherUsageHandler replays voucher_usage_deferred events. A voucher that
// was deleted or filled up since checkout goes straight to the DLQ.
type VoucherUsageHandler struct {
	tracker usageTracker
}

func NewVoucherUsageHandler(tracker usageTracker) (*VoucherUsageHandler, error) {
	if tracker == nil {
		return nil, errors.New("voucher tracker required")
	}
	return &VoucherUsageHandler{tracker: tracker}, nil
}

func (h *VoucherUsageHandler) Handle(ctx context.Context, tx *gorm.DB, _ models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	payload, ok := resolved.Payload.(*payloads.VoucherUsageDeferredEvent)
	if !ok {
		return registry.NewNonRetryableError(fmt.Errorf("unexpected payload %T", resolved.Payload))
	}
	err := h.tracker.Increment(ctx, tx, payload.VoucherCode)
	if vouchers.IsRedemptionRejected(err) {
		return registry.NewNonRetryableError(fmt.Errorf("voucher %s for order %s: %w", payload.VoucherCode, payload.OrderNumber, err))
	}
	return err
}

// OrderSinkHandler forwards order_placed events to the configured sink.
type OrderSinkHandler struct {
	sink  outbox.Sink
	guard deliveryGuard
}

// NewOrderSinkHandler wires the sink. guard may be nil, in which case a crash
// between delivery and commit can deliver the same event twice.
func NewOrderSinkHandler(sink outbox.Sink, guard deliveryGuard) (*OrderSinkHandler, error) {
	if sink == nil {
		return nil, errors.New("event sink required")
	}
	return &OrderSinkHandler{sink: sink, guard: guard}, nil
}

func (h *OrderSinkHandler) Handle(ctx context.Context, _ *gorm.DB, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	payload, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	if !ok {
		return registry.NewNonRetryableError(fmt.Errorf("unexpected payload %T", resolved.Payload))
	}
	if _, noop := h.sink.(outbox.NoopSink); noop {
		return nil
	}

	name := h.sink.Name()
	if h.guard != nil {
		claimed, err := h.guard.Claim(ctx, name, event.ID)
		if err != nil {
			return fmt.Errorf("claim delivery: %w", err)
		}
		if !claimed {
			return nil
		}
	}

	msg := outbox.SinkMessage{
		Key: payload.OrderNumber,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
		Data: event.Payload,
	}
	if err := h.sink.Publish(ctx, msg); err != nil {
		if h.guard != nil {
			if releaseErr := h.guard.Release(ctx, name, event.ID); releaseErr != nil {
				return errors.Join(err, fmt.Errorf("release delivery: %w", releaseErr))
			}
		}
		return err
	}
	return nil
}

// Dispatcher routes each event type to its handler.
type Dispatcher struct {
	handlers map[enums.OutboxEventType]Handler
}

// HandlersParams lists the handler for every event checkout emits.
type HandlersParams struct {
	OrderPlaced            Handler
	CustomerLedgerDeferred Handler
	VoucherUsageDeferred   Handler
}

func NewDispatcher(params HandlersParams) (*Dispatcher, error) {
	if params.OrderPlaced == nil {
		return nil, errors.New("order placed handler required")
	}
	if params.CustomerLedgerDeferred == nil {
		return nil, errors.New("customer ledger handler required")
	}
	if params.VoucherUsageDeferred == nil {
		return nil, errors.New("voucher usage handler required")
	}
	return &Dispatcher{handlers: map[enums.OutboxEventType]Handler{
		enums.EventOrderPlaced:            params.OrderPlaced,
		enums.EventCustomerLedgerDeferred: params.CustomerLedgerDeferred,
		enums.EventVoucherUsageDeferred:   params.VoucherUsageDeferred,
	}}, nil
}

// Dispatch runs the handler registered for the event type.
func (d *Dispatcher) Dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	handler, ok := d.handlers[event.EventType]
	if !ok {
		return registry.NewNonRetryableError(fmt.Errorf("no handler for %s", event.EventType))
	}
	return handler.Handle(ctx, tx, event, resolved)
}
