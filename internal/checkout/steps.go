package checkout

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
	"github.com/freshfeet/storefront-backend/pkg/outbox/payloads"
)

const actorService = "checkout"

// step is one unit of the persistence transaction. Fatal steps abort the
// whole transaction. Non-fatal steps run inside a savepoint and, on failure,
// hand their work to the retry queue through deferTo.
type step struct {
	stage   enums.CheckoutStage
	run     func(ctx context.Context, tx *gorm.DB) error
	fatal   func(err error) bool
	deferTo func(ctx context.Context, tx *gorm.DB, cause error) error
}

type stepError struct {
	stage enums.CheckoutStage
	err   error
}

func (e *stepError) Error() string {
	return fmt.Sprintf("%s: %v", e.stage, e.err)
}

func (e *stepError) Unwrap() error {
	return e.err
}

func stageOf(err error) enums.CheckoutStage {
	var se *stepError
	if errors.As(err, &se) {
		return se.stage
	}
	return enums.CheckoutStageOrderPersisted
}

func always(error) bool { return true }

func (s *Service) steps(order *models.Order, actor *outbox.ActorRef) []step {
	list := []step{
		{
			stage: enums.CheckoutStageOrderPersisted,
			run: func(ctx context.Context, tx *gorm.DB) error {
				if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
					return err
				}
				return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventOrderPlaced,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Actor:         actor,
					Data:          orderPlacedPayload(order),
				})
			},
			fatal: always,
		},
		{
			stage: enums.CheckoutStageCustomerSynced,
			run: func(ctx context.Context, tx *gorm.DB) error {
				_, err := s.ledger.Upsert(ctx, tx, ledgerEntry(order))
				return err
			},
			fatal: func(error) bool { return false },
			deferTo: func(ctx context.Context, tx *gorm.DB, cause error) error {
				entry := ledgerEntry(order)
				return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventCustomerLedgerDeferred,
					AggregateType: enums.AggregateOrder,
					AggregateID:   order.ID,
					Actor:         actor,
					Data: payloads.CustomerLedgerDeferredEvent{
						OrderID:     order.ID,
						OrderNumber: order.OrderNumber,
						Phone:       entry.Phone,
						Name:        entry.Name,
						Email:       entry.Email,
						City:        entry.City,
						OrderTotal:  entry.OrderTotal,
						Reason:      cause.Error(),
					},
				})
			},
		},
	}

	if order.VoucherCode == nil {
		return list
	}
	code := *order.VoucherCode
	return append(list, step{
		stage: enums.CheckoutStageVoucherSynced,
		run: func(ctx context.Context, tx *gorm.DB) error {
			return s.tracker.Increment(ctx, tx, code)
		},
		fatal: vouchers.IsRedemptionRejected,
		deferTo: func(ctx context.Context, tx *gorm.DB, cause error) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVoucherUsageDeferred,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actor,
				Data: payloads.VoucherUsageDeferredEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					VoucherCode: code,
					Reason:      cause.Error(),
				},
			})
		},
	})
}

// persist runs every step in one transaction and returns the stages whose
// work was deferred to the retry queue.
func (s *Service) persist(ctx context.Context, order *models.Order, requestID string) ([]enums.CheckoutStage, error) {
	actor := &outbox.ActorRef{Service: actorService, RequestID: requestID}
	var deferred []enums.CheckoutStage

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deferred = deferred[:0]
		for _, st := range s.steps(order, actor) {
			stepCtx := s.logg.WithStage(ctx, st.stage.String())

			if st.deferTo == nil {
				if err := st.run(stepCtx, tx); err != nil {
					return &stepError{stage: st.stage, err: err}
				}
				s.transition(ctx, st.stage)
				continue
			}

			err := tx.Transaction(func(sp *gorm.DB) error {
				return st.run(stepCtx, sp)
			})
			if err == nil {
				s.transition(ctx, st.stage)
				continue
			}
			if st.fatal(err) {
				return &stepError{stage: st.stage, err: redemptionError(order, err)}
			}
			if deferErr := st.deferTo(stepCtx, tx, err); deferErr != nil {
				return &stepError{stage: st.stage, err: fmt.Errorf("defer %s: %w", st.stage, deferErr)}
			}
			deferred = append(deferred, st.stage)
			warnCtx := s.logg.WithField(stepCtx, "error", err.Error())
			s.logg.Warn(warnCtx, "bookkeeping step deferred to retry queue")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deferred, nil
}

// redemptionError turns a commit-time voucher rejection into the same typed
// error the pricing step would have produced.
func redemptionError(order *models.Order, err error) error {
	if !vouchers.IsRedemptionRejected(err) || order.VoucherCode == nil {
		return err
	}
	eval := vouchers.Evaluation{Rejection: vouchers.RejectionFor(err), Reason: err.Error()}
	return vouchers.RejectionError(*order.VoucherCode, eval)
}

func ledgerEntry(order *models.Order) customers.Entry {
	entry := customers.Entry{
		Phone:      order.CustomerPhone,
		Name:       order.CustomerName,
		City:       order.City,
		OrderTotal: order.Total,
	}
	if order.CustomerEmail != nil {
		entry.Email = *order.CustomerEmail
	}
	return entry
}

func orderPlacedPayload(order *models.Order) payloads.OrderPlacedEvent {
	items := make([]payloads.OrderPlacedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.OrderPlacedItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	placedAt := order.CreatedAt
	if placedAt.IsZero() {
		placedAt = order.UpdatedAt
	}
	return payloads.OrderPlacedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		City:          order.City,
		PaymentMethod: order.PaymentMethod,
		Subtotal:      order.Subtotal,
		DeliveryFee:   order.DeliveryFee,
		Discount:      order.Discount,
		Total:         order.Total,
		VoucherCode:   order.VoucherCode,
		Items:         items,
		PlacedAt:      placedAt.UTC(),
	}
}
