package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/orders"
	"github.com/freshfeet/storefront-backend/pkg/config"
	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/logger"
	"github.com/freshfeet/storefront-backend/pkg/metrics"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
)

const defaultOrderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type voucherReader interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
}

type usageTracker interface {
	Increment(ctx context.Context, tx *gorm.DB, code string) error
}

type customerLedger interface {
	Upsert(ctx context.Context, tx *gorm.DB, entry customers.Entry) (*models.Customer, error)
}

// ServiceParams wires the checkout orchestrator.
type ServiceParams struct {
	Tx       txRunner
	Orders   orders.Repository
	Vouchers voucherReader
	Tracker  usageTracker
	Ledger   customerLedger
	Outbox   outboxPublisher
	Numbers  orders.NumberGenerator
	Checkout config.CheckoutConfig
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// Service places orders: validate, price, build, then persist the order and
// its bookkeeping in one transaction.
type Service struct {
	tx       txRunner
	orders   orders.Repository
	vouchers voucherReader
	tracker  usageTracker
	ledger   customerLedger
	outbox   outboxPublisher
	numbers  orders.NumberGenerator
	builder  *orders.Builder
	checkout config.CheckoutConfig
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher reader required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("voucher usage tracker required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("customer ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = orders.RandomNumberGenerator{}
	}
	cfg := params.Checkout
	if cfg.MaxOrderNumberAttempts <= 0 {
		cfg.MaxOrderNumberAttempts = defaultOrderNumberAttempts
	}
	return &Service{
		tx:       params.Tx,
		orders:   params.Orders,
		vouchers: params.Vouchers,
		tracker:  params.Tracker,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		numbers:  numbers,
		builder:  orders.NewBuilder(),
		checkout: cfg,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// PlaceOrder runs one checkout to completion or to a failed stage.
func (s *Service) PlaceOrder(ctx context.Context, in Input) (*Confirmation, error) {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if in.RequestID != "" {
		ctx = s.logg.WithRequestID(ctx, in.RequestID)
	}
	s.transition(ctx, enums.CheckoutStageReceived)

	if err := validateInput(in); err != nil {
		return nil, s.fail(ctx, enums.CheckoutStageValidated, err)
	}

	if in.IdempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, s.fail(ctx, enums.CheckoutStageValidated,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check idempotency key"))
		}
		if existing != nil {
			return s.replay(ctx, existing, in)
		}
	}

	items := cartItems(in.Items)
	q, err := s.price(ctx, items, in.VoucherCode)
	if err != nil {
		return nil, s.fail(ctx, enums.CheckoutStageValidated, err)
	}
	if err := q.reconcile(in); err != nil {
		return nil, s.fail(ctx, enums.CheckoutStageValidated, err)
	}

	paymentMethod, _ := enums.ParsePaymentMethod(in.PaymentMethod)
	order, err := s.builder.Build(items, orders.CustomerInfo{
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		PaymentMethod: paymentMethod,
		PaymentProof:  in.PaymentProof,
		Notes:         in.Notes,
	}, orders.Pricing{
		Subtotal:    q.subtotal,
		DeliveryFee: q.deliveryFee,
		Discount:    q.discount,
		VoucherCode: q.voucherCode,
	})
	if err != nil {
		return nil, s.fail(ctx, enums.CheckoutStageValidated, err)
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		order.IdempotencyKey = &key
	}
	s.transition(ctx, enums.CheckoutStageValidated)

	for attempt := 1; attempt <= s.checkout.MaxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.numbers.Next()
		attemptCtx := s.logg.WithOrderNumber(ctx, order.OrderNumber)

		deferred, err := s.persist(attemptCtx, order, in.RequestID)
		if err == nil {
			return s.confirm(attemptCtx, order, deferred), nil
		}

		switch {
		case orders.IsOrderNumberConflict(err):
			s.metrics.IncCollision()
			s.logg.Warn(s.logg.WithField(attemptCtx, "attempt", attempt), "order number taken; regenerating")
			continue
		case orders.IsIdempotencyConflict(err):
			existing, findErr := s.orders.FindByIdempotencyKey(ctx, in.IdempotencyKey)
			if findErr != nil {
				return nil, s.fail(attemptCtx, enums.CheckoutStageOrderPersisted,
					pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "failed to load concurrent order"))
			}
			if existing == nil {
				return nil, s.fail(attemptCtx, enums.CheckoutStageOrderPersisted,
					pkgerrors.Wrap(pkgerrors.CodeInternal, err, "concurrent order not found after key conflict"))
			}
			return s.replay(ctx, existing, in)
		default:
			return nil, s.fail(attemptCtx, stageOf(err), err)
		}
	}

	return nil, s.fail(ctx, enums.CheckoutStageOrderPersisted,
		pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique order number").
			WithDetail("attempts", s.checkout.MaxOrderNumberAttempts))
}

func (s *Service) confirm(ctx context.Context, order *models.Order, deferred []enums.CheckoutStage) *Confirmation {
	for _, stage := range deferred {
		s.metrics.IncDeferred(stage.String())
	}
	s.metrics.IncPlaced(order.PaymentMethod.String())
	s.transition(ctx, enums.CheckoutStageConfirmed)

	return &Confirmation{
		OrderNumber: order.OrderNumber,
		Subtotal:    order.Subtotal,
		DeliveryFee: order.DeliveryFee,
		Discount:    order.Discount,
		Total:       order.Total,
		VoucherCode: order.VoucherCode,
		Deferred:    deferred,
	}
}

// replay answers a repeated request with the order it already produced.
func (s *Service) replay(ctx context.Context, existing *models.Order, in Input) (*Confirmation, error) {
	if existing.CustomerPhone != strings.TrimSpace(in.Phone) {
		return nil, s.fail(ctx, enums.CheckoutStageValidated,
			pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used for a different checkout"))
	}
	s.metrics.IncReplay()
	s.logg.Info(s.logg.WithOrderNumber(ctx, existing.OrderNumber), "checkout replayed from idempotency key")
	return &Confirmation{
		OrderNumber: existing.OrderNumber,
		Subtotal:    existing.Subtotal,
		DeliveryFee: existing.DeliveryFee,
		Discount:    existing.Discount,
		Total:       existing.Total,
		VoucherCode: existing.VoucherCode,
		Replayed:    true,
	}, nil
}

func (s *Service) transition(ctx context.Context, stage enums.CheckoutStage) {
	s.logg.Info(s.logg.WithStage(ctx, stage.String()), "checkout stage reached")
}

// fail records the failed stage on err and returns it as a typed error.
func (s *Service) fail(ctx context.Context, stage enums.CheckoutStage, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to place order")
	}
	typed = typed.WithDetail("step", stage.String())

	s.metrics.IncFailure(stage.String())
	failCtx := s.logg.WithFields(ctx, map[string]any{
		"stage":       enums.CheckoutStageFailed.String(),
		"failed_step": stage.String(),
		"error_code":  typed.Code(),
	})
	if typed.Code() == pkgerrors.CodeValidation || typed.Code() == pkgerrors.CodeVoucherRejected {
		s.logg.Warn(failCtx, typed.Message())
	} else {
		s.logg.Error(failCtx, "checkout failed", err)
	}
	return typed
}
