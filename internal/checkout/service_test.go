package checkout

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/internal/customers"
	"github.com/freshfeet/storefront-backend/internal/orders"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	"github.com/freshfeet/storefront-backend/pkg/config"
	"github.com/freshfeet/storefront-backend/pkg/db"
	"github.com/freshfeet/storefront-backend/pkg/db/dbtest"
	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/logger"
	"github.com/freshfeet/storefront-backend/pkg/outbox"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixedNumbers struct {
	mu      sync.Mutex
	numbers []string
	calls   int
}

func (f *fixedNumbers) Next() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.numbers[f.calls%len(f.numbers)]
	f.calls++
	return n
}

type failingLedger struct{ err error }

func (f failingLedger) Upsert(ctx context.Context, tx *gorm.DB, entry customers.Entry) (*models.Customer, error) {
	// Touch the savepoint so the rollback has something to undo.
	if err := tx.Exec("UPDATE customers SET total_orders = total_orders WHERE phone = ?", entry.Phone).Error; err != nil {
		return nil, err
	}
	return nil, f.err
}

type failingTracker struct{ err error }

func (f failingTracker) Increment(ctx context.Context, tx *gorm.DB, code string) error {
	return f.err
}

type harness struct {
	db  *gorm.DB
	svc *Service
}

func newHarness(t *testing.T, mutate func(*ServiceParams)) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})

	voucherRepo := vouchers.NewRepository(conn)
	tracker, err := vouchers.NewTracker(voucherRepo)
	require.NoError(t, err)
	ledger, err := customers.NewLedger(customers.NewRepository(conn))
	require.NoError(t, err)

	params := ServiceParams{
		Tx:       db.NewFromConn(conn),
		Orders:   orders.NewRepository(conn),
		Vouchers: voucherRepo,
		Tracker:  tracker,
		Ledger:   ledger,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Checkout: config.CheckoutConfig{DeliveryFee: decimal.NewFromInt(200), MaxOrderNumberAttempts: 5},
		Logger:   logg,
	}
	if mutate != nil {
		mutate(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	return &harness{db: conn, svc: svc}
}

func (h *harness) seedVoucher(t *testing.T, v models.Voucher) {
	t.Helper()
	v.ID = uuid.New()
	v.IsActive = true
	require.NoError(t, h.db.Create(&v).Error)
}

func (h *harness) count(t *testing.T, table string, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := h.db.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// baseInput is two pairs at 2500 each: subtotal 5000.
func baseInput() Input {
	return Input{
		Name:          "Ayesha Khan",
		Email:         "ayesha@example.com",
		Phone:         "03001234567",
		Address:       "House 12, Street 4, DHA",
		City:          "Lahore",
		PaymentMethod: "cod",
		Items: []Item{{
			ProductID: "af1-white",
			Name:      "Air Force 1 White",
			UnitPrice: decimal.NewFromInt(2500),
			Images:    []string{"https://cdn.example/af1.jpg"},
			Size:      "42",
			Quantity:  2,
		}},
		Subtotal:    amount(5000),
		DeliveryFee: amount(200),
		Discount:    amount(0),
		Total:       amount(5200),
	}
}

func TestPlaceOrderWithPercentageVoucher(t *testing.T) {
	h := newHarness(t, nil)
	h.seedVoucher(t, models.Voucher{
		Code:           "SAVE10",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewFromInt(1000),
	})

	in := baseInput()
	in.VoucherCode = "save10"
	in.Discount = amount(500)
	in.Total = amount(4700)

	conf, err := h.svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, orders.ValidNumber(conf.OrderNumber), "order number %q", conf.OrderNumber)
	assert.True(t, conf.Discount.Equal(decimal.NewFromInt(500)))
	assert.True(t, conf.Total.Equal(decimal.NewFromInt(4700)))
	assert.Empty(t, conf.Deferred)
	require.NotNil(t, conf.VoucherCode)
	assert.Equal(t, "SAVE10", *conf.VoucherCode)

	var used int
	require.NoError(t, h.db.Model(&models.Voucher{}).Where("code = ?", "SAVE10").Pluck("used_count", &used).Error)
	assert.Equal(t, 1, used)

	stored, err := orders.NewRepository(h.db).FindByNumber(context.Background(), conf.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Total.Equal(stored.Subtotal.Add(stored.DeliveryFee).Sub(stored.Discount)))
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, int64(1), h.count(t, "outbox_events", "event_type = ?", enums.EventOrderPlaced))
}

func TestPlaceOrderRejectsBelowMinimumVoucher(t *testing.T) {
	h := newHarness(t, nil)
	h.seedVoucher(t, models.Voucher{
		Code:           "BIG",
		DiscountType:   enums.DiscountTypeFixed,
		DiscountValue:  decimal.NewFromInt(100),
		MinOrderAmount: decimal.NewFromInt(1000),
	})

	in := baseInput()
	in.Items[0].UnitPrice = decimal.NewFromInt(800)
	in.Items[0].Quantity = 1
	in.Subtotal = amount(800)
	in.Discount = amount(100)
	in.Total = amount(900)
	in.VoucherCode = "BIG"

	_, err := h.svc.PlaceOrder(context.Background(), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, pkgerrors.CodeVoucherRejected, typed.Code())
	details := typed.Details().(map[string]any)
	assert.Equal(t, enums.VoucherRejectionBelowMinimum, details["reason_code"])
	assert.Equal(t, enums.CheckoutStageValidated.String(), details["step"])
	assert.Equal(t, int64(0), h.count(t, "orders", ""))
}

func TestPlaceOrderRejectsExhaustedVoucher(t *testing.T) {
	h := newHarness(t, nil)
	h.seedVoucher(t, models.Voucher{
		Code:          "FIVE",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(300),
		MaxUses:       5,
		UsedCount:     5,
	})

	in := baseInput()
	in.VoucherCode = "FIVE"
	in.Discount = amount(300)
	in.Total = amount(4900)

	_, err := h.svc.PlaceOrder(context.Background(), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVoucherRejected, typed.Code())
	assert.Equal(t, enums.VoucherRejectionLimitReached, typed.Details().(map[string]any)["reason_code"])
	assert.Equal(t, int64(0), h.count(t, "orders", ""))
}

func TestPlaceOrderWithoutVoucherThenSamePhoneAgain(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first, err := h.svc.PlaceOrder(ctx, baseInput())
	require.NoError(t, err)
	assert.True(t, first.Discount.IsZero())
	assert.True(t, first.Total.Equal(decimal.NewFromInt(5200)))
	assert.Nil(t, first.VoucherCode)

	ledger := customers.NewRepository(h.db)
	customer, err := ledger.FindByPhone(ctx, "03001234567")
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, 1, customer.TotalOrders)

	second := baseInput()
	second.Items[0].Quantity = 1
	second.Subtotal = amount(2500)
	second.Total = amount(2700)
	_, err = h.svc.PlaceOrder(ctx, second)
	require.NoError(t, err)

	customer, err = ledger.FindByPhone(ctx, "03001234567")
	require.NoError(t, err)
	assert.Equal(t, 2, customer.TotalOrders)
	assert.True(t, customer.TotalSpent.Equal(decimal.NewFromInt(7900)), "spent %s", customer.TotalSpent)
}

func TestPlaceOrderRejectsTamperedAmounts(t *testing.T) {
	h := newHarness(t, nil)

	in := baseInput()
	in.Discount = amount(1000)
	in.Total = amount(4200)

	_, err := h.svc.PlaceOrder(context.Background(), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]any)
	assert.Contains(t, details, "discount")
	assert.Contains(t, details, "total")
	assert.NotContains(t, details, "subtotal")
	assert.Equal(t, map[string]string{"expected": "0.00", "received": "1000.00"}, details["discount"])
	assert.Equal(t, int64(0), h.count(t, "orders", ""))
}

func TestPlaceOrderFieldValidation(t *testing.T) {
	h := newHarness(t, nil)

	in := baseInput()
	in.Phone = " "
	in.PaymentMethod = "crypto"
	in.Items[0].Quantity = 0
	in.Total = nil

	_, err := h.svc.PlaceOrder(context.Background(), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]any)
	for _, field := range []string{"phone", "payment_method", "items[0].quantity", "total", "step"} {
		assert.Contains(t, details, field)
	}
}

func TestPlaceOrderRequiresClientAmounts(t *testing.T) {
	h := newHarness(t, nil)

	in := baseInput()
	in.Subtotal = nil
	in.DeliveryFee = nil
	in.Discount = nil
	in.Total = nil

	_, err := h.svc.PlaceOrder(context.Background(), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]any)
	for _, field := range []string{"subtotal", "delivery_fee", "discount", "total"} {
		assert.Equal(t, "is required", details[field], field)
	}
	assert.Equal(t, int64(0), h.count(t, "orders", ""))
}

// racingOrders hides the committed order from the pre-check so the insert
// hits the idempotency index, then fails the reload.
type racingOrders struct {
	orders.Repository
	racing  bool
	calls   int
	loadErr error
}

func (r *racingOrders) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if !r.racing {
		return r.Repository.FindByIdempotencyKey(ctx, key)
	}
	r.calls++
	if r.calls == 1 {
		return nil, nil
	}
	return nil, r.loadErr
}

func TestPlaceOrderReportsReloadFailureAfterKeyConflict(t *testing.T) {
	loadErr := errors.New("connection reset by peer")
	var racing *racingOrders
	h := newHarness(t, func(p *ServiceParams) {
		racing = &racingOrders{Repository: p.Orders, loadErr: loadErr}
		p.Orders = racing
	})
	ctx := context.Background()

	in := baseInput()
	in.IdempotencyKey = "idem-race"
	_, err := h.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)

	racing.racing = true
	_, err = h.svc.PlaceOrder(ctx, in)
	require.Error(t, err)
	require.ErrorIs(t, err, loadErr)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
	assert.Equal(t, 2, racing.calls)
	assert.Equal(t, int64(1), h.count(t, "orders", ""))
}

func TestPlaceOrderRetriesOrderNumberCollision(t *testing.T) {
	numbers := &fixedNumbers{numbers: []string{"FF-100001", "FF-100001", "FF-100002"}}
	h := newHarness(t, func(p *ServiceParams) { p.Numbers = numbers })
	ctx := context.Background()

	first, err := h.svc.PlaceOrder(ctx, baseInput())
	require.NoError(t, err)
	assert.Equal(t, "FF-100001", first.OrderNumber)

	second, err := h.svc.PlaceOrder(ctx, baseInput())
	require.NoError(t, err)
	assert.Equal(t, "FF-100002", second.OrderNumber)
	assert.Equal(t, 3, numbers.calls)
	assert.Equal(t, int64(2), h.count(t, "orders", ""))
	assert.Equal(t, int64(2), h.count(t, "outbox_events", "event_type = ?", enums.EventOrderPlaced))
}

func TestPlaceOrderGivesUpAfterMaxAttempts(t *testing.T) {
	numbers := &fixedNumbers{numbers: []string{"FF-100001"}}
	h := newHarness(t, func(p *ServiceParams) {
		p.Numbers = numbers
		p.Checkout.MaxOrderNumberAttempts = 3
	})
	ctx := context.Background()

	_, err := h.svc.PlaceOrder(ctx, baseInput())
	require.NoError(t, err)

	_, err = h.svc.PlaceOrder(ctx, baseInput())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal), "got %v", err)
	assert.Equal(t, 4, numbers.calls)
	assert.Equal(t, int64(1), h.count(t, "orders", ""))
}

func TestPlaceOrderDefersLedgerFailure(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Ledger = failingLedger{err: errors.New("ledger unavailable")}
	})

	conf, err := h.svc.PlaceOrder(context.Background(), baseInput())
	require.NoError(t, err, "bookkeeping failure must not fail the order")
	assert.Equal(t, []enums.CheckoutStage{enums.CheckoutStageCustomerSynced}, conf.Deferred)
	assert.Equal(t, int64(1), h.count(t, "orders", "order_number = ?", conf.OrderNumber))
	assert.Equal(t, int64(1), h.count(t, "outbox_events", "event_type = ?", enums.EventCustomerLedgerDeferred))
	assert.Equal(t, int64(0), h.count(t, "customers", ""))
}

func TestPlaceOrderDefersTransientVoucherFailure(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Tracker = failingTracker{err: errors.New("connection reset")}
	})
	h.seedVoucher(t, models.Voucher{
		Code:          "FLAT300",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(300),
	})

	in := baseInput()
	in.VoucherCode = "FLAT300"
	in.Discount = amount(300)
	in.Total = amount(4900)

	conf, err := h.svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []enums.CheckoutStage{enums.CheckoutStageVoucherSynced}, conf.Deferred)
	assert.Equal(t, int64(1), h.count(t, "outbox_events", "event_type = ?", enums.EventVoucherUsageDeferred))
	assert.Equal(t, int64(1), h.count(t, "customers", ""))
}

func TestPlaceOrderCommitTimeLimitRollsBack(t *testing.T) {
	h := newHarness(t, func(p *ServiceParams) {
		p.Tracker = failingTracker{err: vouchers.ErrLimitReached}
	})
	h.seedVoucher(t, models.Voucher{
		Code:          "LAST",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(300),
		MaxUses:       1,
	})

	in := baseInput()
	in.VoucherCode = "LAST"
	in.Discount = amount(300)
	in.Total = amount(4900)

	_, err := h.svc.PlaceOrder(context.Background(), in)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVoucherRejected, typed.Code())
	assert.Equal(t, enums.CheckoutStageVoucherSynced.String(), typed.Details().(map[string]any)["step"])
	assert.Equal(t, int64(0), h.count(t, "orders", ""))
	assert.Equal(t, int64(0), h.count(t, "customers", ""))
	assert.Equal(t, int64(0), h.count(t, "outbox_events", ""))
}

func TestPlaceOrderReplaysIdempotencyKey(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	in := baseInput()
	in.IdempotencyKey = "checkout-123"
	first, err := h.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	again, err := h.svc.PlaceOrder(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.OrderNumber, again.OrderNumber)
	assert.Equal(t, int64(1), h.count(t, "orders", ""))

	customer, err := customers.NewRepository(h.db).FindByPhone(ctx, in.Phone)
	require.NoError(t, err)
	assert.Equal(t, 1, customer.TotalOrders)

	other := baseInput()
	other.Phone = "03110000000"
	other.IdempotencyKey = "checkout-123"
	_, err = h.svc.PlaceOrder(ctx, other)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIdempotency), "got %v", err)
}

func TestPlaceOrderConcurrentVoucherRedemption(t *testing.T) {
	const buyers = 8
	h := newHarness(t, nil)
	h.seedVoucher(t, models.Voucher{
		Code:          "RUSH",
		DiscountType:  enums.DiscountTypeFixed,
		DiscountValue: decimal.NewFromInt(300),
		MaxUses:       buyers - 1,
	})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		placed   int
		rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := baseInput()
			in.Phone = "0300000000" + string(rune('0'+i))
			in.VoucherCode = "RUSH"
			in.Discount = amount(300)
			in.Total = amount(4900)

			_, err := h.svc.PlaceOrder(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				placed++
			case pkgerrors.IsCode(err, pkgerrors.CodeVoucherRejected):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var used int
	require.NoError(t, h.db.Model(&models.Voucher{}).Where("code = ?", "RUSH").Pluck("used_count", &used).Error)
	assert.Equal(t, buyers-1, used)
	assert.Equal(t, buyers-1, placed)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(buyers-1), h.count(t, "orders", "voucher_code = ?", "RUSH"))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
