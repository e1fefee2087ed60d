package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/internal/orders"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/money"
)

// quote is the server's own pricing of a cart.
type quote struct {
	subtotal    decimal.Decimal
	deliveryFee decimal.Decimal
	discount    decimal.Decimal
	total       decimal.Decimal
	voucherCode string
}

func (s *Service) price(ctx context.Context, items []orders.CartItem, voucherCode string) (*quote, error) {
	subtotal := orders.Subtotal(items)
	q := &quote{
		subtotal:    subtotal,
		deliveryFee: money.Round(s.checkout.DeliveryFeeFor(subtotal)),
		discount:    decimal.Zero,
	}

	if code := vouchers.NormalizeCode(voucherCode); code != "" {
		voucher, err := s.vouchers.FindByCode(ctx, code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load voucher")
		}
		eval := vouchers.Evaluate(voucher, subtotal, s.now())
		if !eval.Valid {
			return nil, vouchers.RejectionError(code, eval)
		}
		q.discount = eval.DiscountAmount
		q.voucherCode = code
	}

	q.total = q.subtotal.Add(q.deliveryFee).Sub(q.discount)
	return q, nil
}

// reconcile compares the client's amounts with q and reports every field
// that disagrees together with the expected value. validateInput has already
// rejected requests that omit an amount.
func (q *quote) reconcile(in Input) error {
	mismatches := map[string]any{}
	for _, c := range []struct {
		field    string
		client   *decimal.Decimal
		expected decimal.Decimal
	}{
		{"subtotal", in.Subtotal, q.subtotal},
		{"delivery_fee", in.DeliveryFee, q.deliveryFee},
		{"discount", in.Discount, q.discount},
		{"total", in.Total, q.total},
	} {
		if money.Equal(*c.client, c.expected) {
			continue
		}
		mismatches[c.field] = map[string]string{
			"expected": money.Format(c.expected),
			"received": money.Format(*c.client),
		}
	}
	if len(mismatches) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "order amounts do not match current pricing").
		WithDetails(mismatches)
}
