package vouchers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	"github.com/freshfeet/storefront-backend/pkg/money"
)

// Evaluation is the outcome of checking a voucher against a subtotal.
type Evaluation struct {
	Valid          bool
	DiscountAmount decimal.Decimal
	Rejection      enums.VoucherRejection
	Reason         string
}

// NormalizeCode trims and upper-cases a voucher code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate decides whether v applies to subtotal at now. Checks run in a
// fixed order and stop at the first failure: existence, active flag,
// expiry, usage cap, minimum order amount. It performs no I/O.
func Evaluate(v *models.Voucher, subtotal decimal.Decimal, now time.Time) Evaluation {
	if v == nil {
		return reject(enums.VoucherRejectionNotFound, "voucher not found")
	}
	if !v.IsActive {
		return reject(enums.VoucherRejectionInactive, "voucher is not active")
	}
	if v.ExpiresAt != nil && v.ExpiresAt.Before(now) {
		return reject(enums.VoucherRejectionExpired, "voucher has expired")
	}
	if !v.Unlimited() && v.UsedCount >= v.MaxUses {
		return reject(enums.VoucherRejectionLimitReached, "voucher usage limit reached")
	}
	if subtotal.LessThan(v.MinOrderAmount) {
		return reject(enums.VoucherRejectionBelowMinimum,
			fmt.Sprintf("minimum order amount is Rs. %s", money.Format(v.MinOrderAmount)))
	}

	return Evaluation{
		Valid:          true,
		DiscountAmount: Discount(v.DiscountType, v.DiscountValue, subtotal),
	}
}

// Discount computes the discount for a voucher type and value. The result is
// never negative and never exceeds subtotal.
func Discount(kind enums.DiscountType, value, subtotal decimal.Decimal) decimal.Decimal {
	subtotal = money.ClampNonNegative(subtotal)
	var amount decimal.Decimal
	switch kind {
	case enums.DiscountTypePercentage:
		amount = money.Percent(subtotal, value)
	case enums.DiscountTypeFixed:
		amount = money.Round(value)
	default:
		return decimal.Zero
	}
	return money.Min(money.ClampNonNegative(amount), subtotal)
}

func reject(rejection enums.VoucherRejection, reason string) Evaluation {
	return Evaluation{
		Valid:          false,
		DiscountAmount: decimal.Zero,
		Rejection:      rejection,
		Reason:         reason,
	}
}
