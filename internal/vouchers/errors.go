package vouchers

import (
	"errors"

	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
)

var (
	// ErrVoucherNotFound is returned when no voucher carries the code.
	ErrVoucherNotFound = errors.New("voucher not found")
	// ErrLimitReached is returned when the conditional increment finds the
	// usage cap already exhausted.
	ErrLimitReached = errors.New("voucher usage limit reached")
)

// IsRedemptionRejected reports whether err means the voucher can no longer be
// redeemed, as opposed to a transient store failure.
func IsRedemptionRejected(err error) bool {
	return errors.Is(err, ErrLimitReached) || errors.Is(err, ErrVoucherNotFound)
}

// RejectionFor maps a redemption error onto the evaluator's rejection enum.
func RejectionFor(err error) enums.VoucherRejection {
	switch {
	case errors.Is(err, ErrLimitReached):
		return enums.VoucherRejectionLimitReached
	case errors.Is(err, ErrVoucherNotFound):
		return enums.VoucherRejectionNotFound
	default:
		return enums.VoucherRejectionNone
	}
}

// RejectionError builds the caller-facing error for a failed evaluation.
func RejectionError(code string, eval Evaluation) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeVoucherRejected, eval.Reason).WithDetails(map[string]any{
		"voucher_code": code,
		"reason_code":  eval.Rejection,
		"reason":       eval.Reason,
	})
}
