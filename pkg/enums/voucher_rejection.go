package enums

// VoucherRejection enumerates why a voucher cannot be applied. The order of
// the constants matches the order the evaluator checks them in.
type VoucherRejection string

const (
	VoucherRejectionNone         VoucherRejection = ""
	VoucherRejectionNotFound     VoucherRejection = "not_found"
	VoucherRejectionInactive     VoucherRejection = "inactive"
	VoucherRejectionExpired      VoucherRejection = "expired"
	VoucherRejectionLimitReached VoucherRejection = "limit_reached"
	VoucherRejectionBelowMinimum VoucherRejection = "below_minimum"
)

var validVoucherRejections = []VoucherRejection{
	VoucherRejectionNotFound,
	VoucherRejectionInactive,
	VoucherRejectionExpired,
	VoucherRejectionLimitReached,
	VoucherRejectionBelowMinimum,
}

func (r VoucherRejection) String() string {
	return string(r)
}

func (r VoucherRejection) IsValid() bool {
	for _, candidate := range validVoucherRejections {
		if candidate == r {
			return true
		}
	}
	return false
}
