package vouchers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
)

// Preview is the read-only answer to "what would this voucher take off".
type Preview struct {
	Code           string                 `json:"code"`
	Valid          bool                   `json:"valid"`
	DiscountAmount decimal.Decimal        `json:"discount_amount"`
	DiscountType   enums.DiscountType     `json:"discount_type,omitempty"`
	DiscountValue  *decimal.Decimal       `json:"discount_value,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	ReasonCode     enums.VoucherRejection `json:"reason_code,omitempty"`
}

// PreviewService evaluates a code against a cart subtotal without reserving
// or consuming it.
type PreviewService struct {
	repo Repository
	now  func() time.Time
}

// NewPreviewService builds a preview service over the voucher store.
func NewPreviewService(repo Repository) (*PreviewService, error) {
	if repo == nil {
		return nil, errors.New("voucher repository required")
	}
	return &PreviewService{repo: repo, now: time.Now}, nil
}

// Apply looks the code up and evaluates it. A rejection is reported in the
// returned Preview; only input and store problems surface as errors.
func (s *PreviewService) Apply(ctx context.Context, code string, subtotal decimal.Decimal) (*Preview, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher code is required").
			WithDetail("code", "required")
	}
	if subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative").
			WithDetail("subtotal", "min")
	}

	voucher, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load voucher")
	}

	eval := Evaluate(voucher, subtotal, s.now())
	preview := &Preview{
		Code:           normalized,
		Valid:          eval.Valid,
		DiscountAmount: eval.DiscountAmount,
	}
	if !eval.Valid {
		preview.Reason = eval.Reason
		preview.ReasonCode = eval.Rejection
		return preview, nil
	}
	value := voucher.DiscountValue
	preview.DiscountType = voucher.DiscountType
	preview.DiscountValue = &value
	return preview, nil
}
