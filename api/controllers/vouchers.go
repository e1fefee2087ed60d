package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/api/responses"
	"github.com/freshfeet/storefront-backend/api/validators"
	"github.com/freshfeet/storefront-backend/internal/vouchers"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/logger"
)

type VoucherPreviewer interface {
	Apply(ctx context.Context, code string, subtotal decimal.Decimal) (*vouchers.Preview, error)
}

type applyVoucherRequest struct {
	Code     string           `json:"code" validate:"required,max=64"`
	Subtotal *decimal.Decimal `json:"subtotal" validate:"required,min=0"`
}

// ApplyVoucher previews a voucher against a cart subtotal. An inapplicable
// voucher is a 200 with valid=false; the code is not reserved.
func ApplyVoucher(svc VoucherPreviewer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "voucher service unavailable"))
			return
		}

		var payload applyVoucherRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preview, err := svc.Apply(r.Context(), payload.Code, *payload.Subtotal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}
