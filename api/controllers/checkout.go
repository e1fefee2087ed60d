package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/api/middleware"
	"github.com/freshfeet/storefront-backend/api/responses"
	"github.com/freshfeet/storefront-backend/api/validators"
	checkoutsvc "github.com/freshfeet/storefront-backend/internal/checkout"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/logger"
)

const maxNotesLength = 1000

// OrderPlacer is implemented by the checkout orchestrator.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, in checkoutsvc.Input) (*checkoutsvc.Confirmation, error)
}

// Checkout places an order from the submitted cart.
func Checkout(svc OrderPlacer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		idempotencyKey := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		in := payload.toInput()
		in.IdempotencyKey = idempotencyKey
		in.RequestID = middleware.RequestIDFromContext(r.Context())

		confirmation, err := svc.PlaceOrder(r.Context(), in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, confirmation)
	}
}

type checkoutRequest struct {
	Name          string                `json:"name" validate:"required,max=255"`
	Email         string                `json:"email" validate:"omitempty,email,max=255"`
	Phone         string                `json:"phone" validate:"required,max=32"`
	Address       string                `json:"address" validate:"required,max=255"`
	City          string                `json:"city" validate:"required,max=255"`
	PaymentMethod string                `json:"payment_method" validate:"required"`
	PaymentProof  string                `json:"payment_proof,omitempty"`
	Notes         string                `json:"notes,omitempty"`
	Items         []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal      *decimal.Decimal      `json:"subtotal" validate:"required,min=0"`
	DeliveryFee   *decimal.Decimal      `json:"delivery_fee" validate:"required,min=0"`
	Discount      *decimal.Decimal      `json:"discount" validate:"required,min=0"`
	Total         *decimal.Decimal      `json:"total" validate:"required,min=0"`
	VoucherCode   string                `json:"voucher_code,omitempty" validate:"max=64"`
}

type checkoutItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"min=0"`
	Images    []string        `json:"images,omitempty"`
	Size      string          `json:"size" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
}

func (p checkoutRequest) toInput() checkoutsvc.Input {
	items := make([]checkoutsvc.Item, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, checkoutsvc.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Images:    item.Images,
			Size:      item.Size,
			Quantity:  item.Quantity,
		})
	}
	return checkoutsvc.Input{
		Name:          validators.SanitizeString(p.Name, 0),
		Email:         validators.SanitizeString(p.Email, 0),
		Phone:         validators.SanitizeString(p.Phone, 0),
		Address:       validators.SanitizeString(p.Address, 0),
		City:          validators.SanitizeString(p.City, 0),
		PaymentMethod: p.PaymentMethod,
		PaymentProof:  validators.SanitizeString(p.PaymentProof, 0),
		Notes:         validators.SanitizeString(p.Notes, maxNotesLength),
		Items:         items,
		Subtotal:      p.Subtotal,
		DeliveryFee:   p.DeliveryFee,
		Discount:      p.Discount,
		Total:         p.Total,
		VoucherCode:   p.VoucherCode,
	}
}
