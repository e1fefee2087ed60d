package controllers

import (
	"context"
	"net/http"

	"github.com/freshfeet/storefront-backend/api/responses"
	"github.com/freshfeet/storefront-backend/api/validators"
	"github.com/freshfeet/storefront-backend/internal/orders"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/logger"
)

type OrderTracker interface {
	Track(ctx context.Context, orderNumber, phone string) (*orders.TrackingView, error)
}

type trackOrderRequest struct {
	OrderNumber string `json:"order_number" validate:"required,max=32"`
	Phone       string `json:"phone" validate:"required,max=32"`
}

func TrackOrder(svc OrderTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}

		var payload trackOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Track(r.Context(), payload.OrderNumber, payload.Phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
