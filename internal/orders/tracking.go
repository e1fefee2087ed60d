package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
)

// trackingNotFoundMessage is shared by every miss so callers cannot tell an
// unknown order from a wrong phone number.
const trackingNotFoundMessage = "no order matches that order number and phone"

// TrackingItem is the public view of a line item.
type TrackingItem struct {
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Image     *string         `json:"image,omitempty"`
}

// TrackingView is the redacted order returned to anonymous callers. It never
// carries the buyer's name, email, phone or address.
type TrackingView struct {
	OrderNumber    string              `json:"order_number"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	Items          []TrackingItem      `json:"items"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	DeliveryFee    decimal.Decimal     `json:"delivery_fee"`
	Discount       decimal.Decimal     `json:"discount"`
	Total          decimal.Decimal     `json:"total"`
	VoucherCode    *string             `json:"voucher_code,omitempty"`
	TrackingNumber *string             `json:"tracking_number,omitempty"`
	Courier        *string             `json:"courier,omitempty"`
	PlacedAt       time.Time           `json:"placed_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// TrackingService answers public order lookups.
type TrackingService struct {
	repo Repository
}

// NewTrackingService builds the tracking service.
func NewTrackingService(repo Repository) (*TrackingService, error) {
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	return &TrackingService{repo: repo}, nil
}

// Track returns the order only when both the number and the phone match.
func (s *TrackingService) Track(ctx context.Context, orderNumber, phone string) (*TrackingView, error) {
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	phone = strings.TrimSpace(phone)
	if orderNumber == "" || phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and phone are required")
	}
	if !ValidNumber(orderNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, trackingNotFoundMessage)
	}

	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load order")
	}
	if order == nil || order.CustomerPhone != phone {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, trackingNotFoundMessage)
	}
	return NewTrackingView(order), nil
}

// NewTrackingView strips personal data from order.
func NewTrackingView(order *models.Order) *TrackingView {
	view := &TrackingView{
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PaymentMethod:  order.PaymentMethod,
		Items:          make([]TrackingItem, 0, len(order.Items)),
		Subtotal:       order.Subtotal,
		DeliveryFee:    order.DeliveryFee,
		Discount:       order.Discount,
		Total:          order.Total,
		VoucherCode:    order.VoucherCode,
		TrackingNumber: order.TrackingNumber,
		Courier:        order.Courier,
		PlacedAt:       order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, TrackingItem{
			Name:      item.Name,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Image:     item.Image,
		})
	}
	return view
}
