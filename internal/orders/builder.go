package orders

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/money"
)

// CartItem is one cart line as the buyer saw it at checkout.
type CartItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Images    []string
	Size      string
	Quantity  int
}

// LineTotal is unit price times quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return money.Round(c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))))
}

// CustomerInfo is the buyer and delivery block of a checkout.
type CustomerInfo struct {
	Name          string
	Email         string
	Phone         string
	Address       string
	City          string
	PaymentMethod enums.PaymentMethod
	PaymentProof  string
	Notes         string
}

// Pricing carries the amounts the order is built with.
type Pricing struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	VoucherCode string
}

// Subtotal sums the line totals of items.
func Subtotal(items []CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return money.Round(sum)
}

// Builder turns a priced cart into an order snapshot ready to persist.
type Builder struct{}

// NewBuilder returns an order builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build returns an unsaved pending order with copied line items. The order
// number is left empty; the caller assigns one per persistence attempt.
func (b *Builder) Build(items []CartItem, customer CustomerInfo, pricing Pricing) (*models.Order, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item").
			WithDetail("items", "required")
	}

	subtotal := money.Round(pricing.Subtotal)
	deliveryFee := money.Round(pricing.DeliveryFee)
	discount := money.Round(pricing.Discount)
	if subtotal.IsNegative() || deliveryFee.IsNegative() || discount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amounts must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal").
			WithDetail("discount", fmt.Sprintf("must not exceed %s", money.Format(subtotal)))
	}
	total := subtotal.Add(deliveryFee).Sub(discount)
	if total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must not be negative").
			WithDetail("total", money.Format(total))
	}

	orderID := uuid.New()
	order := &models.Order{
		ID:              orderID,
		CustomerName:    strings.TrimSpace(customer.Name),
		CustomerEmail:   optional(customer.Email),
		CustomerPhone:   strings.TrimSpace(customer.Phone),
		ShippingAddress: strings.TrimSpace(customer.Address),
		City:            strings.TrimSpace(customer.City),
		PaymentMethod:   customer.PaymentMethod,
		PaymentProof:    optional(customer.PaymentProof),
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		Discount:        discount,
		Total:           total,
		VoucherCode:     optional(pricing.VoucherCode),
		Status:          enums.OrderStatusPending,
		Notes:           optional(customer.Notes),
		Items:           make([]models.OrderItem, 0, len(items)),
	}

	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive").
				WithDetail(fmt.Sprintf("items[%d].quantity", i), "min")
		}
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			Position:  i,
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: money.Round(item.UnitPrice),
			Image:     firstImage(item.Images),
			Size:      item.Size,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		})
	}
	return order, nil
}

func firstImage(images []string) *string {
	for _, img := range images {
		if img = strings.TrimSpace(img); img != "" {
			return &img
		}
	}
	return nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
