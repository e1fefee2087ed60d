package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/internal/orders"
	"github.com/freshfeet/storefront-backend/pkg/enums"
	pkgerrors "github.com/freshfeet/storefront-backend/pkg/errors"
	"github.com/freshfeet/storefront-backend/pkg/money"
)

const (
	maxItems       = 50
	maxItemQty     = 20
	maxFieldLength = 255
)

// Item is one cart line submitted at checkout.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Images    []string
	Size      string
	Quantity  int
}

// Input is a checkout request. The amount fields are what the client showed
// the buyer; they are checked against server-side pricing, never trusted.
type Input struct {
	Name          string
	Email         string
	Phone         string
	Address       string
	City          string
	PaymentMethod string
	PaymentProof  string
	Notes         string
	Items         []Item

	Subtotal    *decimal.Decimal
	DeliveryFee *decimal.Decimal
	Discount    *decimal.Decimal
	Total       *decimal.Decimal

	VoucherCode    string
	IdempotencyKey string
	RequestID      string
}

// Confirmation is returned once an order is committed.
type Confirmation struct {
	OrderNumber string                `json:"order_number"`
	Subtotal    decimal.Decimal       `json:"subtotal"`
	DeliveryFee decimal.Decimal       `json:"delivery_fee"`
	Discount    decimal.Decimal       `json:"discount"`
	Total       decimal.Decimal       `json:"total"`
	VoucherCode *string               `json:"voucher_code,omitempty"`
	Deferred    []enums.CheckoutStage `json:"deferred,omitempty"`
	Replayed    bool                  `json:"replayed"`
}

func validateInput(in Input) error {
	fields := map[string]any{}
	require := func(field, value string) {
		value = strings.TrimSpace(value)
		switch {
		case value == "":
			fields[field] = "is required"
		case len(value) > maxFieldLength:
			fields[field] = fmt.Sprintf("must be at most %d characters", maxFieldLength)
		}
	}
	require("name", in.Name)
	require("phone", in.Phone)
	require("address", in.Address)
	require("city", in.City)

	if _, err := enums.ParsePaymentMethod(in.PaymentMethod); err != nil {
		fields["payment_method"] = "must be one of cod, jazzcash, easypaisa, bank_transfer"
	}

	switch {
	case len(in.Items) == 0:
		fields["items"] = "is required"
	case len(in.Items) > maxItems:
		fields["items"] = fmt.Sprintf("must contain at most %d lines", maxItems)
	}
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ProductID) == "" {
			fields[prefix+".product_id"] = "is required"
		}
		if strings.TrimSpace(item.Name) == "" {
			fields[prefix+".name"] = "is required"
		}
		if strings.TrimSpace(item.Size) == "" {
			fields[prefix+".size"] = "is required"
		}
		if item.Quantity < 1 || item.Quantity > maxItemQty {
			fields[prefix+".quantity"] = fmt.Sprintf("must be between 1 and %d", maxItemQty)
		}
		if item.UnitPrice.IsNegative() || !item.UnitPrice.Equal(item.UnitPrice.Truncate(money.Places)) {
			fields[prefix+".unit_price"] = "must be a non-negative amount with at most 2 decimals"
		}
	}

	for field, amount := range map[string]*decimal.Decimal{
		"subtotal":     in.Subtotal,
		"delivery_fee": in.DeliveryFee,
		"discount":     in.Discount,
		"total":        in.Total,
	} {
		if amount == nil {
			fields[field] = "is required"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(fields)
}

func cartItems(items []Item) []orders.CartItem {
	out := make([]orders.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, orders.CartItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			UnitPrice: item.UnitPrice,
			Images:    item.Images,
			Size:      strings.TrimSpace(item.Size),
			Quantity:  item.Quantity,
		})
	}
	return out
}
