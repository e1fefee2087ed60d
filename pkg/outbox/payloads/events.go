package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/pkg/enums"
)

// OrderPlacedItem is the line-item shape published with OrderPlacedEvent.
type OrderPlacedItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPlacedEvent announces a committed order to downstream consumers.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	City          string              `json:"city"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	DeliveryFee   decimal.Decimal     `json:"delivery_fee"`
	Discount      decimal.Decimal     `json:"discount"`
	Total         decimal.Decimal     `json:"total"`
	VoucherCode   *string             `json:"voucher_code,omitempty"`
	Items         []OrderPlacedItem   `json:"items"`
	PlacedAt      time.Time           `json:"placed_at"`
}

// CustomerLedgerDeferredEvent carries a ledger update that could not be
// applied inside the checkout transaction.
type CustomerLedgerDeferredEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Phone       string          `json:"phone"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	City        string          `json:"city"`
	OrderTotal  decimal.Decimal `json:"order_total"`
	Reason      string          `json:"reason"`
}

// VoucherUsageDeferredEvent carries a voucher redemption that could not be
// applied inside the checkout transaction.
type VoucherUsageDeferredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	VoucherCode string    `json:"voucher_code"`
	Reason      string    `json:"reason"`
}
