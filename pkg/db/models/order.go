package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshfeet/storefront-backend/pkg/enums"
)

// Order is the immutable checkout snapshot. Only the fulfillment columns
// (status, tracking number, courier) change after insert.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	IdempotencyKey  *string             `gorm:"column:idempotency_key;uniqueIndex:ux_orders_idempotency_key"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerEmail   *string             `gorm:"column:customer_email"`
	CustomerPhone   string              `gorm:"column:customer_phone;not null;index"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	City            string              `gorm:"column:city;not null"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentProof    *string             `gorm:"column:payment_proof"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee     decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	VoucherCode     *string             `gorm:"column:voucher_code"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	TrackingNumber  *string             `gorm:"column:tracking_number"`
	Courier         *string             `gorm:"column:courier"`
	Notes           *string             `gorm:"column:notes"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
