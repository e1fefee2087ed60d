package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is the running ledger for one buyer, keyed by phone number.
type Customer struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Phone       string          `gorm:"column:phone;not null;uniqueIndex:ux_customers_phone"`
	Name        string          `gorm:"column:name;not null"`
	Email       *string         `gorm:"column:email"`
	City        string          `gorm:"column:city;not null"`
	TotalOrders int             `gorm:"column:total_orders;not null"`
	TotalSpent  decimal.Decimal `gorm:"column:total_spent;type:numeric(14,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
