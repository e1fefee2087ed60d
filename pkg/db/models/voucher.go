package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/pkg/enums"
)

// Voucher is a discount code. MaxUses of zero means unlimited.
type Voucher struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code           string             `gorm:"column:code;not null"`
	DiscountType   enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue  decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null"`
	MaxUses        int                `gorm:"column:max_uses;not null"`
	UsedCount      int                `gorm:"column:used_count;not null"`
	IsActive       bool               `gorm:"column:is_active;not null"`
	ExpiresAt      *time.Time         `gorm:"column:expires_at"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Unlimited reports whether the voucher has no usage cap.
func (v Voucher) Unlimited() bool {
	return v.MaxUses <= 0
}

// BeforeCreate stores codes trimmed and upper-cased; lookups compare against
// UPPER(TRIM(code)) so rows written elsewhere still match.
func (v *Voucher) BeforeCreate(_ *gorm.DB) error {
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
