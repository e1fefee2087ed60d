package vouchers

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
)

// codeMatch is backed by the ux_vouchers_code_upper expression index.
const codeMatch = "UPPER(TRIM(code)) = ?"

// Repository reads vouchers and applies usage increments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	IncrementUsage(ctx context.Context, code string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a voucher repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByCode returns nil, nil when no voucher carries code.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where(codeMatch, NormalizeCode(code)).
		First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// IncrementUsage bumps used_count by one only while the cap allows it. The
// guard lives in the UPDATE itself so concurrent redemptions cannot overshoot
// max_uses.
func (r *repository) IncrementUsage(ctx context.Context, code string) error {
	normalized := NormalizeCode(code)
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where(codeMatch, normalized).
		Where("max_uses = 0 OR used_count < max_uses").
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	existing, err := r.FindByCode(ctx, normalized)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrVoucherNotFound
	}
	return ErrLimitReached
}
