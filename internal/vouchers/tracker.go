package vouchers

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Tracker records voucher redemptions.
type Tracker struct {
	repo Repository
}

// NewTracker wires a usage tracker over the voucher repository.
func NewTracker(repo Repository) (*Tracker, error) {
	if repo == nil {
		return nil, errors.New("voucher repository required")
	}
	return &Tracker{repo: repo}, nil
}

// Increment consumes one use of code inside tx. It returns ErrLimitReached
// when the cap is already exhausted and ErrVoucherNotFound when the code is
// unknown; any other error comes from the store.
func (t *Tracker) Increment(ctx context.Context, tx *gorm.DB, code string) error {
	if NormalizeCode(code) == "" {
		return ErrVoucherNotFound
	}
	return t.repo.WithTx(tx).IncrementUsage(ctx, code)
}
