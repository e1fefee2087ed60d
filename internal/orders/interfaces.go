package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/freshfeet/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders and order_items tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

// NumberGenerator yields candidate order numbers. Candidates are not
// guaranteed unique; the orders table has the final say.
type NumberGenerator interface {
	Next() string
}
