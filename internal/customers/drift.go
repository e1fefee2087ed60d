package customers

import (
	"context"

	"github.com/shopspring/decimal"
)

// Drift is a phone whose ledger counters disagree with its orders.
type Drift struct {
	Phone        string          `gorm:"column:phone"`
	LedgerOrders int             `gorm:"column:ledger_orders"`
	LedgerSpent  decimal.Decimal `gorm:"column:ledger_spent"`
	ActualOrders int             `gorm:"column:actual_orders"`
	ActualSpent  decimal.Decimal `gorm:"column:actual_spent"`
}

// MissingOrders is how many orders the ledger has not counted.
func (d Drift) MissingOrders() int {
	return d.ActualOrders - d.LedgerOrders
}

const driftQuery = `
SELECT phone, ledger_orders, ledger_spent, actual_orders, actual_spent FROM (
	SELECT c.phone AS phone,
		c.total_orders AS ledger_orders,
		c.total_spent AS ledger_spent,
		COALESCE(o.order_count, 0) AS actual_orders,
		COALESCE(o.order_sum, 0) AS actual_spent
	FROM customers c
	LEFT JOIN (
		SELECT customer_phone, COUNT(*) AS order_count, SUM(total) AS order_sum
		FROM orders
		GROUP BY customer_phone
	) o ON o.customer_phone = c.phone
	WHERE c.total_orders <> COALESCE(o.order_count, 0)
		OR c.total_spent <> COALESCE(o.order_sum, 0)
	UNION ALL
	SELECT o.customer_phone AS phone,
		0 AS ledger_orders,
		0 AS ledger_spent,
		COUNT(*) AS actual_orders,
		SUM(o.total) AS actual_spent
	FROM orders o
	WHERE NOT EXISTS (SELECT 1 FROM customers c WHERE c.phone = o.customer_phone)
	GROUP BY o.customer_phone
) drift
ORDER BY phone
LIMIT ?`

// FindDrift lists up to limit phones whose counters disagree with the orders
// table, including phones with orders but no ledger row.
func (r *repository) FindDrift(ctx context.Context, limit int) ([]Drift, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []Drift
	if err := r.db.WithContext(ctx).Raw(driftQuery, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
