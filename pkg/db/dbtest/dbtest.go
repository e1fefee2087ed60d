// Package dbtest opens isolated in-memory SQLite databases carrying the
// storefront schema for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Schema mirrors pkg/migrate/migrations in SQLite syntax. Timestamps use the
// TIMESTAMP type so the driver parses them back into time.Time.
var Schema = []string{
	`CREATE TABLE vouchers (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		discount_type TEXT NOT NULL CHECK (discount_type IN ('percentage', 'fixed')),
		discount_value NUMERIC NOT NULL,
		min_order_amount NUMERIC NOT NULL DEFAULT 0,
		max_uses INTEGER NOT NULL DEFAULT 0,
		used_count INTEGER NOT NULL DEFAULT 0 CHECK (used_count >= 0),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		expires_at TIMESTAMP,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		CHECK (max_uses = 0 OR used_count <= max_uses)
	)`,
	`CREATE UNIQUE INDEX ux_vouchers_code_upper ON vouchers (UPPER(TRIM(code)))`,
	`CREATE TABLE customers (
		id TEXT PRIMARY KEY,
		phone TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		city TEXT NOT NULL,
		total_orders INTEGER NOT NULL DEFAULT 0,
		total_spent NUMERIC NOT NULL DEFAULT 0,
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_customers_phone ON customers (phone)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL,
		idempotency_key TEXT,
		customer_name TEXT NOT NULL,
		customer_email TEXT,
		customer_phone TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		city TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_proof TEXT,
		subtotal NUMERIC NOT NULL,
		delivery_fee NUMERIC NOT NULL,
		discount NUMERIC NOT NULL DEFAULT 0,
		total NUMERIC NOT NULL,
		voucher_code TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		tracking_number TEXT,
		courier TEXT,
		notes TEXT,
		created_at TIMESTAMP,
		updated_at TIMESTAMP,
		CHECK (discount <= subtotal)
	)`,
	`CREATE UNIQUE INDEX ux_orders_order_number ON orders (order_number)`,
	`CREATE UNIQUE INDEX ux_orders_idempotency_key ON orders (idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit_price NUMERIC NOT NULL,
		image TEXT,
		size TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		line_total NUMERIC NOT NULL,
		created_at TIMESTAMP
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP,
		published_at TIMESTAMP,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		next_attempt_at TIMESTAMP
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at TIMESTAMP,
		created_at TIMESTAMP
	)`,
}

// Open returns a fresh schema-loaded database private to t. A single pooled
// connection keeps the in-memory database alive and serialises writers.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
