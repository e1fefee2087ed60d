package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freshfeet/storefront-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestCheckoutMigrationsCarryInvariants(t *testing.T) {
	tests := []struct {
		glob   string
		checks []string
	}{
		{
			glob: "*_create_orders.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS orders",
				"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number ON orders (order_number)",
				"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_idempotency_key",
				"CHECK (discount <= subtotal)",
				"CHECK (total = subtotal + delivery_fee - discount)",
				"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
				"DROP TABLE IF EXISTS orders",
			},
		},
		{
			glob: "*_create_customers.sql",
			checks: []string{
				"CREATE UNIQUE INDEX IF NOT EXISTS ux_customers_phone ON customers (phone)",
				"DROP TABLE IF EXISTS customers",
			},
		},
		{
			glob: "*_create_vouchers.sql",
			checks: []string{
				"CREATE UNIQUE INDEX IF NOT EXISTS ux_vouchers_code ON vouchers (code)",
				"CHECK (max_uses = 0 OR used_count <= max_uses)",
				"DROP TABLE IF EXISTS vouchers",
			},
		},
		{
			glob: "*_create_outbox.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS outbox_events",
				"CREATE TABLE IF NOT EXISTS outbox_dlq",
				"WHERE published_at IS NULL",
			},
		},
		{
			glob: "*_outbox_retry_schedule.sql",
			checks: []string{
				"ADD COLUMN IF NOT EXISTS next_attempt_at TIMESTAMPTZ",
				"DROP COLUMN IF EXISTS next_attempt_at",
			},
		},
		{
			glob: "*_vouchers_code_case_insensitive.sql",
			checks: []string{
				"UPDATE vouchers SET code = UPPER(TRIM(code))",
				"CREATE UNIQUE INDEX IF NOT EXISTS ux_vouchers_code_upper ON vouchers (UPPER(TRIM(code)))",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.glob, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join("migrations", tt.glob))
			if err != nil {
				t.Fatalf("glob migrations: %v", err)
			}
			if len(matches) != 1 {
				t.Fatalf("expected one migration for %s, got %d", tt.glob, len(matches))
			}
			data, err := os.ReadFile(matches[0])
			if err != nil {
				t.Fatalf("read migration file: %v", err)
			}
			content := string(data)
			for _, sub := range tt.checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Courier Column!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_courier_column.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}
