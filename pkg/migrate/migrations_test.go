package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/bazaar-backend/pkg/migrate"
)

func readMigrations(t *testing.T) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration files found")
	}
	var b strings.Builder
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read migration file: %v", err)
		}
		b.Write(data)
	}
	return b.String()
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsCreateSchema(t *testing.T) {
	content := readMigrations(t)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE TABLE IF NOT EXISTS customer_addresses",
		"CREATE TABLE IF NOT EXISTS cart_lines",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_lines_cart_product ON cart_lines (cart_id, product_id)",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_ref",
		"PRIMARY KEY (order_id, vendor_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_order_items_item_ref",
		"CREATE INDEX IF NOT EXISTS idx_order_items_tracking_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_coupons_code",
		"PRIMARY KEY (order_id, coupon_id)",
		"PRIMARY KEY (order_item_id, coupon_id)",
		"CREATE TABLE IF NOT EXISTS notifications",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TABLE IF NOT EXISTS payment_sessions",
		"PRIMARY KEY (provider, session_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_provider_reference ON orders (payment_method, provider_reference)",
		"ADD COLUMN IF NOT EXISTS claimed_until",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Refund Table!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_refund_table.sql") {
		t.Fatalf("unexpected migration path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected empty sanitized name to be rejected")
	}
}
