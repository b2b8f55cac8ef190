package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clearledger/reconcile-backend/pkg/migrate"
)

func TestPaymentEventsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_payment_events.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment_events migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_events",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_events_event_id",
		"CREATE INDEX IF NOT EXISTS ix_payment_events_status_retry ON payment_events (status, next_retry_at)",
		"CHECK (attempts >= 0)",
		"DROP TABLE IF EXISTS payment_events",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsCommissionIndex(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE INDEX IF NOT EXISTS ix_orders_commission_release ON orders (commission_status, commission_available_at)",
		"FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE SET NULL",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
