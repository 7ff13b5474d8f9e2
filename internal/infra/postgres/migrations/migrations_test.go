package migrations_test

import (
	"testing"

	"normalz-service/internal/infra/postgres/migrations"
)

func TestMigrationsRegistered(t *testing.T) {
	sorted := migrations.Migrations.Sorted()
	if len(sorted) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(sorted))
	}
	if sorted[0].Name != "2024112201" || sorted[0].Comment != "create_questions" {
		t.Fatalf("unexpected migration %s_%s", sorted[0].Name, sorted[0].Comment)
	}
}
