package board

import (
	"context"
	"os"
	"testing"

	"github.com/shopboard/statusboard-api/internal/db"
)

// getTestPool connects to TEST_DATABASE_URL, skipping the test when it
// isn't set (no Postgres available in this environment). Tables are
// truncated before each use so tests don't see each other's fixtures.
func getTestPool(t *testing.T) *db.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	underlying, err := db.Open(context.Background(), dbURL, db.Options{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	pool := db.NewPool(underlying, db.Options{})

	if _, err := underlying.Exec(context.Background(),
		`TRUNCATE appointment_services, appointments, vehicles, customers RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("failed to truncate fixture tables: %v", err)
	}

	t.Cleanup(func() { underlying.Close() })
	return pool
}
