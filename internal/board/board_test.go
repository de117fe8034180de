package board

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shopboard/statusboard-api/internal/appointment"
	"github.com/shopboard/statusboard-api/internal/db"
)

type fixture struct {
	pool       *db.Pool
	tenantID   string
	customerID uuid.UUID
	vehicleID  uuid.UUID
}

// newFixture sets up one customer/vehicle for tenantID, using a
// session-scoped (not transaction-scoped) GUC since fixture setup runs
// outside any application transaction.
func newFixture(t *testing.T, pool *db.Pool, tenantID string) *fixture {
	t.Helper()
	ctx := context.Background()

	if _, err := pool.Exec(ctx, `SELECT set_config('app.tenant_id', $1, false)`, tenantID); err != nil {
		t.Fatalf("set fixture tenant GUC: %v", err)
	}

	customerID := uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO customers (id, tenant_id, display_name) VALUES ($1, $2, 'Jane Doe')`,
		customerID, tenantID); err != nil {
		t.Fatalf("insert fixture customer: %v", err)
	}

	vehicleID := uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO vehicles (id, tenant_id, customer_id, year, make, model) VALUES ($1, $2, $3, 2020, 'Honda', 'Civic')`,
		vehicleID, tenantID, customerID); err != nil {
		t.Fatalf("insert fixture vehicle: %v", err)
	}

	return &fixture{pool: pool, tenantID: tenantID, customerID: customerID, vehicleID: vehicleID}
}

func (f *fixture) insertAppointment(t *testing.T, status appointment.Status, position int, startTS time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	if _, err := f.pool.Exec(ctx, `
		INSERT INTO appointments (id, tenant_id, customer_id, vehicle_id, status, position, title, start_ts, total_amount_cents, paid_amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6, 'Oil change', $7, 10000, 0)
	`, id, f.tenantID, f.customerID, f.vehicleID, status, position, startTS); err != nil {
		t.Fatalf("insert fixture appointment: %v", err)
	}
	return id
}

func TestGetBoardTenantIsolation(t *testing.T) {
	pool := getTestPool(t)
	tenantA := uuid.New().String()
	tenantB := uuid.New().String()

	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fxA := newFixture(t, pool, tenantA)
	fxA.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(9*time.Hour))

	fxB := newFixture(t, pool, tenantB)
	fxB.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(10*time.Hour))

	svc := NewService(pool, time.UTC)

	viewA, err := svc.GetBoard(context.Background(), tenantA, day)
	if err != nil {
		t.Fatalf("GetBoard(tenantA): %v", err)
	}
	if len(viewA.Columns[appointment.StatusScheduled]) != 1 {
		t.Fatalf("expected tenant A to see exactly its own appointment, got %d", len(viewA.Columns[appointment.StatusScheduled]))
	}
}

func TestGetBoardEveryColumnPresent(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	newFixture(t, pool, tenantID)

	svc := NewService(pool, time.UTC)
	view, err := svc.GetBoard(context.Background(), tenantID, day)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}

	for _, status := range allStatuses {
		if _, ok := view.Columns[status]; !ok {
			t.Errorf("expected column %s to be present even when empty", status)
		}
	}
}

func TestGetBoardOrdersByPosition(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)

	second := fx.insertAppointment(t, appointment.StatusScheduled, 1, day.Add(9*time.Hour))
	first := fx.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(9*time.Hour))

	svc := NewService(pool, time.UTC)
	view, err := svc.GetBoard(context.Background(), tenantID, day)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}

	cards := view.Columns[appointment.StatusScheduled]
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if cards[0].ID != first || cards[1].ID != second {
		t.Errorf("expected cards ordered by position (first, second), got (%s, %s)", cards[0].ID, cards[1].ID)
	}
}

func TestGetStatsUnpaidTotal(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)
	fx.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(9*time.Hour))

	svc := NewService(pool, time.UTC)
	stats, err := svc.GetStats(context.Background(), tenantID, day)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.UnpaidTotalCents != 10000 {
		t.Errorf("expected unpaid total 10000, got %d", stats.UnpaidTotalCents)
	}
}
