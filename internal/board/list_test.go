package board

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shopboard/statusboard-api/internal/appointment"
	"github.com/shopboard/statusboard-api/internal/pagination"
)

func TestListPaginatesWithCursor(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)

	for i := 0; i < 3; i++ {
		fx.insertAppointment(t, appointment.StatusScheduled, i, day.Add(time.Duration(i)*time.Hour))
	}

	svc := NewService(pool, time.UTC)

	page1, err := svc.List(context.Background(), tenantID, ListFilter{PageSize: 2})
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if len(page1.Cards) != 2 {
		t.Fatalf("expected 2 cards on first page, got %d", len(page1.Cards))
	}
	if page1.NextCursor == "" {
		t.Fatal("expected a next cursor when more rows remain")
	}

	cursor, ok := pagination.Decode(page1.NextCursor)
	if !ok {
		t.Fatal("expected next cursor to decode")
	}

	page2, err := svc.List(context.Background(), tenantID, ListFilter{PageSize: 2, Cursor: cursor, HasCursor: true})
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2.Cards) != 1 {
		t.Fatalf("expected 1 remaining card on second page, got %d", len(page2.Cards))
	}
	if page2.NextCursor != "" {
		t.Error("expected no next cursor once the result set is exhausted")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)

	fx.insertAppointment(t, appointment.StatusScheduled, 0, day)
	fx.insertAppointment(t, appointment.StatusCompleted, 0, day)

	svc := NewService(pool, time.UTC)
	result, err := svc.List(context.Background(), tenantID, ListFilter{Status: appointment.StatusCompleted, PageSize: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Cards) != 1 {
		t.Fatalf("expected 1 completed card, got %d", len(result.Cards))
	}
	if result.Cards[0].Status != appointment.StatusCompleted {
		t.Errorf("expected completed status, got %s", result.Cards[0].Status)
	}
}
