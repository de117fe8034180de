package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shopboard/statusboard-api/internal/apperror"
	"github.com/shopboard/statusboard-api/internal/appointment"
)

func TestMoveSuccessAdvancesVersionAndSetsCheckIn(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)
	id := fx.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(9*time.Hour))

	svc := NewService(pool, time.UTC)
	card, err := svc.Move(context.Background(), tenantID, id, MoveRequest{
		NewStatus:       appointment.StatusInProgress,
		Position:        0,
		ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if card.Status != appointment.StatusInProgress {
		t.Errorf("expected status in_progress, got %s", card.Status)
	}
	if card.Version != 1 {
		t.Errorf("expected version 1 after move, got %d", card.Version)
	}
	if card.CheckInAt == nil {
		t.Error("expected check_in_at to be set on scheduled -> in_progress")
	}
}

func TestMoveVersionMismatchReturnsConflictWithCard(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)
	id := fx.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(9*time.Hour))

	svc := NewService(pool, time.UTC)
	_, err := svc.Move(context.Background(), tenantID, id, MoveRequest{
		NewStatus:       appointment.StatusInProgress,
		Position:        0,
		ExpectedVersion: 99,
	})
	if err == nil {
		t.Fatal("expected version mismatch to fail")
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.Error, got %T", err)
	}
	if appErr.Kind != apperror.KindConflict {
		t.Errorf("expected conflict kind, got %s", appErr.Kind)
	}
	if appErr.Payload == nil {
		t.Error("expected conflict payload to carry the current card")
	}
}

func TestMoveInvalidTransitionRejected(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)
	id := fx.insertAppointment(t, appointment.StatusCompleted, 0, day.Add(9*time.Hour))

	svc := NewService(pool, time.UTC)
	_, err := svc.Move(context.Background(), tenantID, id, MoveRequest{
		NewStatus:       appointment.StatusScheduled,
		Position:        0,
		ExpectedVersion: 0,
	})
	if err == nil {
		t.Fatal("expected invalid transition to fail")
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.Error, got %T", err)
	}
	if appErr.Kind != apperror.KindInvalidTransition {
		t.Errorf("expected invalid_transition kind, got %s", appErr.Kind)
	}
}

func TestMoveReindexesDestinationLane(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)

	a := fx.insertAppointment(t, appointment.StatusInProgress, 0, day.Add(9*time.Hour))
	b := fx.insertAppointment(t, appointment.StatusInProgress, 1, day.Add(10*time.Hour))
	moving := fx.insertAppointment(t, appointment.StatusScheduled, 0, day.Add(11*time.Hour))

	svc := NewService(pool, time.UTC)
	card, err := svc.Move(context.Background(), tenantID, moving, MoveRequest{
		NewStatus:       appointment.StatusInProgress,
		Position:        1,
		ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if card.Position != 1 {
		t.Errorf("expected moved card to land at position 1, got %d", card.Position)
	}

	view, err := svc.GetBoard(context.Background(), tenantID, day)
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	lane := view.Columns[appointment.StatusInProgress]
	if len(lane) != 3 {
		t.Fatalf("expected 3 cards in_progress lane, got %d", len(lane))
	}
	if lane[0].ID != a || lane[1].ID != moving || lane[2].ID != b {
		t.Errorf("expected lane order [a, moving, b], got [%s, %s, %s]", lane[0].ID, lane[1].ID, lane[2].ID)
	}
}

// TestMoveDoesNotCorruptAnotherDaysLane guards against lane queries that
// filter only by (tenant, status): a move on day 2 must not renumber or
// reorder day 1's lane in the same status, since position is unique per
// (tenant, status, day), not per (tenant, status) alone.
func TestMoveDoesNotCorruptAnotherDaysLane(t *testing.T) {
	pool := getTestPool(t)
	tenantID := uuid.New().String()
	day1 := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	fx := newFixture(t, pool, tenantID)

	day1First := fx.insertAppointment(t, appointment.StatusInProgress, 0, day1.Add(9*time.Hour))
	day1Second := fx.insertAppointment(t, appointment.StatusInProgress, 1, day1.Add(10*time.Hour))

	day2Existing := fx.insertAppointment(t, appointment.StatusInProgress, 0, day2.Add(9*time.Hour))
	day2Moving := fx.insertAppointment(t, appointment.StatusScheduled, 0, day2.Add(10*time.Hour))

	svc := NewService(pool, time.UTC)
	_, err := svc.Move(context.Background(), tenantID, day2Moving, MoveRequest{
		NewStatus:       appointment.StatusInProgress,
		Position:        0,
		ExpectedVersion: 0,
	})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}

	day1View, err := svc.GetBoard(context.Background(), tenantID, day1)
	if err != nil {
		t.Fatalf("GetBoard(day1): %v", err)
	}
	day1Lane := day1View.Columns[appointment.StatusInProgress]
	if len(day1Lane) != 2 {
		t.Fatalf("expected day 1's lane to be untouched at 2 cards, got %d", len(day1Lane))
	}
	if day1Lane[0].ID != day1First || day1Lane[0].Position != 0 {
		t.Errorf("expected day 1's first card unchanged at position 0, got id=%s position=%d", day1Lane[0].ID, day1Lane[0].Position)
	}
	if day1Lane[1].ID != day1Second || day1Lane[1].Position != 1 {
		t.Errorf("expected day 1's second card unchanged at position 1, got id=%s position=%d", day1Lane[1].ID, day1Lane[1].Position)
	}

	day2View, err := svc.GetBoard(context.Background(), tenantID, day2)
	if err != nil {
		t.Fatalf("GetBoard(day2): %v", err)
	}
	day2Lane := day2View.Columns[appointment.StatusInProgress]
	if len(day2Lane) != 2 {
		t.Fatalf("expected day 2's lane to have 2 cards after the move, got %d", len(day2Lane))
	}
	if day2Lane[0].ID != day2Moving || day2Lane[1].ID != day2Existing {
		t.Errorf("expected day 2's lane order [moving, existing], got [%s, %s]", day2Lane[0].ID, day2Lane[1].ID)
	}
}
