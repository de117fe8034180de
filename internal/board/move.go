package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shopboard/statusboard-api/internal/apperror"
	"github.com/shopboard/statusboard-api/internal/appointment"
	"github.com/shopboard/statusboard-api/internal/db"
)

// maxSerializableRetries is the bounded retry count for database-level
// serialization failures on concurrent moves, per spec: "retried up to 2
// times with 10-40ms jitter before surfacing as conflict."
const maxSerializableRetries = 2

type lockedRow struct {
	status           appointment.Status
	position         int
	version          int
	startTS          *time.Time
	checkInAt        *time.Time
	checkOutAt       *time.Time
	totalAmountCents *int64
	paidAmountCents  int64
}

// Move validates and applies a status/position change with optimistic
// concurrency, following the spec's eight-step algorithm: load for
// update, check version, check transition, apply side effects, renumber
// positions, bump version, commit, return the refreshed card.
func (s *Service) Move(ctx context.Context, tenantID string, appointmentID uuid.UUID, req MoveRequest) (*Card, error) {
	if req.NewStatus != "" && !appointment.ValidStatus(req.NewStatus) {
		return nil, apperror.New(apperror.KindBadRequest, "new_status is not a recognized status")
	}
	if req.Position < 0 {
		return nil, apperror.New(apperror.KindBadRequest, "position must be non-negative")
	}

	var result *Card
	err := db.RetrySerializable(ctx, s.Pool, tenantID, maxSerializableRetries, func(ctx context.Context, tx pgx.Tx) error {
		card, err := s.moveWithinTx(ctx, tx, appointmentID, req)
		if err != nil {
			return err
		}
		result = card
		return nil
	})
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		if db.IsSerializationFailure(err) {
			return nil, apperror.Wrap(apperror.KindConflict, "could not serialize concurrent move, please refetch and retry", err)
		}
		return nil, apperror.Wrap(apperror.KindInternal, "move failed", err)
	}
	return result, nil
}

func (s *Service) moveWithinTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, req MoveRequest) (*Card, error) {
	var row lockedRow

	err := tx.QueryRow(ctx, `
		SELECT status, position, version, start_ts, check_in_at, check_out_at,
		       total_amount_cents, paid_amount_cents
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&row.status, &row.position, &row.version, &row.startTS, &row.checkInAt, &row.checkOutAt,
		&row.totalAmountCents, &row.paidAmountCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.New(apperror.KindNotFound, "appointment not found")
		}
		return nil, fmt.Errorf("load appointment for update: %w", err)
	}

	if row.version != req.ExpectedVersion {
		current, fetchErr := s.loadCard(ctx, tx, id)
		if fetchErr != nil {
			return nil, fmt.Errorf("load current card after version mismatch: %w", fetchErr)
		}
		return nil, apperror.New(apperror.KindConflict, "version mismatch, refetch and reconcile").WithPayload(current)
	}

	newStatus := req.NewStatus
	if newStatus == "" {
		newStatus = row.status
	}

	if newStatus != row.status && !appointment.CanTransition(row.status, newStatus) {
		return nil, apperror.New(apperror.KindInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", row.status, newStatus))
	}

	if row.totalAmountCents != nil && row.paidAmountCents > *row.totalAmountCents {
		return nil, apperror.New(apperror.KindInvalidState, "paid_amount_cents exceeds total_amount_cents")
	}

	eff := appointment.Apply(row.status, newStatus, row.checkInAt != nil, row.checkOutAt != nil)

	// Positions are only unique/contiguous within a (tenant, status, day)
	// lane (spec: "position is unique per (tenant, status, day)"), so the
	// lane queries below must be scoped to the same day window the board
	// uses, or a move on one day would renumber another day's lane.
	dayStart, dayEnd := s.dayWindowForRow(row)

	destLane, err := loadLane(ctx, tx, newStatus, id, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load destination lane: %w", err)
	}
	clamped := req.Position
	if clamped > len(destLane) {
		clamped = len(destLane)
	}
	destUpdates := renumberLane(destLane, id, clamped)

	var sourceUpdates []positionUpdate
	if newStatus != row.status {
		sourceLane, err := loadLane(ctx, tx, row.status, id, dayStart, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("load source lane: %w", err)
		}
		sourceUpdates = renumberLane(sourceLane, uuid.Nil, -1) // no insert, just compact
	}

	newPosition := clamped
	for _, u := range destUpdates {
		if u.id == id {
			newPosition = u.position
			break
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $1,
		    position = $2,
		    check_in_at = CASE WHEN $3 THEN now() ELSE check_in_at END,
		    check_out_at = CASE WHEN $4 THEN now() ELSE check_out_at END,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $5
	`, newStatus, newPosition, eff.SetCheckInAt, eff.SetCheckOutAt, id); err != nil {
		return nil, fmt.Errorf("update moved appointment: %w", err)
	}

	if err := applyLaneUpdates(ctx, tx, destUpdates, id); err != nil {
		return nil, fmt.Errorf("renumber destination lane: %w", err)
	}
	if err := applyLaneUpdates(ctx, tx, sourceUpdates, id); err != nil {
		return nil, fmt.Errorf("renumber source lane: %w", err)
	}

	return s.loadCard(ctx, tx, id)
}

type positionUpdate struct {
	id       uuid.UUID
	position int
}

// dayWindowForRow picks the day window a locked appointment's lane
// belongs to: its start_ts if set (the normal case), falling back to
// check_in_at for an appointment with no scheduled start, and finally to
// now() for the degenerate case where neither is set.
func (s *Service) dayWindowForRow(row lockedRow) (time.Time, time.Time) {
	anchor := row.startTS
	if anchor == nil {
		anchor = row.checkInAt
	}
	if anchor == nil {
		now := appointment.Now()
		anchor = &now
	}
	return s.dayWindow(anchor.In(s.DayBoundaryTZ))
}

// loadLane returns the siblings of excludeID in the given status lane,
// within the same tenant (via RLS) and the same day window, ordered by
// position, excluding the appointment being moved. The day-window clause
// mirrors boardQuery's carry-over OR clause so an in_progress/ready
// appointment carried over from an earlier day still lands in the
// correct lane instead of a phantom one keyed on its original start_ts.
func loadLane(ctx context.Context, tx pgx.Tx, status appointment.Status, excludeID uuid.UUID, dayStart, dayEnd time.Time) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `
		SELECT id FROM appointments
		WHERE tenant_id = current_setting('app.tenant_id')::uuid
		  AND status = $1 AND id <> $2
		  AND (
		    (start_ts >= $3 AND start_ts < $4)
		    OR (
		      status IN ('in_progress', 'ready')
		      AND check_in_at >= $3 AND check_in_at < $4
		      AND (start_ts IS NULL OR start_ts < $3 OR start_ts >= $4)
		    )
		  )
		ORDER BY position ASC, id ASC
	`, status, excludeID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// renumberLane inserts movingID at clampedPos within siblings (if
// movingID is not uuid.Nil) and returns a contiguous 0..n-1 position
// assignment for every member of the lane. Passing uuid.Nil and a
// negative clampedPos renumbers the siblings alone (used to compact a
// source lane after an appointment leaves it).
func renumberLane(siblings []uuid.UUID, movingID uuid.UUID, clampedPos int) []positionUpdate {
	ordered := make([]uuid.UUID, 0, len(siblings)+1)
	if movingID == uuid.Nil {
		ordered = append(ordered, siblings...)
	} else {
		insertAt := clampedPos
		if insertAt < 0 {
			insertAt = 0
		}
		if insertAt > len(siblings) {
			insertAt = len(siblings)
		}
		ordered = append(ordered, siblings[:insertAt]...)
		ordered = append(ordered, movingID)
		ordered = append(ordered, siblings[insertAt:]...)
	}

	updates := make([]positionUpdate, len(ordered))
	for i, id := range ordered {
		updates[i] = positionUpdate{id: id, position: i}
	}
	sort.SliceStable(updates, func(i, j int) bool { return updates[i].position < updates[j].position })
	return updates
}

// applyLaneUpdates persists position reassignments for every sibling
// other than skipID (whose position was already set by the main UPDATE)
// using a single bulk UPDATE ... FROM (SELECT UNNEST(...)) statement.
func applyLaneUpdates(ctx context.Context, tx pgx.Tx, updates []positionUpdate, skipID uuid.UUID) error {
	ids := make([]uuid.UUID, 0, len(updates))
	positions := make([]int, 0, len(updates))
	for _, u := range updates {
		if u.id == skipID {
			continue
		}
		ids = append(ids, u.id)
		positions = append(positions, u.position)
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := tx.Exec(ctx, `
		UPDATE appointments AS a
		SET position = v.position
		FROM (SELECT UNNEST($1::uuid[]) AS id, UNNEST($2::int[]) AS position) AS v
		WHERE a.id = v.id
	`, ids, positions)
	return err
}

// loadCard re-fetches the full Board Card projection for id within the
// active transaction, used both for the post-move response and for the
// conflict payload embedding the current card.
func (s *Service) loadCard(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Card, error) {
	row := tx.QueryRow(ctx, `
		SELECT
			a.id, a.status, a.position, a.start_ts, a.end_ts, a.check_in_at, a.check_out_at,
			a.total_amount_cents, a.paid_amount_cents, a.title, a.version, a.updated_at,
			c.display_name,
			CONCAT_WS(' ', v.year::text, v.make, v.model),
			COALESCE(svc.count, 0), svc.names
		FROM appointments a
		JOIN customers c ON c.id = a.customer_id
		JOIN vehicles v ON v.id = a.vehicle_id
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS count,
			       STRING_AGG(LEFT(s.name, 40), ', ' ORDER BY s.name) AS names
			FROM appointment_services s
			WHERE s.appointment_id = a.id
		) svc ON true
		WHERE a.id = $1
	`, id)

	var r boardRow
	if err := row.Scan(
		&r.id, &r.status, &r.position, &r.startTS, &r.endTS, &r.checkInAt, &r.checkOutAt,
		&r.totalAmountCents, &r.paidAmountCents, &r.title, &r.version, &r.updatedAt,
		&r.customerDisplay, &r.vehicleLabel, &r.serviceCount, &r.serviceNames,
	); err != nil {
		return nil, err
	}

	servicesSummary := ""
	if r.serviceNames != nil {
		servicesSummary = *r.serviceNames
	}

	return &Card{
		ID:               r.id,
		Status:           r.status,
		Position:         r.position,
		CustomerDisplay:  r.customerDisplay,
		VehicleLabel:     r.vehicleLabel,
		Headline:         r.title,
		ServicesSummary:  servicesSummary,
		StartTS:          r.startTS,
		EndTS:            r.endTS,
		CheckInAt:        r.checkInAt,
		CheckOutAt:       r.checkOutAt,
		TotalAmountCents: r.totalAmountCents,
		PaidAmountCents:  r.paidAmountCents,
		Version:          r.version,
		UpdatedAt:        r.updatedAt,
	}, nil
}
