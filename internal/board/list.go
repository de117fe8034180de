package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shopboard/statusboard-api/internal/apperror"
	"github.com/shopboard/statusboard-api/internal/appointment"
	"github.com/shopboard/statusboard-api/internal/db"
	"github.com/shopboard/statusboard-api/internal/pagination"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ListFilter narrows a List call; zero-valued fields are unfiltered.
type ListFilter struct {
	Status     appointment.Status
	From       *time.Time
	To         *time.Time
	CustomerID uuid.UUID
	Cursor     pagination.Cursor
	HasCursor  bool
	PageSize   int
}

// ListResult is one page of appointment cards ordered by
// (updated_at, id) ascending, plus the cursor for the next page.
type ListResult struct {
	Cards      []Card
	NextCursor string
}

const listQueryBase = `
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
WHERE a.tenant_id = current_setting('app.tenant_id')::uuid
`

// List returns a cursor-paginated, filtered slice of appointment cards
// ordered by (updated_at, id). Filters are applied as additional WHERE
// clauses; pageSize is expected to already be validated/clamped by the
// caller via pagination.ClampPageSize.
func (s *Service) List(ctx context.Context, tenantID string, filter ListFilter) (*ListResult, error) {
	var b strings.Builder
	b.WriteString(listQueryBase)
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&b, " AND a.status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&b, " AND a.start_ts >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&b, " AND a.start_ts < $%d", len(args))
	}
	if filter.CustomerID != uuid.Nil {
		args = append(args, filter.CustomerID)
		fmt.Fprintf(&b, " AND a.customer_id = $%d", len(args))
	}
	if filter.HasCursor {
		args = append(args, filter.Cursor.Ms, filter.Cursor.UID)
		msIdx := len(args) - 1
		uidIdx := len(args)
		fmt.Fprintf(&b, " AND (date_trunc('milliseconds', a.updated_at) > to_timestamp($%d / 1000.0) OR (date_trunc('milliseconds', a.updated_at) = to_timestamp($%d / 1000.0) AND a.id > $%d))",
			msIdx, msIdx, uidIdx)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	args = append(args, pageSize+1)
	// The cursor carries updated_at at millisecond precision, so ordering
	// and comparison both use the millisecond-truncated value.
	fmt.Fprintf(&b, " ORDER BY date_trunc('milliseconds', a.updated_at) ASC, a.id ASC LIMIT $%d", len(args))

	query := b.String()
	cards := []Card{}

	err := s.Pool.WithTenantConn(ctx, tenantID, func(ctx context.Context, q db.Querier) error {
		rows, err := q.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query appointment list: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r boardRow
			if err := rows.Scan(
				&r.id, &r.status, &r.position, &r.startTS, &r.endTS, &r.checkInAt, &r.checkOutAt,
				&r.totalAmountCents, &r.paidAmountCents, &r.title, &r.version, &r.updatedAt,
				&r.customerDisplay, &r.vehicleLabel, &r.serviceCount, &r.serviceNames,
			); err != nil {
				return fmt.Errorf("scan appointment list row: %w", err)
			}

			servicesSummary := ""
			if r.serviceNames != nil {
				servicesSummary = *r.serviceNames
			}

			cards = append(cards, Card{
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
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	result := &ListResult{Cards: cards}
	if len(cards) > pageSize {
		last := cards[pageSize-1]
		result.Cards = cards[:pageSize]
		result.NextCursor = pagination.Encode(pagination.Cursor{
			Ms:  last.UpdatedAt.UnixMilli(),
			UID: last.ID,
		})
	}

	return result, nil
}

// GetByID fetches a single appointment card by id, scoped to the
// tenant via RLS.
func (s *Service) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Card, error) {
	const query = listQueryBase + " AND a.id = $1"

	var card *Card
	err := s.Pool.WithTenantConn(ctx, tenantID, func(ctx context.Context, q db.Querier) error {
		var r boardRow
		if err := q.QueryRow(ctx, query, id).Scan(
			&r.id, &r.status, &r.position, &r.startTS, &r.endTS, &r.checkInAt, &r.checkOutAt,
			&r.totalAmountCents, &r.paidAmountCents, &r.title, &r.version, &r.updatedAt,
			&r.customerDisplay, &r.vehicleLabel, &r.serviceCount, &r.serviceNames,
		); err != nil {
			return err
		}

		servicesSummary := ""
		if r.serviceNames != nil {
			servicesSummary = *r.serviceNames
		}

		card = &Card{
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
		}
		return nil
	})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.New(apperror.KindNotFound, "appointment not found")
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return card, nil
}
