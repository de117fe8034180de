package board

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shopboard/statusboard-api/internal/appointment"
	"github.com/shopboard/statusboard-api/internal/db"
)

// Service exposes the Board Read Aggregator and Move Executor
// operations over a tenant-bound pool.
type Service struct {
	Pool *db.Pool
	// DayBoundaryTZ is the IANA zone used to compute the day window
	// when callers pass a bare date. Defaults to UTC.
	DayBoundaryTZ *time.Location
}

// NewService constructs a Service, defaulting DayBoundaryTZ to UTC.
func NewService(pool *db.Pool, tz *time.Location) *Service {
	if tz == nil {
		tz = time.UTC
	}
	return &Service{Pool: pool, DayBoundaryTZ: tz}
}

// dayWindow returns the [start, end) UTC instants bounding the given
// calendar date, interpreted in the service's configured timezone.
func (s *Service) dayWindow(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.DayBoundaryTZ)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

type boardRow struct {
	id               uuid.UUID
	status           appointment.Status
	position         int
	startTS          *time.Time
	endTS            *time.Time
	checkInAt        *time.Time
	checkOutAt       *time.Time
	totalAmountCents *int64
	paidAmountCents  int64
	title            string
	version          int
	updatedAt        time.Time
	customerDisplay  string
	vehicleLabel     string
	serviceCount     int
	serviceNames     *string
}

const boardQuery = `
SELECT
	a.id, a.status, a.position, a.start_ts, a.end_ts, a.check_in_at, a.check_out_at,
	a.total_amount_cents, a.paid_amount_cents, a.title, a.version, a.updated_at,
	c.display_name,
	CONCAT_WS(' ', v.year::text, v.make, v.model) AS vehicle_label,
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
  AND (
    (a.start_ts >= $1 AND a.start_ts < $2)
    OR (
      a.status IN ('in_progress', 'ready')
      AND a.check_in_at >= $1 AND a.check_in_at < $2
      AND (a.start_ts IS NULL OR a.start_ts < $1 OR a.start_ts >= $2)
    )
  )
ORDER BY a.status, a.position ASC, a.start_ts ASC NULLS LAST, a.id ASC
`

// GetBoard computes the Board View for (tenant, date). Implemented as a
// single aggregate query: appointment rows joined with customer, vehicle
// and a lateral-aggregated service summary in one round trip; column
// totals are then derived in-process from that same result set, so no
// second query is needed at all.
func (s *Service) GetBoard(ctx context.Context, tenantID string, date time.Time) (*View, error) {
	start, end := s.dayWindow(date)
	generatedAt := appointment.Now()

	view := newEmptyView(generatedAt)

	err := s.Pool.WithTenantConn(ctx, tenantID, func(ctx context.Context, q db.Querier) error {
		rows, err := q.Query(ctx, boardQuery, start, end)
		if err != nil {
			return fmt.Errorf("query board: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r boardRow
			if err := rows.Scan(
				&r.id, &r.status, &r.position, &r.startTS, &r.endTS, &r.checkInAt, &r.checkOutAt,
				&r.totalAmountCents, &r.paidAmountCents, &r.title, &r.version, &r.updatedAt,
				&r.customerDisplay, &r.vehicleLabel, &r.serviceCount, &r.serviceNames,
			); err != nil {
				return fmt.Errorf("scan board row: %w", err)
			}

			servicesSummary := ""
			if r.serviceNames != nil {
				servicesSummary = *r.serviceNames
			}

			card := Card{
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

			view.Columns[r.status] = append(view.Columns[r.status], card)
			cs := view.Summaries[r.status]
			cs.Count++
			if r.totalAmountCents != nil {
				cs.TotalAmountCents += *r.totalAmountCents
			}
			view.Summaries[r.status] = cs
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	for status := range view.Columns {
		cards := view.Columns[status]
		sort.SliceStable(cards, func(i, j int) bool {
			if cards[i].Position != cards[j].Position {
				return cards[i].Position < cards[j].Position
			}
			return cards[i].ID.String() < cards[j].ID.String()
		})
		view.Columns[status] = cards
	}

	return view, nil
}

const statsAggregateQuery = `
SELECT
	COUNT(*) FILTER (WHERE status = 'completed' AND check_out_at >= $1 AND check_out_at < $2) AS jobs_today,
	COUNT(*) FILTER (WHERE check_in_at IS NOT NULL AND check_in_at <= now() AND check_out_at IS NULL) AS on_prem,
	COALESCE(SUM(GREATEST(COALESCE(total_amount_cents, 0) - paid_amount_cents, 0))
		FILTER (WHERE status <> 'canceled' AND start_ts >= $1 AND start_ts < $2), 0) AS unpaid_total_cents,
	AVG(EXTRACT(EPOCH FROM (check_out_at - check_in_at)) / 60.0)
		FILTER (WHERE status = 'completed' AND check_out_at >= $1 AND check_out_at < $2) AS avg_cycle_minutes
FROM appointments
WHERE tenant_id = current_setting('app.tenant_id')::uuid
`

const statusCountsQuery = `
SELECT status, COUNT(*)
FROM appointments
WHERE tenant_id = current_setting('app.tenant_id')::uuid
  AND start_ts >= $1 AND start_ts < $2
GROUP BY status
`

// GetStats computes the Dashboard Stats for (tenant, date): one
// aggregate query for the scalar metrics, plus one GROUP BY query for
// the per-status breakdown.
func (s *Service) GetStats(ctx context.Context, tenantID string, date time.Time) (*Stats, error) {
	start, end := s.dayWindow(date)
	stats := newEmptyStats()

	err := s.Pool.WithTenantConn(ctx, tenantID, func(ctx context.Context, q db.Querier) error {
		if err := q.QueryRow(ctx, statsAggregateQuery, start, end).Scan(
			&stats.JobsToday, &stats.OnPrem, &stats.UnpaidTotalCents, &stats.AvgCycleMinutes,
		); err != nil {
			return fmt.Errorf("query stats aggregate: %w", err)
		}

		rows, err := q.Query(ctx, statusCountsQuery, start, end)
		if err != nil {
			return fmt.Errorf("query status counts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var status appointment.Status
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return fmt.Errorf("scan status count: %w", err)
			}
			stats.StatusCounts[status] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
