// Package board implements the Board Read Aggregator and the
// Appointment Move Executor: it computes the Board View and Dashboard
// Stats projections and applies optimistic-concurrency-controlled
// status/position moves.
package board

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopboard/statusboard-api/internal/appointment"
)

// Card is the Board Card projection returned to clients for each
// appointment. It is never persisted — derived fresh on every read.
type Card struct {
	ID               uuid.UUID          `json:"id"`
	Status           appointment.Status `json:"status"`
	Position         int                `json:"position"`
	CustomerDisplay  string             `json:"customerDisplay"`
	VehicleLabel     string             `json:"vehicleLabel"`
	Headline         string             `json:"headline"`
	ServicesSummary  string             `json:"servicesSummary"`
	StartTS          *time.Time         `json:"startTs"`
	EndTS            *time.Time         `json:"endTs"`
	CheckInAt        *time.Time         `json:"checkInAt"`
	CheckOutAt       *time.Time         `json:"checkOutAt"`
	TotalAmountCents *int64             `json:"totalAmountCents"`
	PaidAmountCents  int64              `json:"paidAmountCents"`
	Version          int                `json:"version"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// ColumnSummary is the per-status-column rollup in a Board View.
type ColumnSummary struct {
	Count            int   `json:"count"`
	TotalAmountCents int64 `json:"totalAmountCents"`
}

// allStatuses defines column ordering and guarantees every column is
// present in the response even when empty.
var allStatuses = []appointment.Status{
	appointment.StatusScheduled,
	appointment.StatusInProgress,
	appointment.StatusReady,
	appointment.StatusCompleted,
	appointment.StatusNoShow,
	appointment.StatusCanceled,
}

// View is the Board View: appointments for a (tenant, date) grouped by
// status, with per-column totals.
type View struct {
	Columns     map[appointment.Status][]Card        `json:"columns"`
	Summaries   map[appointment.Status]ColumnSummary  `json:"columnSummaries"`
	GeneratedAt time.Time                             `json:"generatedAt"`
}

// Stats is the Dashboard Stats projection for a (tenant, date).
type Stats struct {
	JobsToday        int                          `json:"jobsToday"`
	OnPrem           int                          `json:"onPrem"`
	StatusCounts     map[appointment.Status]int    `json:"statusCounts"`
	UnpaidTotalCents int64                         `json:"unpaidTotalCents"`
	AvgCycleMinutes  *float64                      `json:"avgCycleMinutes"`
}

// MoveRequest is the input to Move.
type MoveRequest struct {
	NewStatus       appointment.Status
	Position        int
	ExpectedVersion int
}

// newEmptyView builds a View with every column present as an empty slice
// and every summary zeroed, per spec: "empty columns are present with
// empty arrays."
func newEmptyView(generatedAt time.Time) *View {
	v := &View{
		Columns:     make(map[appointment.Status][]Card, len(allStatuses)),
		Summaries:   make(map[appointment.Status]ColumnSummary, len(allStatuses)),
		GeneratedAt: generatedAt,
	}
	for _, s := range allStatuses {
		v.Columns[s] = []Card{}
		v.Summaries[s] = ColumnSummary{}
	}
	return v
}

func newEmptyStats() *Stats {
	s := &Stats{StatusCounts: make(map[appointment.Status]int, len(allStatuses))}
	for _, st := range allStatuses {
		s.StatusCounts[st] = 0
	}
	return s
}
