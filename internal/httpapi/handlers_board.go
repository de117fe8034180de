package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shopboard/statusboard-api/internal/apperror"
	"github.com/shopboard/statusboard-api/internal/appointment"
	"github.com/shopboard/statusboard-api/internal/board"
	"github.com/shopboard/statusboard-api/internal/pagination"
	"github.com/shopboard/statusboard-api/internal/tenant"
)

const dateLayout = "2006-01-02"

func parseDate(r *http.Request) (time.Time, *apperror.Error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperror.New(apperror.KindBadRequest, "date must be formatted as YYYY-MM-DD")
	}
	return d, nil
}

// handleBoard serves GET /api/admin/appointments/board. Supports
// conditional requests via ETag/If-None-Match so a client polling the
// board can skip re-downloading an unchanged view.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	date, appErr := parseDate(r)
	if appErr != nil {
		WriteError(w, r, appErr)
		return
	}

	view, err := s.Board.GetBoard(r.Context(), tenant.ID(r.Context()), date)
	if err != nil {
		WriteError(w, r, wrapBoardErr(err))
		return
	}

	// The ETag hashes the view's content only: generated_at changes on
	// every request and would otherwise make every ETag unique.
	hashed := *view
	hashed.GeneratedAt = time.Time{}
	body, err := json.Marshal(hashed)
	if err != nil {
		WriteError(w, r, apperror.Wrap(apperror.KindInternal, "failed to encode board view", err))
		return
	}
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	WriteOk(w, r, http.StatusOK, view, Meta{ETag: etag, GeneratedAt: view.GeneratedAt.Format(time.RFC3339)})
}

// handleStats serves GET /api/admin/dashboard/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	date, appErr := parseDate(r)
	if appErr != nil {
		WriteError(w, r, appErr)
		return
	}

	stats, err := s.Board.GetStats(r.Context(), tenant.ID(r.Context()), date)
	if err != nil {
		WriteError(w, r, wrapBoardErr(err))
		return
	}

	WriteOk(w, r, http.StatusOK, stats, Meta{})
}

// handleListAppointments serves the cursor-paginated appointment list.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := board.ListFilter{}

	if raw := q.Get("status"); raw != "" {
		status := appointment.Status(raw)
		if !appointment.ValidStatus(status) {
			WriteError(w, r, apperror.New(apperror.KindBadRequest, "status is not a recognized value"))
			return
		}
		filter.Status = status
	}

	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, r, apperror.New(apperror.KindBadRequest, "from must be an RFC3339 timestamp"))
			return
		}
		filter.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			WriteError(w, r, apperror.New(apperror.KindBadRequest, "to must be an RFC3339 timestamp"))
			return
		}
		filter.To = &t
	}

	if raw := q.Get("customerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			WriteError(w, r, apperror.New(apperror.KindBadRequest, "customerId must be a UUID"))
			return
		}
		filter.CustomerID = id
	}

	pageSizeRaw := q.Get("pageSize")
	if pageSizeRaw != "" {
		n, err := strconv.Atoi(pageSizeRaw)
		if err != nil || n <= 0 {
			WriteError(w, r, apperror.New(apperror.KindBadRequest, "pageSize must be a positive integer"))
			return
		}
		filter.PageSize = pagination.ClampPageSize(n)
	} else {
		filter.PageSize = pagination.DefaultPageSize
	}

	if raw := q.Get("cursor"); raw != "" {
		c, ok := pagination.Decode(raw)
		if !ok {
			WriteError(w, r, apperror.New(apperror.KindBadRequest, "cursor is malformed"))
			return
		}
		filter.Cursor = c
		filter.HasCursor = true
	}

	result, err := s.Board.List(r.Context(), tenant.ID(r.Context()), filter)
	if err != nil {
		WriteError(w, r, wrapBoardErr(err))
		return
	}

	pageSize := filter.PageSize
	WriteOk(w, r, http.StatusOK, result.Cards, Meta{PageSize: &pageSize, NextCursor: result.NextCursor})
}

// handleGetAppointment serves GET /api/admin/appointments/{id}.
func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, apperror.New(apperror.KindBadRequest, "id must be a UUID"))
		return
	}

	card, getErr := s.Board.GetByID(r.Context(), tenant.ID(r.Context()), id)
	if getErr != nil {
		WriteError(w, r, wrapBoardErr(getErr))
		return
	}

	WriteOk(w, r, http.StatusOK, card, Meta{})
}

// moveRequestBody is the PATCH .../move request payload.
type moveRequestBody struct {
	NewStatus       appointment.Status `json:"new_status"`
	Position        int                `json:"position"`
	ExpectedVersion int                `json:"expected_version"`
}

// handleMoveAppointment serves PATCH /api/admin/appointments/{id}/move.
func (s *Server) handleMoveAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, apperror.New(apperror.KindBadRequest, "id must be a UUID"))
		return
	}

	var body moveRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, apperror.Wrap(apperror.KindBadRequest, "malformed request body", err))
		return
	}

	card, moveErr := s.Board.Move(r.Context(), tenant.ID(r.Context()), id, board.MoveRequest{
		NewStatus:       body.NewStatus,
		Position:        body.Position,
		ExpectedVersion: body.ExpectedVersion,
	})
	if moveErr != nil {
		WriteError(w, r, wrapBoardErr(moveErr))
		return
	}

	WriteOk(w, r, http.StatusOK, card, Meta{})
}

// wrapBoardErr normalizes any error returned from the board package into
// an *apperror.Error; board operations already return apperror values on
// every expected failure path, so this only guards against a surprise.
// A context deadline surfacing here means either the per-request
// deadline (REQUEST_DEADLINE_MS) or a pool acquire timeout fired while a
// query was in flight — both are overload conditions, not bugs, so they
// map to resource_exhausted rather than internal.
func wrapBoardErr(err error) *apperror.Error {
	if appErr, ok := err.(*apperror.Error); ok {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Wrap(apperror.KindResourceExhausted, "request timed out waiting on the database", err)
	}
	return apperror.Wrap(apperror.KindInternal, fmt.Sprintf("unexpected error: %v", err), err)
}
