package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/shopboard/statusboard-api/internal/apperror"
)

// Meta is the envelope's meta block: request_id is always present;
// pagination and etag/generated_at fields are populated per endpoint.
type Meta struct {
	RequestID   string `json:"request_id"`
	Page        *int   `json:"page,omitempty"`
	PageSize    *int   `json:"pageSize,omitempty"`
	NextCursor  string `json:"nextCursor,omitempty"`
	ETag        string `json:"etag,omitempty"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// envelope is the tagged {data, errors, meta} response shape: exactly
// one of Data/Errors is non-null on any given response.
type envelope struct {
	Data   any          `json:"data"`
	Errors []errorEntry `json:"errors"`
	Meta   Meta         `json:"meta"`
}

type errorEntry struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Card   any    `json:"card,omitempty"`
}

// WriteOk writes a successful response: data populated, errors null.
func WriteOk(w http.ResponseWriter, r *http.Request, status int, data any, meta Meta) {
	meta.RequestID = RequestIDFrom(r.Context())
	writeJSON(w, status, envelope{Data: data, Errors: nil, Meta: meta})
}

// WriteError writes an error response: data null, errors populated with
// a single entry derived from the apperror.Error's kind via the central
// ToHTTP mapper. A conflict's embedded current-card Payload rides along
// in the error entry so the client can reconcile without a second fetch.
func WriteError(w http.ResponseWriter, r *http.Request, err *apperror.Error) {
	status := apperror.ToHTTP(err.Kind)
	meta := Meta{RequestID: RequestIDFrom(r.Context())}

	if err.Cause != nil {
		log.Ctx(r.Context()).Error().Err(err.Cause).Str("kind", string(err.Kind)).Msg(err.Detail)
	} else if status >= 500 {
		log.Ctx(r.Context()).Error().Str("kind", string(err.Kind)).Msg(err.Detail)
	} else {
		log.Ctx(r.Context()).Warn().Str("kind", string(err.Kind)).Msg(err.Detail)
	}

	writeJSON(w, status, envelope{
		Data: nil,
		Errors: []errorEntry{{
			Status: status,
			Code:   apperror.Code(err.Kind),
			Detail: err.Detail,
			Card:   err.Payload,
		}},
		Meta: meta,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}
