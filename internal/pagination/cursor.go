// Package pagination implements opaque cursor encoding for list
// endpoints, plus the pageSize clamping rule shared by every paginated
// route.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultPageSize is used when the client omits pageSize.
	DefaultPageSize = 20
	// MaxPageSize is the upper clamp; values above this are silently
	// clamped down rather than rejected.
	MaxPageSize = 100
)

// Cursor represents a position in an ordered (updated_at_ms, uid)
// result stream. Format: base64("<updated_at_ms>|<uuid>"), which keeps
// pagination deterministic even when many rows share a timestamp.
type Cursor struct {
	Ms  int64
	UID uuid.UUID
}

// Encode creates a base64-encoded cursor string. Returns "" for the
// zero-value cursor (i.e. "no cursor").
func Encode(c Cursor) string {
	if c.Ms == 0 && c.UID == uuid.Nil {
		return ""
	}
	raw := fmt.Sprintf("%d|%s", c.Ms, c.UID.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a cursor string. Returns a zero-value cursor and false
// if s is empty or malformed.
func Decode(s string) (Cursor, bool) {
	if s == "" {
		return Cursor{}, false
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, false
	}

	parts := strings.Split(string(b), "|")
	if len(parts) != 2 {
		return Cursor{}, false
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Cursor{}, false
	}

	return Cursor{Ms: ms, UID: id}, true
}

// ClampPageSize applies the spec's silent-clamp rule: values above
// MaxPageSize are capped, values below 1 are left for the caller to
// reject as bad_request (pageSize=0 is invalid, not clampable).
func ClampPageSize(requested int) int {
	if requested <= 0 {
		return requested
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
