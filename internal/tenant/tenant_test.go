package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopboard/statusboard-api/internal/apperror"
)

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"":                                   false,
		"acme-shop":                          true,
		"a":                                  false,
		"11111111-1111-1111-1111-111111111111": true,
		"UPPER-NOT-ALLOWED":                  false,
		"-leading-dash":                      false,
	}
	for in, want := range cases {
		if got := Valid(in); got != want {
			t.Errorf("Valid(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMiddlewareMissingHeader(t *testing.T) {
	var gotKind apperror.Kind
	mw := NewMiddleware(func(w http.ResponseWriter, r *http.Request, err *apperror.Error) {
		gotKind = err.Kind
		w.WriteHeader(apperror.ToHTTP(err.Kind))
	})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a tenant header")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/appointments/board", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotKind != apperror.KindMissingTenant {
		t.Fatalf("expected missing_tenant, got %v", gotKind)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestMiddlewareValidHeaderPropagatesID(t *testing.T) {
	mw := NewMiddleware(func(w http.ResponseWriter, r *http.Request, err *apperror.Error) {
		t.Fatalf("unexpected error: %v", err)
	})

	var seen string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/appointments/board", nil)
	req.Header.Set("X-Tenant-Id", "acme-shop")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "acme-shop" {
		t.Fatalf("expected tenant id acme-shop, got %q", seen)
	}
}
