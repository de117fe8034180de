package httpapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopboard/statusboard-api/internal/apperror"
)

func TestWrapBoardErrMapsDeadlineExceededToResourceExhausted(t *testing.T) {
	wrapped := fmt.Errorf("query board: %w", context.DeadlineExceeded)

	appErr := wrapBoardErr(wrapped)

	if appErr.Kind != apperror.KindResourceExhausted {
		t.Fatalf("expected resource_exhausted, got %s", appErr.Kind)
	}
	if apperror.ToHTTP(appErr.Kind) != 503 {
		t.Errorf("expected resource_exhausted to map to 503, got %d", apperror.ToHTTP(appErr.Kind))
	}
	if !errors.Is(appErr, context.DeadlineExceeded) {
		t.Error("expected the wrapped apperror to still unwrap to context.DeadlineExceeded")
	}
}

func TestWrapBoardErrPassesThroughExistingAppError(t *testing.T) {
	original := apperror.New(apperror.KindNotFound, "appointment not found")

	appErr := wrapBoardErr(original)

	if appErr != original {
		t.Error("expected an existing *apperror.Error to pass through unchanged")
	}
}

func TestWrapBoardErrDefaultsToInternal(t *testing.T) {
	appErr := wrapBoardErr(errors.New("boom"))

	if appErr.Kind != apperror.KindInternal {
		t.Fatalf("expected internal for an unrecognized error, got %s", appErr.Kind)
	}
}
