package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestServiceErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := InvalidToken(cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", err.HTTPStatus)
	}
}

func TestWithDetailsChaining(t *testing.T) {
	err := RateLimitExceeded(10, "1s")
	if err.Details["limit"] != 10 {
		t.Fatalf("limit detail = %v, want 10", err.Details["limit"])
	}
	if err.Details["window"] != "1s" {
		t.Fatalf("window detail = %v, want 1s", err.Details["window"])
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NoActiveSession())
	if !HasCode(err, CodeNoActiveSession) {
		t.Fatalf("expected NO_ACTIVE_SESSION in chain")
	}
	if HasCode(err, CodeUnauthorized) {
		t.Fatalf("did not expect UNAUTHORIZED")
	}
}

func TestAsServiceWrapsUnknown(t *testing.T) {
	plain := fmt.Errorf("plain failure")
	svc := AsService(plain)
	if svc.Code != CodeInternal {
		t.Fatalf("code = %s, want %s", svc.Code, CodeInternal)
	}
	if svc.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", svc.HTTPStatus)
	}
}

func TestTaxonomyStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    *ServiceError
		status int
	}{
		{"absent", Absent("identity"), http.StatusInternalServerError},
		{"no active session", NoActiveSession(), http.StatusInternalServerError},
		{"unknown resource", UnknownResource("postgres.pool"), http.StatusInternalServerError},
		{"unauthorized", Unauthorized("missing credentials"), http.StatusUnauthorized},
		{"permission denied", PermissionDenied("bible:write required"), http.StatusForbidden},
		{"not found", NotFound("bible version", "abc"), http.StatusNotFound},
		{"validation", Validation("limit must be positive"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.status)
			}
		})
	}
}
