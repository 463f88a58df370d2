package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rootedapp/portal/internal/config"
	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/pkg/logger"
)

func testTier() config.RateTier {
	return config.RateTier{
		Short:  config.RateWindow{Times: 2, Seconds: 60},
		Medium: config.RateWindow{Times: 100, Seconds: 60},
		Long:   config.RateWindow{Times: 1000, Seconds: 3600},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter("read", testTier(), logger.NewDefault("test"))
	handler := rl.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/bible/versions", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d within the window must pass, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 over the short window, got %d", rec.Code)
	}
	if code := decodeAuthErrorCode(t, rec); code != errors.CodeRateLimited {
		t.Fatalf("expected %s, got %s", errors.CodeRateLimited, code)
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter("read", testTier(), logger.NewDefault("test"))
	handler := rl.Handler(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/bible/versions", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), first)
	}

	second := httptest.NewRequest(http.MethodGet, "/bible/versions", nil)
	second.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("exhausting one client must not affect another, got %d", rec.Code)
	}
}

func TestRateLimiterPrefersUserKey(t *testing.T) {
	rl := NewRateLimiter("read", testTier(), logger.NewDefault("test"))
	handler := rl.Handler(okHandler())

	// Same IP, two different principals: each gets its own budget.
	for _, user := range []string{"user-1", "user-2"} {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/bible/versions", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			ctx, tok := identity.Bind(req.Context(), identity.Identity{UserID: user})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req.WithContext(ctx))
			identity.Reset(tok)
			if rec.Code != http.StatusOK {
				t.Fatalf("user %s request %d must pass, got %d", user, i+1, rec.Code)
			}
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter("read", testTier(), logger.NewDefault("test"))
	handler := rl.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/bible/versions", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if removed := rl.Cleanup(time.Hour); removed != 0 {
		t.Fatalf("fresh limiter must survive cleanup, removed %d", removed)
	}
	if removed := rl.Cleanup(-time.Second); removed != 1 {
		t.Fatalf("idle limiter must be removed, removed %d", removed)
	}
}

func TestCORSPreflight(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://portal.example.com"})
	handler := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/bible/versions", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
		t.Fatalf("unexpected allow-origin header %q", got)
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://portal.example.com"})
	handler := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/bible/versions", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin must not be echoed, got %q", got)
	}
}
