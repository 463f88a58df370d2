package reqscope

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rootedapp/portal/internal/errors"
)

func TestGetUnboundCellIsAbsent(t *testing.T) {
	cell := NewCell[string]("test_unbound")

	_, err := cell.Get(context.Background())
	if !errors.HasCode(err, errors.CodeCellAbsent) {
		t.Fatalf("err = %v, want CELL_ABSENT", err)
	}
}

func TestBindAndGet(t *testing.T) {
	cell := NewCell[int]("test_bind")

	ctx, _ := cell.Bind(context.Background(), 42)
	got, err := cell.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestExplicitZeroIsNotAbsent(t *testing.T) {
	cell := NewCell[string]("test_zero")

	ctx, _ := cell.Bind(context.Background(), "")
	got, err := cell.Get(ctx)
	if err != nil {
		t.Fatalf("explicit empty value must not read as absent: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty string", got)
	}
}

func TestResetRestoresPriorValue(t *testing.T) {
	cell := NewCell[string]("test_nested")

	ctx, outer := cell.Bind(context.Background(), "outer")
	ctx2, inner := cell.Bind(ctx, "override")

	if got, _ := cell.Get(ctx2); got != "override" {
		t.Fatalf("got %q, want override", got)
	}

	cell.Reset(inner)
	if got, _ := cell.Get(ctx2); got != "outer" {
		t.Fatalf("after inner reset got %q, want outer", got)
	}

	cell.Reset(outer)
	if _, err := cell.Get(ctx); !errors.HasCode(err, errors.CodeCellAbsent) {
		t.Fatalf("after outer reset err = %v, want CELL_ABSENT", err)
	}
}

func TestResetRevokesCapturedContexts(t *testing.T) {
	cell := NewCell[string]("test_captured")

	ctx, tok := cell.Bind(context.Background(), "live")
	captured := context.WithValue(ctx, struct{}{}, "derived")

	cell.Reset(tok)

	if _, err := cell.Get(captured); !errors.HasCode(err, errors.CodeCellAbsent) {
		t.Fatalf("captured context must read absent after reset, got %v", err)
	}
}

func TestConcurrentRequestsAreIsolated(t *testing.T) {
	cell := NewCell[int]("test_isolation")
	const requests = 64

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			ctx, tok := cell.Bind(context.Background(), n)
			defer cell.Reset(tok)

			// Hop through a spawned sub-call the way handler code does.
			done := make(chan int, 1)
			go func() {
				v, err := cell.Get(ctx)
				if err != nil {
					t.Errorf("request %d: %v", n, err)
				}
				done <- v
			}()
			if got := <-done; got != n {
				t.Errorf("request %d observed %d", n, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestClientIPResolution(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", "", "198.51.100.4", "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.9:5678", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/bible/versions", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestMetaSnapshot(t *testing.T) {
	r := httptest.NewRequest("POST", "http://portal.local/api/v1/bible/bookmarks?x=1", nil)
	r.Header.Set("User-Agent", "portal-test")

	meta := NewRequestMeta(r)
	if meta.RequestID == "" {
		t.Fatalf("expected generated request id")
	}
	if meta.Method != "POST" || meta.Path != "/api/v1/bible/bookmarks" {
		t.Fatalf("unexpected snapshot %+v", meta)
	}

	ctx, tok := BindMeta(context.Background(), meta)
	if RequestID(ctx) != meta.RequestID {
		t.Fatalf("request id not readable from context")
	}
	ResetMeta(tok)
	if RequestID(ctx) != "" {
		t.Fatalf("request id must be cleared after reset")
	}
}
