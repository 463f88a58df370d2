package reqscope

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestMeta is the immutable per-request snapshot taken at pipeline entry.
type RequestMeta struct {
	RequestID  string
	ClientIP   string
	RemoteAddr string
	UserAgent  string
	Method     string
	Host       string
	Path       string
	URL        string
}

var metaCell = NewCell[*RequestMeta]("request_meta")

// NewRequestMeta snapshots the inbound request and assigns a correlation ID.
func NewRequestMeta(r *http.Request) *RequestMeta {
	return &RequestMeta{
		RequestID:  uuid.NewString(),
		ClientIP:   ClientIP(r),
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Method:     r.Method,
		Host:       r.Host,
		Path:       r.URL.Path,
		URL:        r.URL.String(),
	}
}

// BindMeta publishes the snapshot for the current request.
func BindMeta(ctx context.Context, meta *RequestMeta) (context.Context, Token[*RequestMeta]) {
	return metaCell.Bind(ctx, meta)
}

// Meta returns the current request's snapshot.
func Meta(ctx context.Context) (*RequestMeta, error) {
	return metaCell.Get(ctx)
}

// ResetMeta clears the snapshot binding.
func ResetMeta(tok Token[*RequestMeta]) {
	metaCell.Reset(tok)
}

// RequestID returns the correlation ID bound for ctx, or "" outside a request.
func RequestID(ctx context.Context) string {
	meta, err := metaCell.Get(ctx)
	if err != nil {
		return ""
	}
	return meta.RequestID
}

// ClientIP resolves the originating client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
