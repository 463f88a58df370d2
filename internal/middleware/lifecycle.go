// Package middleware provides the HTTP pipeline stages for the API.
package middleware

import (
	"net/http"
	"time"

	"github.com/rootedapp/portal/internal/app/metrics"
	"github.com/rootedapp/portal/internal/container"
	"github.com/rootedapp/portal/internal/database"
	"github.com/rootedapp/portal/internal/httputil"
	"github.com/rootedapp/portal/internal/reqscope"
	"github.com/rootedapp/portal/pkg/logger"
)

// LifecycleMiddleware owns the request-scoped database session. On entry it
// opens a transaction and binds it, together with request metadata, to the
// task-local cells. On exit it settles the transaction exactly once: commit
// when the handler succeeded, rollback when it failed, panicked, or the
// client went away. The cells are reset before the connection is released, so
// any context captured by the handler stops resolving the session the moment
// cleanup begins.
type LifecycleMiddleware struct {
	registry  *container.Registry
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewLifecycleMiddleware creates the session lifecycle stage. Paths in
// skipPaths bypass the database entirely (health and metrics endpoints).
func NewLifecycleMiddleware(registry *container.Registry, log *logger.Logger, skipPaths []string) *LifecycleMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &LifecycleMiddleware{
		registry:  registry,
		logger:    log,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *LifecycleMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		meta := reqscope.NewRequestMeta(r)
		ctx, metaTok := reqscope.BindMeta(r.Context(), meta)
		w.Header().Set("X-Request-ID", meta.RequestID)

		session, err := container.Resolve[*database.Session](ctx, m.registry, database.KindSession)
		if err != nil {
			reqscope.ResetMeta(metaTok)
			m.logger.WithError(err).Error("failed to open request session")
			httputil.WriteError(w, err)
			return
		}

		ctx, sessionTok := database.BindSession(ctx, session)
		wrapped := &statusWriter{ResponseWriter: w}

		panicked := false
		var panicValue interface{}

		func() {
			defer func() {
				if v := recover(); v != nil {
					panicked = true
					panicValue = v
				}
			}()
			next.ServeHTTP(wrapped, r.WithContext(ctx))
		}()

		// Revoke the cells first: from here on the proxy refuses every
		// call, even through contexts the handler captured.
		database.ResetSession(sessionTok)
		reqscope.ResetMeta(metaTok)

		outcome := m.settle(session, r, wrapped, panicked)
		metrics.RecordSessionOutcome(outcome, time.Since(start))

		if closeErr := session.Close(); closeErr != nil {
			m.logger.WithError(closeErr).WithFields(map[string]interface{}{
				"request_id": meta.RequestID,
			}).Error("session cleanup failed")
		}

		m.logger.LogRequest(meta.RequestID, r.Method, r.URL.Path, wrapped.Status(), time.Since(start), map[string]interface{}{
			"client_ip": meta.ClientIP,
			"outcome":   outcome,
		})

		if panicked {
			panic(panicValue)
		}
	})
}

// settle decides and applies the final transaction outcome. Failure means a
// panic, a dead client, or an error status written by the handler; everything
// else commits.
func (m *LifecycleMiddleware) settle(session *database.Session, r *http.Request, w *statusWriter, panicked bool) string {
	failed := panicked || r.Context().Err() != nil || w.Status() >= http.StatusBadRequest

	if failed {
		if err := session.Rollback(); err != nil {
			m.logger.WithError(err).Error("rollback failed")
		}
		return "rolled_back"
	}

	if err := session.Commit(); err != nil {
		m.logger.WithError(err).Error("commit failed")
		// Commit failure leaves the session rolled back. Tell the
		// client unless the handler already sent headers.
		if !w.Written() {
			httputil.WriteError(w, err)
		}
		return "rolled_back"
	}
	return "committed"
}

// statusWriter captures the response status so the lifecycle stage can decide
// the transaction outcome after the handler returns.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.status = http.StatusOK
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Status returns the response status, defaulting to 200 when the handler
// never wrote one.
func (w *statusWriter) Status() int {
	if !w.written {
		return http.StatusOK
	}
	return w.status
}

// Written reports whether the handler produced any response bytes or headers.
func (w *statusWriter) Written() bool { return w.written }
