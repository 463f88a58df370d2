// Package httpapi exposes the REST API.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rootedapp/portal/internal/app/domain/bible"
	"github.com/rootedapp/portal/internal/app/metrics"
	biblesvc "github.com/rootedapp/portal/internal/app/services/bible"
	healthsvc "github.com/rootedapp/portal/internal/app/services/health"
	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/internal/httputil"
	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/internal/middleware"
)

// RateLimiters groups the per-class limiters applied to routes.
type RateLimiters struct {
	Default *middleware.RateLimiter
	Read    *middleware.RateLimiter
	Write   *middleware.RateLimiter
}

// Handler bundles the HTTP endpoints of the API.
type Handler struct {
	bible  *biblesvc.Service
	health *healthsvc.Service
	auth   *middleware.AuthMiddleware
	limits RateLimiters
}

// NewHandler creates the API handler.
func NewHandler(bibleService *biblesvc.Service, healthService *healthsvc.Service, auth *middleware.AuthMiddleware, limits RateLimiters) *Handler {
	return &Handler{
		bible:  bibleService,
		health: healthService,
		auth:   auth,
		limits: limits,
	}
}

// Router builds the route table. Every API route declares its auth policy and
// rate limit class here, in one place.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	h.route(api, http.MethodGet, "/bible/versions", middleware.Public(), h.limits.Read, h.listVersions)
	h.route(api, http.MethodGet, "/bible/versions/{version}/books", middleware.Public(), h.limits.Read, h.listBooks)
	h.route(api, http.MethodGet, "/bible/search", middleware.Public(), h.limits.Read, h.search)
	h.route(api, http.MethodGet, "/bible/{version}/{book:[0-9]+}/{chapter:[0-9]+}", middleware.Public(), h.limits.Read, h.getChapter)

	h.route(api, http.MethodGet, "/bible/bookmarks", middleware.Authenticated(), h.limits.Read, h.listBookmarks)
	h.route(api, http.MethodPost, "/bible/bookmarks", middleware.Authenticated(), h.limits.Write, h.createBookmark)
	h.route(api, http.MethodPut, "/bible/bookmarks/{id}", middleware.Authenticated(), h.limits.Write, h.updateBookmark)
	h.route(api, http.MethodDelete, "/bible/bookmarks/{id}", middleware.Authenticated(), h.limits.Write, h.deleteBookmark)

	return r
}

// route wraps the handler so identity is resolved before the rate limiter
// runs: the limiter keys authenticated requests by user ID, which only works
// with the identity cell already bound.
func (h *Handler) route(r *mux.Router, method, path string, cfg middleware.AuthConfig, limiter *middleware.RateLimiter, fn http.HandlerFunc) {
	var handler http.Handler = fn
	if limiter != nil {
		handler = limiter.Handler(handler)
	}
	handler = h.auth.Wrap(cfg, handler)
	r.Handle(path, handler).Methods(method)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.health.Check(r.Context()))
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.bible.ListVersions(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, versions)
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.bible.ListBooks(r.Context(), mux.Vars(r)["version"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) getChapter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	book, _ := strconv.Atoi(vars["book"])
	chapter, _ := strconv.Atoi(vars["chapter"])

	result, err := h.bible.GetChapter(r.Context(), vars["version"], book, chapter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	result, err := h.bible.Search(r.Context(), q.Get("version"), q.Get("q"), page, pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) listBookmarks(w http.ResponseWriter, r *http.Request) {
	principal, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	bookmarks, err := h.bible.ListBookmarks(r.Context(), principal.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if bookmarks == nil {
		bookmarks = []bible.Bookmark{}
	}
	httputil.WriteJSON(w, http.StatusOK, bookmarks)
}

func (h *Handler) createBookmark(w http.ResponseWriter, r *http.Request) {
	principal, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var bm bible.Bookmark
	if err := decodeJSON(r.Body, &bm); err != nil {
		httputil.WriteError(w, err)
		return
	}

	created, err := h.bible.CreateBookmark(r.Context(), principal.UserID, bm)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateBookmark(w http.ResponseWriter, r *http.Request) {
	principal, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var bm bible.Bookmark
	if err := decodeJSON(r.Body, &bm); err != nil {
		httputil.WriteError(w, err)
		return
	}
	bm.ID = mux.Vars(r)["id"]

	updated, err := h.bible.UpdateBookmark(r.Context(), principal.UserID, bm)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	principal, err := identity.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.bible.DeleteBookmark(r.Context(), principal.UserID, mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(body io.Reader, dest interface{}) error {
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return errors.Validation("invalid request body")
	}
	return nil
}
