package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/rootedapp/portal/internal/app/domain/bible"
	"github.com/rootedapp/portal/internal/app/httpapi"
	biblesvc "github.com/rootedapp/portal/internal/app/services/bible"
	healthsvc "github.com/rootedapp/portal/internal/app/services/health"
	"github.com/rootedapp/portal/internal/app/storage/memory"
	"github.com/rootedapp/portal/internal/config"
	"github.com/rootedapp/portal/internal/container"
	"github.com/rootedapp/portal/internal/database"
	"github.com/rootedapp/portal/internal/database/dbtest"
	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/internal/identity"
	"github.com/rootedapp/portal/internal/middleware"
	"github.com/rootedapp/portal/pkg/logger"
)

type tokenVerifier map[string]identity.Identity

func (v tokenVerifier) Verify(_ context.Context, token string) (identity.Identity, error) {
	id, ok := v[token]
	if !ok {
		return identity.Identity{}, errors.InvalidToken(nil)
	}
	return id, nil
}

type api struct {
	handler http.Handler
	driver  *dbtest.Driver
}

// newAPI assembles the full pipeline the application runs in production:
// session lifecycle wrapping the router, per-route auth, an in-memory store.
func newAPI(t *testing.T) *api {
	t.Helper()
	return newAPIWithLimits(t, httpapi.RateLimiters{})
}

func newAPIWithLimits(t *testing.T, limits httpapi.RateLimiters) *api {
	t.Helper()

	store := memory.New()
	v := store.AddVersion(domain.Version{Code: "kjv", Name: "King James Version", Language: "en"})
	store.AddBook(domain.Book{Number: 1, Name: "Genesis", Testament: "old", Chapters: 50})
	store.AddVerse(domain.Verse{VersionID: v.ID, BookNumber: 1, Chapter: 1, Number: 1, Text: "In the beginning God created the heaven and the earth."})

	log := logger.NewDefault("test")
	drv := dbtest.New()

	reg := container.New(log)
	if err := reg.Register(database.KindSession, container.ScopePerRequest, func(ctx context.Context) (interface{}, error) {
		return database.OpenSession(ctx, drv)
	}); err != nil {
		t.Fatalf("failed to register session kind: %v", err)
	}

	auth := middleware.NewAuthMiddleware(tokenVerifier{
		"alice-token": {UserID: "alice", Verified: true},
		"bob-token":   {UserID: "bob", Verified: true},
	}, nil, log)

	handler := httpapi.NewHandler(
		biblesvc.New(store, nil, log),
		healthsvc.New("test", drv, nil, log),
		auth,
		limits,
	)

	lifecycle := middleware.NewLifecycleMiddleware(reg, log, []string{"/healthz", "/metrics"})
	return &api{
		handler: lifecycle.Handler(handler.Router()),
		driver:  drv,
	}
}

func (a *api) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func TestListVersions(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/bible/versions", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var versions []domain.Version
	if err := json.Unmarshal(rec.Body.Bytes(), &versions); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(versions) != 1 || versions[0].Code != "kjv" {
		t.Fatalf("unexpected versions: %+v", versions)
	}
}

func TestListVersionsLanguageFilter(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/bible/versions?language=es", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var versions []domain.Version
	if err := json.Unmarshal(rec.Body.Bytes(), &versions); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected no spanish versions, got %+v", versions)
	}
}

func TestListBooksScopedToVersion(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/bible/versions/kjv/books", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var books []domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &books); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(books) != 1 || books[0].Name != "Genesis" {
		t.Fatalf("unexpected books: %+v", books)
	}

	rec = a.do(t, http.MethodGet, "/api/v1/bible/versions/esv/books", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown version, got %d", rec.Code)
	}
}

func TestGetChapter(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/bible/kjv/1/1", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var chapter domain.Chapter
	if err := json.Unmarshal(rec.Body.Bytes(), &chapter); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if chapter.BookName != "Genesis" || len(chapter.Verses) != 1 {
		t.Fatalf("unexpected chapter: %+v", chapter)
	}
}

func TestGetChapterUnknownVersionRollsBack(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/bible/esv/1/1", "", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != errors.CodeNotFound {
		t.Fatalf("expected %s, got %s", errors.CodeNotFound, code)
	}
	if _, committed, rolledBack := a.driver.Counters(); committed != 0 || rolledBack != 1 {
		t.Fatalf("404 must roll back the session, got %d commits and %d rollbacks", committed, rolledBack)
	}
}

func TestSearchValidation(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/bible/search?version=kjv", "", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != errors.CodeValidation {
		t.Fatalf("expected %s, got %s", errors.CodeValidation, code)
	}
}

func TestBookmarksRequireAuth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/v1/bible/bookmarks", "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if _, committed, rolledBack := a.driver.Counters(); committed != 0 || rolledBack != 1 {
		t.Fatalf("401 must roll back the session, got %d commits and %d rollbacks", committed, rolledBack)
	}
}

func TestBookmarkCRUD(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/bible/bookmarks", "alice-token",
		`{"version":"kjv","book_number":1,"chapter":1,"verse":1,"note":"start"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated bookmark id")
	}

	rec = a.do(t, http.MethodGet, "/api/v1/bible/bookmarks", "alice-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []domain.Bookmark
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(list) != 1 || list[0].Note != "start" {
		t.Fatalf("unexpected bookmarks: %+v", list)
	}

	rec = a.do(t, http.MethodPut, "/api/v1/bible/bookmarks/"+created.ID, "alice-token",
		`{"version":"kjv","book_number":1,"chapter":1,"verse":1,"note":"revised"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = a.do(t, http.MethodDelete, "/api/v1/bible/bookmarks/"+created.ID, "alice-token", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = a.do(t, http.MethodDelete, "/api/v1/bible/bookmarks/"+created.ID, "alice-token", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestBookmarkInvalidBody(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodPost, "/api/v1/bible/bookmarks", "alice-token", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// Rate limiting runs after the identity stage, so authenticated clients
// behind one NAT address each get their own budget instead of depleting a
// shared per-IP bucket.
func TestRateLimitKeyedByUserThroughPipeline(t *testing.T) {
	tier := config.RateTier{
		Short: config.RateWindow{Times: 2, Seconds: 60},
	}
	a := newAPIWithLimits(t, httpapi.RateLimiters{
		Read: middleware.NewRateLimiter("read", tier, logger.NewDefault("test")),
	})

	// httptest.NewRequest gives every request the same RemoteAddr, so the
	// two users only stay independent if the limiter keys by user ID.
	for i := 0; i < 2; i++ {
		if rec := a.do(t, http.MethodGet, "/api/v1/bible/bookmarks", "alice-token", ""); rec.Code != http.StatusOK {
			t.Fatalf("alice request %d within the window must pass, got %d", i+1, rec.Code)
		}
	}

	rec := a.do(t, http.MethodGet, "/api/v1/bible/bookmarks", "alice-token", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for alice over budget, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != errors.CodeRateLimited {
		t.Fatalf("expected %s, got %s", errors.CodeRateLimited, code)
	}

	rec = a.do(t, http.MethodGet, "/api/v1/bible/bookmarks", "bob-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("bob shares alice's IP but not her budget, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthzBypassesSession(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if opened, _, _ := a.driver.Counters(); opened != 0 {
		t.Fatalf("health check must not open a transaction, opened = %d", opened)
	}
	var report healthsvc.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if report.Status != "ok" {
		t.Fatalf("unexpected status %q", report.Status)
	}
}
