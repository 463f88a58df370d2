// Package bible implements the scripture content and bookmark use cases.
package bible

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rootedapp/portal/internal/app/domain/bible"
	"github.com/rootedapp/portal/internal/app/metrics"
	"github.com/rootedapp/portal/internal/app/storage"
	"github.com/rootedapp/portal/internal/cache"
	"github.com/rootedapp/portal/internal/errors"
	"github.com/rootedapp/portal/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service serves scripture content and user bookmarks. Reads of the rarely
// changing catalog (versions, books) go through Redis; verse reads and all
// bookmark writes go through the request's transaction.
type Service struct {
	store storage.Store
	redis *redis.Client
	log   *logger.Logger
}

// New constructs the service. redis may be nil, which disables caching.
func New(store storage.Store, rdb *redis.Client, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bible")
	}
	return &Service{store: store, redis: rdb, log: log}
}

// ListVersions returns available translations, optionally narrowed to a
// language prefix ("en" matches "en" and "en-GB").
func (s *Service) ListVersions(ctx context.Context, language string) ([]bible.Version, error) {
	language = strings.TrimSpace(language)
	key := cache.Keys("bible").Attr("versions").Attr(language).Build()

	var versions []bible.Version
	if s.cacheGet(ctx, key, &versions) {
		metrics.RecordCacheLookup("bible_versions", true)
		return versions, nil
	}
	metrics.RecordCacheLookup("bible_versions", false)

	versions, err := s.store.ListVersions(ctx, language)
	if err != nil {
		return nil, errors.Internal("listing versions failed", err)
	}
	s.cacheSet(ctx, key, versions, cache.ExpiryDay)
	return versions, nil
}

// ListBooks returns the book catalog of one version. The version must exist.
func (s *Service) ListBooks(ctx context.Context, versionCode string) ([]bible.Book, error) {
	version, err := s.getVersion(ctx, versionCode)
	if err != nil {
		return nil, err
	}

	key := cache.Keys("bible").Attr("books").Attr(version.Code).Build()

	var books []bible.Book
	if s.cacheGet(ctx, key, &books) {
		metrics.RecordCacheLookup("bible_books", true)
		return books, nil
	}
	metrics.RecordCacheLookup("bible_books", false)

	books, err = s.store.ListBooks(ctx)
	if err != nil {
		return nil, errors.Internal("listing books failed", err)
	}
	s.cacheSet(ctx, key, books, cache.ExpiryDay)
	return books, nil
}

// GetChapter returns one chapter of one version.
func (s *Service) GetChapter(ctx context.Context, versionCode string, bookNumber, chapter int) (bible.Chapter, error) {
	versionCode = strings.TrimSpace(versionCode)
	if versionCode == "" {
		return bible.Chapter{}, errors.Validation("version is required")
	}
	if chapter < 1 {
		return bible.Chapter{}, errors.Validation("chapter must be positive")
	}

	version, err := s.getVersion(ctx, versionCode)
	if err != nil {
		return bible.Chapter{}, err
	}

	book, err := s.store.GetBookByNumber(ctx, bookNumber)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return bible.Chapter{}, errors.NotFound("book", strconv.Itoa(bookNumber))
		}
		return bible.Chapter{}, errors.Internal("loading book failed", err)
	}
	if chapter > book.Chapters {
		return bible.Chapter{}, errors.NotFound("chapter", strconv.Itoa(chapter)).
			WithDetails("book", book.Name).
			WithDetails("chapters", book.Chapters)
	}

	verses, err := s.store.ListChapterVerses(ctx, version.ID, bookNumber, chapter)
	if err != nil {
		return bible.Chapter{}, errors.Internal("loading verses failed", err)
	}

	return bible.Chapter{
		VersionCode: version.Code,
		BookNumber:  book.Number,
		BookName:    book.Name,
		Chapter:     chapter,
		Verses:      verses,
	}, nil
}

// Search finds verses containing the query text, paginated.
func (s *Service) Search(ctx context.Context, versionCode, query string, page, pageSize int) (bible.SearchPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return bible.SearchPage{}, errors.Validation("query is required")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	version, err := s.getVersion(ctx, versionCode)
	if err != nil {
		return bible.SearchPage{}, err
	}

	offset := (page - 1) * pageSize
	results, total, err := s.store.SearchVerses(ctx, version.ID, query, pageSize, offset)
	if err != nil {
		return bible.SearchPage{}, errors.Internal("search failed", err)
	}

	return bible.SearchPage{
		Query:    query,
		Version:  version.Code,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Results:  results,
	}, nil
}

// CreateBookmark saves a verse reference for the user.
func (s *Service) CreateBookmark(ctx context.Context, userID string, bm bible.Bookmark) (bible.Bookmark, error) {
	if err := s.validateBookmark(ctx, bm); err != nil {
		return bible.Bookmark{}, err
	}
	bm.UserID = userID

	created, err := s.store.CreateBookmark(ctx, bm)
	if err != nil {
		return bible.Bookmark{}, errors.Internal("creating bookmark failed", err)
	}
	return created, nil
}

// UpdateBookmark replaces an existing bookmark owned by the user.
func (s *Service) UpdateBookmark(ctx context.Context, userID string, bm bible.Bookmark) (bible.Bookmark, error) {
	if bm.ID == "" {
		return bible.Bookmark{}, errors.Validation("bookmark id is required")
	}
	if err := s.validateBookmark(ctx, bm); err != nil {
		return bible.Bookmark{}, err
	}
	bm.UserID = userID

	updated, err := s.store.UpdateBookmark(ctx, bm)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return bible.Bookmark{}, errors.NotFound("bookmark", bm.ID)
		}
		return bible.Bookmark{}, errors.Internal("updating bookmark failed", err)
	}
	return updated, nil
}

// ListBookmarks returns the user's bookmarks, newest first.
func (s *Service) ListBookmarks(ctx context.Context, userID string) ([]bible.Bookmark, error) {
	bookmarks, err := s.store.ListBookmarks(ctx, userID)
	if err != nil {
		return nil, errors.Internal("listing bookmarks failed", err)
	}
	return bookmarks, nil
}

// DeleteBookmark removes a bookmark owned by the user.
func (s *Service) DeleteBookmark(ctx context.Context, userID, id string) error {
	err := s.store.DeleteBookmark(ctx, userID, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.NotFound("bookmark", id)
		}
		return errors.Internal("deleting bookmark failed", err)
	}
	return nil
}

func (s *Service) validateBookmark(ctx context.Context, bm bible.Bookmark) error {
	if strings.TrimSpace(bm.VersionCode) == "" {
		return errors.Validation("version is required")
	}
	if bm.Chapter < 1 || bm.Verse < 1 {
		return errors.Validation("chapter and verse must be positive")
	}
	if _, err := s.getVersion(ctx, bm.VersionCode); err != nil {
		return err
	}
	if _, err := s.store.GetBookByNumber(ctx, bm.BookNumber); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.Validation("unknown book number").WithDetails("book_number", bm.BookNumber)
		}
		return errors.Internal("loading book failed", err)
	}
	return nil
}

func (s *Service) getVersion(ctx context.Context, code string) (bible.Version, error) {
	version, err := s.store.GetVersionByCode(ctx, code)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return bible.Version{}, errors.NotFound("version", code)
		}
		return bible.Version{}, errors.Internal("loading version failed", err)
	}
	return version, nil
}

// cacheGet loads key into dest, reporting whether it hit. Cache failures are
// logged and treated as misses.
func (s *Service) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.WithError(err).Warnf("cache read %s failed", key)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.log.WithError(err).Warnf("cache entry %s is corrupt", key)
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, v interface{}, expiry time.Duration) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, raw, expiry).Err(); err != nil {
		s.log.WithError(err).Warnf("cache write %s failed", key)
	}
}
