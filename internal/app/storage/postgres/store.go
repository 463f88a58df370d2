// Package postgres implements the storage interfaces over PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/rootedapp/portal/internal/app/domain/bible"
	"github.com/rootedapp/portal/internal/app/storage"
	"github.com/rootedapp/portal/internal/database"
)

// Store implements the storage interfaces. It queries through a
// database.Querier, so when given the session proxy every call joins the
// calling request's transaction.
type Store struct {
	q database.Querier
}

var _ storage.Store = (*Store)(nil)

// New creates a Store over the given querier.
func New(q database.Querier) *Store {
	return &Store{q: q}
}

// --- BibleStore --------------------------------------------------------------

func (s *Store) ListVersions(ctx context.Context, language string) ([]bible.Version, error) {
	var versions []bible.Version
	err := s.q.SelectContext(ctx, &versions, `
		SELECT id, code, name, language, description, created_at
		FROM bible_versions
		WHERE $1 = '' OR language LIKE $1 || '%'
		ORDER BY code
	`, language)
	return versions, err
}

func (s *Store) GetVersionByCode(ctx context.Context, code string) (bible.Version, error) {
	var v bible.Version
	err := s.q.GetContext(ctx, &v, `
		SELECT id, code, name, language, description, created_at
		FROM bible_versions
		WHERE code = $1
	`, code)
	return v, err
}

func (s *Store) ListBooks(ctx context.Context) ([]bible.Book, error) {
	var books []bible.Book
	err := s.q.SelectContext(ctx, &books, `
		SELECT id, number, name, testament, chapters
		FROM bible_books
		ORDER BY number
	`)
	return books, err
}

func (s *Store) GetBookByNumber(ctx context.Context, number int) (bible.Book, error) {
	var b bible.Book
	err := s.q.GetContext(ctx, &b, `
		SELECT id, number, name, testament, chapters
		FROM bible_books
		WHERE number = $1
	`, number)
	return b, err
}

func (s *Store) ListChapterVerses(ctx context.Context, versionID string, bookNumber, chapter int) ([]bible.Verse, error) {
	var verses []bible.Verse
	err := s.q.SelectContext(ctx, &verses, `
		SELECT id, version_id, book_number, chapter, number, text
		FROM bible_verses
		WHERE version_id = $1 AND book_number = $2 AND chapter = $3
		ORDER BY number
	`, versionID, bookNumber, chapter)
	return verses, err
}

func (s *Store) SearchVerses(ctx context.Context, versionID, query string, limit, offset int) ([]bible.Verse, int, error) {
	var total int
	err := s.q.GetContext(ctx, &total, `
		SELECT count(*)
		FROM bible_verses
		WHERE version_id = $1 AND text ILIKE '%' || $2 || '%'
	`, versionID, query)
	if err != nil {
		return nil, 0, err
	}

	var verses []bible.Verse
	err = s.q.SelectContext(ctx, &verses, `
		SELECT id, version_id, book_number, chapter, number, text
		FROM bible_verses
		WHERE version_id = $1 AND text ILIKE '%' || $2 || '%'
		ORDER BY book_number, chapter, number
		LIMIT $3 OFFSET $4
	`, versionID, query, limit, offset)
	return verses, total, err
}

// --- BookmarkStore -----------------------------------------------------------

func (s *Store) CreateBookmark(ctx context.Context, bm bible.Bookmark) (bible.Bookmark, error) {
	if bm.ID == "" {
		bm.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bm.CreatedAt = now
	bm.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bible_bookmarks (id, user_id, version_code, book_number, chapter, verse, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, bm.ID, bm.UserID, bm.VersionCode, bm.BookNumber, bm.Chapter, bm.Verse, bm.Note, bm.CreatedAt, bm.UpdatedAt)
	if err != nil {
		return bible.Bookmark{}, err
	}
	return bm, nil
}

func (s *Store) UpdateBookmark(ctx context.Context, bm bible.Bookmark) (bible.Bookmark, error) {
	bm.UpdatedAt = time.Now().UTC()

	result, err := s.q.ExecContext(ctx, `
		UPDATE bible_bookmarks
		SET version_code = $3, book_number = $4, chapter = $5, verse = $6, note = $7, updated_at = $8
		WHERE id = $1 AND user_id = $2
	`, bm.ID, bm.UserID, bm.VersionCode, bm.BookNumber, bm.Chapter, bm.Verse, bm.Note, bm.UpdatedAt)
	if err != nil {
		return bible.Bookmark{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return bible.Bookmark{}, sql.ErrNoRows
	}
	return bm, nil
}

func (s *Store) GetBookmark(ctx context.Context, userID, id string) (bible.Bookmark, error) {
	var bm bible.Bookmark
	err := s.q.GetContext(ctx, &bm, `
		SELECT id, user_id, version_code, book_number, chapter, verse, note, created_at, updated_at
		FROM bible_bookmarks
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return bm, err
}

func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]bible.Bookmark, error) {
	var bookmarks []bible.Bookmark
	err := s.q.SelectContext(ctx, &bookmarks, `
		SELECT id, user_id, version_code, book_number, chapter, verse, note, created_at, updated_at
		FROM bible_bookmarks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	return bookmarks, err
}

func (s *Store) DeleteBookmark(ctx context.Context, userID, id string) error {
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM bible_bookmarks
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
