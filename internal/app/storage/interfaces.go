// Package storage declares the persistence boundaries of the API.
package storage

import (
	"context"

	"github.com/rootedapp/portal/internal/app/domain/bible"
)

// BibleStore reads scripture content. Implementations run inside the
// request's transaction; they never commit or roll back themselves.
type BibleStore interface {
	// ListVersions returns versions, optionally narrowed to a language
	// prefix ("en" matches "en" and "en-GB"). Empty language lists all.
	ListVersions(ctx context.Context, language string) ([]bible.Version, error)
	GetVersionByCode(ctx context.Context, code string) (bible.Version, error)
	ListBooks(ctx context.Context) ([]bible.Book, error)
	GetBookByNumber(ctx context.Context, number int) (bible.Book, error)
	ListChapterVerses(ctx context.Context, versionID string, bookNumber, chapter int) ([]bible.Verse, error)
	SearchVerses(ctx context.Context, versionID, query string, limit, offset int) ([]bible.Verse, int, error)
}

// BookmarkStore persists user bookmarks.
type BookmarkStore interface {
	CreateBookmark(ctx context.Context, bm bible.Bookmark) (bible.Bookmark, error)
	UpdateBookmark(ctx context.Context, bm bible.Bookmark) (bible.Bookmark, error)
	GetBookmark(ctx context.Context, userID, id string) (bible.Bookmark, error)
	ListBookmarks(ctx context.Context, userID string) ([]bible.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, id string) error
}

// Store groups the persistence interfaces the application wires together.
type Store interface {
	BibleStore
	BookmarkStore
}
