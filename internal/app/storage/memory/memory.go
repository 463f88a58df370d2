// Package memory implements the storage interfaces in memory. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rootedapp/portal/internal/app/domain/bible"
	"github.com/rootedapp/portal/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces.
type Store struct {
	mu        sync.RWMutex
	versions  map[string]bible.Version // by id
	books     map[int]bible.Book       // by canonical number
	verses    []bible.Verse
	bookmarks map[string]bible.Bookmark // by id
}

var _ storage.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		versions:  make(map[string]bible.Version),
		books:     make(map[int]bible.Book),
		bookmarks: make(map[string]bible.Bookmark),
	}
}

// AddVersion seeds a version and returns it with an assigned ID.
func (s *Store) AddVersion(v bible.Version) bible.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.versions[v.ID] = v
	return v
}

// AddBook seeds a canonical book.
func (s *Store) AddBook(b bible.Book) bible.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.books[b.Number] = b
	return b
}

// AddVerse seeds a verse.
func (s *Store) AddVerse(v bible.Verse) bible.Verse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	s.verses = append(s.verses, v)
	return v
}

// --- BibleStore --------------------------------------------------------------

func (s *Store) ListVersions(ctx context.Context, language string) ([]bible.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bible.Version, 0, len(s.versions))
	for _, v := range s.versions {
		if language != "" && !strings.HasPrefix(v.Language, language) {
			continue
		}
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result, nil
}

func (s *Store) GetVersionByCode(ctx context.Context, code string) (bible.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions {
		if v.Code == code {
			return v, nil
		}
	}
	return bible.Version{}, sql.ErrNoRows
}

func (s *Store) ListBooks(ctx context.Context) ([]bible.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bible.Book, 0, len(s.books))
	for _, b := range s.books {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (s *Store) GetBookByNumber(ctx context.Context, number int) (bible.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[number]
	if !ok {
		return bible.Book{}, sql.ErrNoRows
	}
	return b, nil
}

func (s *Store) ListChapterVerses(ctx context.Context, versionID string, bookNumber, chapter int) ([]bible.Verse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []bible.Verse
	for _, v := range s.verses {
		if v.VersionID == versionID && v.BookNumber == bookNumber && v.Chapter == chapter {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (s *Store) SearchVerses(ctx context.Context, versionID, query string, limit, offset int) ([]bible.Verse, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	var matches []bible.Verse
	for _, v := range s.verses {
		if v.VersionID == versionID && strings.Contains(strings.ToLower(v.Text), needle) {
			matches = append(matches, v)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.BookNumber != b.BookNumber {
			return a.BookNumber < b.BookNumber
		}
		if a.Chapter != b.Chapter {
			return a.Chapter < b.Chapter
		}
		return a.Number < b.Number
	})

	total := len(matches)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

// --- BookmarkStore -----------------------------------------------------------

func (s *Store) CreateBookmark(ctx context.Context, bm bible.Bookmark) (bible.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bm.ID == "" {
		bm.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bm.CreatedAt = now
	bm.UpdatedAt = now
	s.bookmarks[bm.ID] = bm
	return bm, nil
}

func (s *Store) UpdateBookmark(ctx context.Context, bm bible.Bookmark) (bible.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookmarks[bm.ID]
	if !ok || existing.UserID != bm.UserID {
		return bible.Bookmark{}, sql.ErrNoRows
	}
	bm.CreatedAt = existing.CreatedAt
	bm.UpdatedAt = time.Now().UTC()
	s.bookmarks[bm.ID] = bm
	return bm, nil
}

func (s *Store) GetBookmark(ctx context.Context, userID, id string) (bible.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bm, ok := s.bookmarks[id]
	if !ok || bm.UserID != userID {
		return bible.Bookmark{}, sql.ErrNoRows
	}
	return bm, nil
}

func (s *Store) ListBookmarks(ctx context.Context, userID string) ([]bible.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []bible.Bookmark
	for _, bm := range s.bookmarks {
		if bm.UserID == userID {
			result = append(result, bm)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) DeleteBookmark(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bm, ok := s.bookmarks[id]
	if !ok || bm.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.bookmarks, id)
	return nil
}
