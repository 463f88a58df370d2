// Package bible defines the scripture content model served by the API.
package bible

import "time"

// Version is one translation of the text.
type Version struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Language    string    `db:"language" json:"language"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Book is one canonical book. Books are shared across versions; Number is
// the canonical 1-66 ordering.
type Book struct {
	ID        string `db:"id" json:"id"`
	Number    int    `db:"number" json:"number"`
	Name      string `db:"name" json:"name"`
	Testament string `db:"testament" json:"testament"`
	Chapters  int    `db:"chapters" json:"chapters"`
}

// Verse is one verse of one version.
type Verse struct {
	ID         string `db:"id" json:"id"`
	VersionID  string `db:"version_id" json:"-"`
	BookNumber int    `db:"book_number" json:"book_number"`
	Chapter    int    `db:"chapter" json:"chapter"`
	Number     int    `db:"number" json:"number"`
	Text       string `db:"text" json:"text"`
}

// Chapter is the response shape for a chapter read.
type Chapter struct {
	VersionCode string  `json:"version"`
	BookNumber  int     `json:"book_number"`
	BookName    string  `json:"book_name"`
	Chapter     int     `json:"chapter"`
	Verses      []Verse `json:"verses"`
}

// SearchPage is one page of verse search results.
type SearchPage struct {
	Query    string  `json:"query"`
	Version  string  `json:"version"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
	Results  []Verse `json:"results"`
}

// Bookmark is a user-saved reference to a verse.
type Bookmark struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"-"`
	VersionCode string    `db:"version_code" json:"version"`
	BookNumber  int       `db:"book_number" json:"book_number"`
	Chapter     int       `db:"chapter" json:"chapter"`
	Verse       int       `db:"verse" json:"verse"`
	Note        string    `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
