// Package main is the operational CLI for the portal API: schema migrations
// and content imports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rootedapp/portal/internal/app/domain/bible"
	"github.com/rootedapp/portal/internal/config"
	"github.com/rootedapp/portal/internal/database"
	"github.com/rootedapp/portal/internal/platform/migrations"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	driver, err := database.NewPostgresDriver(cfg.Database)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer driver.Close()
	db := driver.DB()

	switch os.Args[1] {
	case "migrate":
		runMigrate(db, os.Args[2:])
	case "import":
		runImport(db, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: portalctl <command> [flags]

commands:
  migrate up        apply all pending migrations
  migrate down      roll back the most recent migration
  import -file F    import a version with its verses from a JSON file`)
}

func runMigrate(db *sqlx.DB, args []string) {
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "up":
		err = migrations.Up(db.DB)
	case "down":
		err = migrations.Down(db.DB)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", args[0], err)
	}
	log.Printf("migrate %s: done", args[0])
}

// importFile is the JSON shape produced by the content export tooling.
type importFile struct {
	Version bible.Version `json:"version"`
	Books   []bible.Book  `json:"books"`
	Verses  []bible.Verse `json:"verses"`
}

func runImport(db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	path := fs.String("file", "", "JSON file to import")
	_ = fs.Parse(args)
	if *path == "" {
		usage()
		os.Exit(2)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read %s: %v", *path, err)
	}
	var payload importFile
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Fatalf("parse %s: %v", *path, err)
	}
	if payload.Version.Code == "" {
		log.Fatalf("import file has no version code")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := importContent(ctx, db, payload); err != nil {
		log.Fatalf("import: %v", err)
	}
	log.Printf("imported version %s: %d books, %d verses",
		payload.Version.Code, len(payload.Books), len(payload.Verses))
}

// importContent loads one version atomically: the whole file lands or none
// of it does.
func importContent(ctx context.Context, db *sqlx.DB, payload importFile) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	versionID := payload.Version.ID
	if versionID == "" {
		versionID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bible_versions (id, code, name, language, description, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (code) DO UPDATE SET name = $3, language = $4, description = $5
	`, versionID, payload.Version.Code, payload.Version.Name, payload.Version.Language, payload.Version.Description); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	// The file may carry the canonical id; the insert above may have hit
	// the conflict branch, so read the id back.
	if err := tx.GetContext(ctx, &versionID, `SELECT id FROM bible_versions WHERE code = $1`, payload.Version.Code); err != nil {
		return fmt.Errorf("resolve version id: %w", err)
	}

	for _, book := range payload.Books {
		id := book.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bible_books (id, number, name, testament, chapters)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (number) DO UPDATE SET name = $3, testament = $4, chapters = $5
		`, id, book.Number, book.Name, book.Testament, book.Chapters); err != nil {
			return fmt.Errorf("insert book %d: %w", book.Number, err)
		}
	}

	for _, verse := range payload.Verses {
		id := verse.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bible_verses (id, version_id, book_number, chapter, number, text)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (version_id, book_number, chapter, number) DO UPDATE SET text = $6
		`, id, versionID, verse.BookNumber, verse.Chapter, verse.Number, verse.Text); err != nil {
			return fmt.Errorf("insert verse %d:%d:%d: %w", verse.BookNumber, verse.Chapter, verse.Number, err)
		}
	}

	return tx.Commit()
}
