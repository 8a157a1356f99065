package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and DDL for a SQL backend.
type Dialect int

const (
	DialectPostgres Dialect = iota + 1
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	}
	return "Dialect(" + strconv.Itoa(int(d)) + ")"
}

// Rebind rewrites ? placeholders into the dialect's own form.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) serialPK() string {
	if d == DialectPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	return db, nil
}

// EnsureSchema creates the library and timeline tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	pk := d.serialPK()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS authors (
			id ` + pk + `,
			name TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS genres (
			id ` + pk + `,
			name TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id ` + pk + `,
			title TEXT NOT NULL,
			isbn TEXT NOT NULL DEFAULT '',
			page_count INTEGER,
			year_published INTEGER,
			primary_genre_id BIGINT REFERENCES genres(id) ON DELETE SET NULL,
			secondary_genre_id BIGINT REFERENCES genres(id) ON DELETE SET NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS book_authors (
			book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			author_id BIGINT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (book_id, author_id)
		)`,
		`CREATE TABLE IF NOT EXISTS readings (
			id ` + pk + `,
			user_id BIGINT NOT NULL,
			book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			format TEXT NOT NULL DEFAULT '',
			rating DOUBLE PRECISION,
			quick_reviews TEXT NOT NULL DEFAULT '[]',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_books (
			id ` + pk + `,
			user_id BIGINT NOT NULL,
			book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
			created_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS timeline_events (
			id ` + pk + `,
			user_id BIGINT,
			entity_type TEXT NOT NULL,
			entity_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			occurred_at BIGINT NOT NULL,
			title TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '[]',
			genres TEXT NOT NULL DEFAULT '[]',
			reading_data TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS timeline_events_entity_idx
			ON timeline_events (entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS timeline_events_occurred_idx
			ON timeline_events (occurred_at, id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", d, err)
		}
	}
	return nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
