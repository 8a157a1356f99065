package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/booklog-timeline/internal/domain/library"
)

// SQLLibraryStore implements LibraryStore on PostgreSQL or SQLite
type SQLLibraryStore struct {
	db      *sql.DB
	dialect Dialect

	// Now supplies creation and update timestamps.
	Now func() time.Time
}

func NewSQLLibraryStore(db *sql.DB, dialect Dialect) *SQLLibraryStore {
	return &SQLLibraryStore{
		db:      db,
		dialect: dialect,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLLibraryStore) q(query string) string {
	return s.dialect.Rebind(query)
}

func (s *SQLLibraryStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// Authors

func (s *SQLLibraryStore) CreateAuthor(ctx context.Context, name string) (*library.Author, error) {
	a := library.Author{Name: name, CreatedAt: s.Now().Truncate(time.Millisecond)}
	err := s.db.QueryRowContext(ctx, s.q(`INSERT INTO authors (name, created_at) VALUES (?, ?) RETURNING id`),
		a.Name, toMillis(a.CreatedAt)).Scan(&a.ID)
	if err != nil {
		return nil, fmt.Errorf("insert author: %w", err)
	}
	return &a, nil
}

func (s *SQLLibraryStore) UpdateAuthor(ctx context.Context, id int64, name string) (*library.Author, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE authors SET name = ? WHERE id = ?`), name, id)
	if err != nil {
		return nil, fmt.Errorf("update author %d: %w", id, err)
	}
	if err := requireAffected(res, library.ErrAuthorNotFound); err != nil {
		return nil, err
	}
	return s.GetAuthor(ctx, id)
}

func (s *SQLLibraryStore) DeleteAuthor(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM book_authors WHERE author_id = ?`), id); err != nil {
			return fmt.Errorf("unlink author %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM authors WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete author %d: %w", id, err)
		}
		return requireAffected(res, library.ErrAuthorNotFound)
	})
}

func (s *SQLLibraryStore) GetAuthor(ctx context.Context, id int64) (*library.Author, error) {
	var (
		a       library.Author
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, created_at FROM authors WHERE id = ?`), id).
		Scan(&a.ID, &a.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrAuthorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get author %d: %w", id, err)
	}
	a.CreatedAt = fromMillis(created)
	return &a, nil
}

func (s *SQLLibraryStore) ListAuthors(ctx context.Context) ([]library.Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM authors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	defer rows.Close()

	out := make([]library.Author, 0)
	for rows.Next() {
		var (
			a       library.Author
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Name, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Genres

func (s *SQLLibraryStore) CreateGenre(ctx context.Context, name string) (*library.Genre, error) {
	g := library.Genre{Name: name, CreatedAt: s.Now().Truncate(time.Millisecond)}
	err := s.db.QueryRowContext(ctx, s.q(`INSERT INTO genres (name, created_at) VALUES (?, ?) RETURNING id`),
		g.Name, toMillis(g.CreatedAt)).Scan(&g.ID)
	if err != nil {
		return nil, fmt.Errorf("insert genre: %w", err)
	}
	return &g, nil
}

func (s *SQLLibraryStore) UpdateGenre(ctx context.Context, id int64, name string) (*library.Genre, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE genres SET name = ? WHERE id = ?`), name, id)
	if err != nil {
		return nil, fmt.Errorf("update genre %d: %w", id, err)
	}
	if err := requireAffected(res, library.ErrGenreNotFound); err != nil {
		return nil, err
	}
	return s.GetGenre(ctx, id)
}

func (s *SQLLibraryStore) DeleteGenre(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE books SET primary_genre_id = NULL WHERE primary_genre_id = ?`), id); err != nil {
			return fmt.Errorf("unlink genre %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE books SET secondary_genre_id = NULL WHERE secondary_genre_id = ?`), id); err != nil {
			return fmt.Errorf("unlink genre %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM genres WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete genre %d: %w", id, err)
		}
		return requireAffected(res, library.ErrGenreNotFound)
	})
}

func (s *SQLLibraryStore) GetGenre(ctx context.Context, id int64) (*library.Genre, error) {
	var (
		g       library.Genre
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, created_at FROM genres WHERE id = ?`), id).
		Scan(&g.ID, &g.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrGenreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get genre %d: %w", id, err)
	}
	g.CreatedAt = fromMillis(created)
	return &g, nil
}

func (s *SQLLibraryStore) ListGenres(ctx context.Context) ([]library.Genre, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM genres ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	out := make([]library.Genre, 0)
	for rows.Next() {
		var (
			g       library.Genre
			created int64
		)
		if err := rows.Scan(&g.ID, &g.Name, &created); err != nil {
			return nil, err
		}
		g.CreatedAt = fromMillis(created)
		out = append(out, g)
	}
	return out, rows.Err()
}

// Books

const bookColumns = `id, title, isbn, page_count, year_published, primary_genre_id, secondary_genre_id, created_at`

func (s *SQLLibraryStore) CreateBook(ctx context.Context, book library.Book, authors []library.BookAuthor) (*library.BookWithAuthors, error) {
	book.CreatedAt = s.Now().Truncate(time.Millisecond)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.q(`
			INSERT INTO books (title, isbn, page_count, year_published, primary_genre_id, secondary_genre_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			book.Title, book.ISBN, nullInt(book.PageCount), nullInt(book.YearPublished),
			nullInt64(book.PrimaryGenreID), nullInt64(book.SecondaryGenreID), toMillis(book.CreatedAt),
		).Scan(&book.ID)
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}
		return s.writeBookAuthors(ctx, tx, book.ID, authors)
	})
	if err != nil {
		return nil, err
	}
	return &library.BookWithAuthors{Book: book, Authors: append([]library.BookAuthor{}, authors...)}, nil
}

func (s *SQLLibraryStore) UpdateBook(ctx context.Context, book library.Book, authors []library.BookAuthor) (*library.BookWithAuthors, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE books SET title = ?, isbn = ?, page_count = ?, year_published = ?,
				primary_genre_id = ?, secondary_genre_id = ?
			WHERE id = ?`),
			book.Title, book.ISBN, nullInt(book.PageCount), nullInt(book.YearPublished),
			nullInt64(book.PrimaryGenreID), nullInt64(book.SecondaryGenreID), book.ID,
		)
		if err != nil {
			return fmt.Errorf("update book %d: %w", book.ID, err)
		}
		if err := requireAffected(res, library.ErrBookNotFound); err != nil {
			return err
		}
		if authors == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM book_authors WHERE book_id = ?`), book.ID); err != nil {
			return fmt.Errorf("clear book authors %d: %w", book.ID, err)
		}
		return s.writeBookAuthors(ctx, tx, book.ID, authors)
	})
	if err != nil {
		return nil, err
	}
	return s.GetBookWithAuthors(ctx, book.ID)
}

func (s *SQLLibraryStore) writeBookAuthors(ctx context.Context, tx *sql.Tx, bookID int64, authors []library.BookAuthor) error {
	for i, a := range authors {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO book_authors (book_id, author_id, role, position) VALUES (?, ?, ?, ?)`),
			bookID, a.AuthorID, string(a.Role), i)
		if err != nil {
			return fmt.Errorf("link author %d to book %d: %w", a.AuthorID, bookID, err)
		}
	}
	return nil
}

func (s *SQLLibraryStore) DeleteBook(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM book_authors WHERE book_id = ?`,
			`DELETE FROM readings WHERE book_id = ?`,
			`DELETE FROM user_books WHERE book_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.q(stmt), id); err != nil {
				return fmt.Errorf("delete book %d dependents: %w", id, err)
			}
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM books WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete book %d: %w", id, err)
		}
		return requireAffected(res, library.ErrBookNotFound)
	})
}

func (s *SQLLibraryStore) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx, s.q(`SELECT `+bookColumns+` FROM books WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return b, nil
}

func (s *SQLLibraryStore) GetBookWithAuthors(ctx context.Context, id int64) (*library.BookWithAuthors, error) {
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT author_id, role FROM book_authors WHERE book_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("list book authors %d: %w", id, err)
	}
	defer rows.Close()

	out := &library.BookWithAuthors{Book: *b, Authors: []library.BookAuthor{}}
	for rows.Next() {
		var (
			ba   library.BookAuthor
			role string
		)
		if err := rows.Scan(&ba.AuthorID, &role); err != nil {
			return nil, err
		}
		ba.Role = library.AuthorRole(role)
		out.Authors = append(out.Authors, ba)
	}
	return out, rows.Err()
}

func (s *SQLLibraryStore) ListBooks(ctx context.Context) ([]library.Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
}

func (s *SQLLibraryStore) ListBooksByAuthor(ctx context.Context, authorID int64) ([]library.Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books
		WHERE id IN (SELECT book_id FROM book_authors WHERE author_id = ?) ORDER BY id`, authorID)
}

func (s *SQLLibraryStore) ListBooksByGenre(ctx context.Context, genreID int64) ([]library.Book, error) {
	return s.queryBooks(ctx, `SELECT `+bookColumns+` FROM books
		WHERE primary_genre_id = ? OR secondary_genre_id = ? ORDER BY id`, genreID, genreID)
}

func (s *SQLLibraryStore) queryBooks(ctx context.Context, query string, args ...any) ([]library.Book, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	out := make([]library.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBook(sc rowScanner) (*library.Book, error) {
	var (
		b                       library.Book
		pages, year             sql.NullInt64
		primaryGenre, secondary sql.NullInt64
		created                 int64
	)
	if err := sc.Scan(&b.ID, &b.Title, &b.ISBN, &pages, &year, &primaryGenre, &secondary, &created); err != nil {
		return nil, err
	}
	b.PageCount = intPtr(pages)
	b.YearPublished = intPtr(year)
	b.PrimaryGenreID = int64Ptr(primaryGenre)
	b.SecondaryGenreID = int64Ptr(secondary)
	b.CreatedAt = fromMillis(created)
	return &b, nil
}

// Readings

const readingColumns = `id, user_id, book_id, status, format, rating, quick_reviews, created_at, updated_at`

func (s *SQLLibraryStore) CreateReading(ctx context.Context, reading library.Reading) (*library.Reading, error) {
	if _, err := s.GetBook(ctx, reading.BookID); err != nil {
		return nil, err
	}
	now := s.Now().Truncate(time.Millisecond)
	reading.CreatedAt = now
	reading.UpdatedAt = now
	reviews, err := encodeQuickReviews(reading.QuickReviews)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, s.q(`
		INSERT INTO readings (user_id, book_id, status, format, rating, quick_reviews, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		reading.UserID, reading.BookID, string(reading.Status), string(reading.Format),
		nullFloat(reading.Rating), reviews, toMillis(now), toMillis(now),
	).Scan(&reading.ID)
	if err != nil {
		return nil, fmt.Errorf("insert reading: %w", err)
	}
	return &reading, nil
}

func (s *SQLLibraryStore) UpdateReading(ctx context.Context, reading library.Reading) (*library.Reading, error) {
	reviews, err := encodeQuickReviews(reading.QuickReviews)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE readings SET status = ?, format = ?, rating = ?, quick_reviews = ?, updated_at = ?
		WHERE id = ?`),
		string(reading.Status), string(reading.Format), nullFloat(reading.Rating), reviews,
		toMillis(s.Now()), reading.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reading %d: %w", reading.ID, err)
	}
	if err := requireAffected(res, library.ErrReadingNotFound); err != nil {
		return nil, err
	}
	return s.GetReading(ctx, reading.ID)
}

func (s *SQLLibraryStore) DeleteReading(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM readings WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete reading %d: %w", id, err)
	}
	return requireAffected(res, library.ErrReadingNotFound)
}

func (s *SQLLibraryStore) GetReading(ctx context.Context, id int64) (*library.Reading, error) {
	r, err := scanReading(s.db.QueryRowContext(ctx, s.q(`SELECT `+readingColumns+` FROM readings WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrReadingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reading %d: %w", id, err)
	}
	return r, nil
}

func (s *SQLLibraryStore) ListReadings(ctx context.Context) ([]library.Reading, error) {
	return s.queryReadings(ctx, `SELECT `+readingColumns+` FROM readings ORDER BY id`)
}

func (s *SQLLibraryStore) ListReadingsByBook(ctx context.Context, bookID int64) ([]library.Reading, error) {
	return s.queryReadings(ctx, `SELECT `+readingColumns+` FROM readings WHERE book_id = ? ORDER BY id`, bookID)
}

func (s *SQLLibraryStore) queryReadings(ctx context.Context, query string, args ...any) ([]library.Reading, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	out := make([]library.Reading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanReading(sc rowScanner) (*library.Reading, error) {
	var (
		r                library.Reading
		status, format   string
		rating           sql.NullFloat64
		reviews          string
		created, updated int64
	)
	if err := sc.Scan(&r.ID, &r.UserID, &r.BookID, &status, &format, &rating, &reviews, &created, &updated); err != nil {
		return nil, err
	}
	r.Status = library.ReadingStatus(status)
	r.Format = library.ReadingFormat(format)
	r.Rating = floatPtr(rating)
	if err := json.Unmarshal([]byte(reviews), &r.QuickReviews); err != nil {
		return nil, fmt.Errorf("decode quick reviews: %w", err)
	}
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(updated)
	return &r, nil
}

func encodeQuickReviews(reviews []library.QuickReview) (string, error) {
	if reviews == nil {
		reviews = []library.QuickReview{}
	}
	data, err := json.Marshal(reviews)
	if err != nil {
		return "", fmt.Errorf("marshal quick reviews: %w", err)
	}
	return string(data), nil
}

// Shelf

func (s *SQLLibraryStore) CreateUserBook(ctx context.Context, userID, bookID int64) (*library.UserBook, error) {
	if _, err := s.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	ub := library.UserBook{UserID: userID, BookID: bookID, CreatedAt: s.Now().Truncate(time.Millisecond)}
	err := s.db.QueryRowContext(ctx, s.q(`INSERT INTO user_books (user_id, book_id, created_at) VALUES (?, ?, ?) RETURNING id`),
		ub.UserID, ub.BookID, toMillis(ub.CreatedAt)).Scan(&ub.ID)
	if err != nil {
		return nil, fmt.Errorf("insert user book: %w", err)
	}
	return &ub, nil
}

const userBookColumns = `id, user_id, book_id, created_at`

func (s *SQLLibraryStore) GetUserBook(ctx context.Context, id int64) (*library.UserBook, error) {
	ub, err := scanUserBook(s.db.QueryRowContext(ctx, s.q(`SELECT `+userBookColumns+` FROM user_books WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, library.ErrUserBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user book %d: %w", id, err)
	}
	return ub, nil
}

func (s *SQLLibraryStore) ListUserBooks(ctx context.Context) ([]library.UserBook, error) {
	return s.queryUserBooks(ctx, `SELECT `+userBookColumns+` FROM user_books ORDER BY id`)
}

func (s *SQLLibraryStore) ListUserBooksByBook(ctx context.Context, bookID int64) ([]library.UserBook, error) {
	return s.queryUserBooks(ctx, `SELECT `+userBookColumns+` FROM user_books WHERE book_id = ? ORDER BY id`, bookID)
}

func (s *SQLLibraryStore) queryUserBooks(ctx context.Context, query string, args ...any) ([]library.UserBook, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list user books: %w", err)
	}
	defer rows.Close()

	out := make([]library.UserBook, 0)
	for rows.Next() {
		ub, err := scanUserBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ub)
	}
	return out, rows.Err()
}

func scanUserBook(sc rowScanner) (*library.UserBook, error) {
	var (
		ub      library.UserBook
		created int64
	)
	if err := sc.Scan(&ub.ID, &ub.UserID, &ub.BookID, &created); err != nil {
		return nil, err
	}
	ub.CreatedAt = fromMillis(created)
	return &ub, nil
}

func (s *SQLLibraryStore) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"book_authors", "readings", "user_books", "books", "authors", "genres"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
}
