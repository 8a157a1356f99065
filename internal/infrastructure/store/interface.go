package store

import (
	"context"

	"github.com/example/booklog-timeline/internal/domain/library"
)

// LibraryStore holds the authoritative library tables. The timeline refresh
// code only reads from it.
type LibraryStore interface {
	LibraryReader

	CreateAuthor(ctx context.Context, name string) (*library.Author, error)
	UpdateAuthor(ctx context.Context, id int64, name string) (*library.Author, error)
	DeleteAuthor(ctx context.Context, id int64) error

	CreateGenre(ctx context.Context, name string) (*library.Genre, error)
	UpdateGenre(ctx context.Context, id int64, name string) (*library.Genre, error)
	DeleteGenre(ctx context.Context, id int64) error

	CreateBook(ctx context.Context, book library.Book, authors []library.BookAuthor) (*library.BookWithAuthors, error)
	UpdateBook(ctx context.Context, book library.Book, authors []library.BookAuthor) (*library.BookWithAuthors, error)
	DeleteBook(ctx context.Context, id int64) error

	CreateReading(ctx context.Context, reading library.Reading) (*library.Reading, error)
	UpdateReading(ctx context.Context, reading library.Reading) (*library.Reading, error)
	DeleteReading(ctx context.Context, id int64) error

	CreateUserBook(ctx context.Context, userID, bookID int64) (*library.UserBook, error)

	// Reset removes every library row.
	Reset(ctx context.Context) error
}

// LibraryReader is the read side used by the timeline resolver.
type LibraryReader interface {
	GetAuthor(ctx context.Context, id int64) (*library.Author, error)
	GetGenre(ctx context.Context, id int64) (*library.Genre, error)
	GetBook(ctx context.Context, id int64) (*library.Book, error)
	GetBookWithAuthors(ctx context.Context, id int64) (*library.BookWithAuthors, error)
	GetReading(ctx context.Context, id int64) (*library.Reading, error)
	GetUserBook(ctx context.Context, id int64) (*library.UserBook, error)

	ListBooksByAuthor(ctx context.Context, authorID int64) ([]library.Book, error)
	ListBooksByGenre(ctx context.Context, genreID int64) ([]library.Book, error)
	ListReadingsByBook(ctx context.Context, bookID int64) ([]library.Reading, error)
	ListUserBooksByBook(ctx context.Context, bookID int64) ([]library.UserBook, error)

	ListAuthors(ctx context.Context) ([]library.Author, error)
	ListGenres(ctx context.Context) ([]library.Genre, error)
	ListBooks(ctx context.Context) ([]library.Book, error)
	ListReadings(ctx context.Context) ([]library.Reading, error)
	ListUserBooks(ctx context.Context) ([]library.UserBook, error)
}
