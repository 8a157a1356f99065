package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/booklog-timeline/internal/domain/library"
)

// LibraryMemStore is an in-memory LibraryStore
type LibraryMemStore struct {
	mu          sync.RWMutex
	authors     map[int64]library.Author
	genres      map[int64]library.Genre
	books       map[int64]library.Book
	bookAuthors map[int64][]library.BookAuthor
	readings    map[int64]library.Reading
	userBooks   map[int64]library.UserBook
	lastID      int64

	// Now supplies creation and update timestamps.
	Now func() time.Time
}

func NewLibraryMemStore() *LibraryMemStore {
	s := &LibraryMemStore{Now: func() time.Time { return time.Now().UTC() }}
	s.resetLocked()
	return s
}

func (s *LibraryMemStore) resetLocked() {
	s.authors = make(map[int64]library.Author)
	s.genres = make(map[int64]library.Genre)
	s.books = make(map[int64]library.Book)
	s.bookAuthors = make(map[int64][]library.BookAuthor)
	s.readings = make(map[int64]library.Reading)
	s.userBooks = make(map[int64]library.UserBook)
}

func (s *LibraryMemStore) newID() int64 {
	s.lastID++
	return s.lastID
}

// Authors

func (s *LibraryMemStore) CreateAuthor(ctx context.Context, name string) (*library.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := library.Author{ID: s.newID(), Name: name, CreatedAt: s.Now()}
	s.authors[a.ID] = a
	return &a, nil
}

func (s *LibraryMemStore) UpdateAuthor(ctx context.Context, id int64, name string) (*library.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authors[id]
	if !ok {
		return nil, library.ErrAuthorNotFound
	}
	a.Name = name
	s.authors[id] = a
	return &a, nil
}

func (s *LibraryMemStore) DeleteAuthor(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[id]; !ok {
		return library.ErrAuthorNotFound
	}
	delete(s.authors, id)
	for bookID, links := range s.bookAuthors {
		kept := links[:0:0]
		for _, l := range links {
			if l.AuthorID != id {
				kept = append(kept, l)
			}
		}
		s.bookAuthors[bookID] = kept
	}
	return nil
}

func (s *LibraryMemStore) GetAuthor(ctx context.Context, id int64) (*library.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return nil, library.ErrAuthorNotFound
	}
	return &a, nil
}

func (s *LibraryMemStore) ListAuthors(ctx context.Context) ([]library.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]library.Author, 0, len(s.authors))
	for _, a := range s.authors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Genres

func (s *LibraryMemStore) CreateGenre(ctx context.Context, name string) (*library.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := library.Genre{ID: s.newID(), Name: name, CreatedAt: s.Now()}
	s.genres[g.ID] = g
	return &g, nil
}

func (s *LibraryMemStore) UpdateGenre(ctx context.Context, id int64, name string) (*library.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.genres[id]
	if !ok {
		return nil, library.ErrGenreNotFound
	}
	g.Name = name
	s.genres[id] = g
	return &g, nil
}

func (s *LibraryMemStore) DeleteGenre(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.genres[id]; !ok {
		return library.ErrGenreNotFound
	}
	delete(s.genres, id)
	for bookID, b := range s.books {
		if b.PrimaryGenreID != nil && *b.PrimaryGenreID == id {
			b.PrimaryGenreID = nil
		}
		if b.SecondaryGenreID != nil && *b.SecondaryGenreID == id {
			b.SecondaryGenreID = nil
		}
		s.books[bookID] = b
	}
	return nil
}

func (s *LibraryMemStore) GetGenre(ctx context.Context, id int64) (*library.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.genres[id]
	if !ok {
		return nil, library.ErrGenreNotFound
	}
	return &g, nil
}

func (s *LibraryMemStore) ListGenres(ctx context.Context) ([]library.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]library.Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Books

func (s *LibraryMemStore) CreateBook(ctx context.Context, book library.Book, authors []library.BookAuthor) (*library.BookWithAuthors, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book.ID = s.newID()
	book.CreatedAt = s.Now()
	s.books[book.ID] = book
	s.bookAuthors[book.ID] = append([]library.BookAuthor{}, authors...)
	return s.bookWithAuthorsLocked(book.ID), nil
}

func (s *LibraryMemStore) UpdateBook(ctx context.Context, book library.Book, authors []library.BookAuthor) (*library.BookWithAuthors, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.books[book.ID]
	if !ok {
		return nil, library.ErrBookNotFound
	}
	book.CreatedAt = current.CreatedAt
	s.books[book.ID] = book
	if authors != nil {
		s.bookAuthors[book.ID] = append([]library.BookAuthor{}, authors...)
	}
	return s.bookWithAuthorsLocked(book.ID), nil
}

func (s *LibraryMemStore) DeleteBook(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return library.ErrBookNotFound
	}
	delete(s.books, id)
	delete(s.bookAuthors, id)
	for rid, r := range s.readings {
		if r.BookID == id {
			delete(s.readings, rid)
		}
	}
	for uid, ub := range s.userBooks {
		if ub.BookID == id {
			delete(s.userBooks, uid)
		}
	}
	return nil
}

func (s *LibraryMemStore) GetBook(ctx context.Context, id int64) (*library.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return nil, library.ErrBookNotFound
	}
	return &b, nil
}

func (s *LibraryMemStore) GetBookWithAuthors(ctx context.Context, id int64) (*library.BookWithAuthors, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.books[id]; !ok {
		return nil, library.ErrBookNotFound
	}
	return s.bookWithAuthorsLocked(id), nil
}

func (s *LibraryMemStore) bookWithAuthorsLocked(id int64) *library.BookWithAuthors {
	return &library.BookWithAuthors{
		Book:    s.books[id],
		Authors: append([]library.BookAuthor{}, s.bookAuthors[id]...),
	}
}

func (s *LibraryMemStore) ListBooks(ctx context.Context) ([]library.Book, error) {
	return s.filterBooks(func(library.Book) bool { return true }), nil
}

func (s *LibraryMemStore) ListBooksByAuthor(ctx context.Context, authorID int64) ([]library.Book, error) {
	s.mu.RLock()
	linked := make(map[int64]bool)
	for bookID, links := range s.bookAuthors {
		for _, l := range links {
			if l.AuthorID == authorID {
				linked[bookID] = true
			}
		}
	}
	s.mu.RUnlock()
	return s.filterBooks(func(b library.Book) bool { return linked[b.ID] }), nil
}

func (s *LibraryMemStore) ListBooksByGenre(ctx context.Context, genreID int64) ([]library.Book, error) {
	return s.filterBooks(func(b library.Book) bool { return b.HasGenre(genreID) }), nil
}

func (s *LibraryMemStore) filterBooks(keep func(library.Book) bool) []library.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]library.Book, 0)
	for _, b := range s.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Readings

func (s *LibraryMemStore) CreateReading(ctx context.Context, reading library.Reading) (*library.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[reading.BookID]; !ok {
		return nil, library.ErrBookNotFound
	}
	now := s.Now()
	reading.ID = s.newID()
	reading.CreatedAt = now
	reading.UpdatedAt = now
	s.readings[reading.ID] = reading
	return &reading, nil
}

func (s *LibraryMemStore) UpdateReading(ctx context.Context, reading library.Reading) (*library.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.readings[reading.ID]
	if !ok {
		return nil, library.ErrReadingNotFound
	}
	reading.BookID = current.BookID
	reading.UserID = current.UserID
	reading.CreatedAt = current.CreatedAt
	reading.UpdatedAt = s.Now()
	s.readings[reading.ID] = reading
	return &reading, nil
}

func (s *LibraryMemStore) DeleteReading(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.readings[id]; !ok {
		return library.ErrReadingNotFound
	}
	delete(s.readings, id)
	return nil
}

func (s *LibraryMemStore) GetReading(ctx context.Context, id int64) (*library.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.readings[id]
	if !ok {
		return nil, library.ErrReadingNotFound
	}
	return &r, nil
}

func (s *LibraryMemStore) ListReadings(ctx context.Context) ([]library.Reading, error) {
	return s.filterReadings(func(library.Reading) bool { return true }), nil
}

func (s *LibraryMemStore) ListReadingsByBook(ctx context.Context, bookID int64) ([]library.Reading, error) {
	return s.filterReadings(func(r library.Reading) bool { return r.BookID == bookID }), nil
}

func (s *LibraryMemStore) filterReadings(keep func(library.Reading) bool) []library.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]library.Reading, 0)
	for _, r := range s.readings {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shelf

func (s *LibraryMemStore) CreateUserBook(ctx context.Context, userID, bookID int64) (*library.UserBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return nil, library.ErrBookNotFound
	}
	ub := library.UserBook{ID: s.newID(), UserID: userID, BookID: bookID, CreatedAt: s.Now()}
	s.userBooks[ub.ID] = ub
	return &ub, nil
}

func (s *LibraryMemStore) GetUserBook(ctx context.Context, id int64) (*library.UserBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ub, ok := s.userBooks[id]
	if !ok {
		return nil, library.ErrUserBookNotFound
	}
	return &ub, nil
}

func (s *LibraryMemStore) ListUserBooks(ctx context.Context) ([]library.UserBook, error) {
	return s.filterUserBooks(func(library.UserBook) bool { return true }), nil
}

func (s *LibraryMemStore) ListUserBooksByBook(ctx context.Context, bookID int64) ([]library.UserBook, error) {
	return s.filterUserBooks(func(ub library.UserBook) bool { return ub.BookID == bookID }), nil
}

func (s *LibraryMemStore) filterUserBooks(keep func(library.UserBook) bool) []library.UserBook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]library.UserBook, 0)
	for _, ub := range s.userBooks {
		if keep(ub) {
			out = append(out, ub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *LibraryMemStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	return nil
}
