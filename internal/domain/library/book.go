package library

import (
	"strings"
	"time"
)

type AuthorRole string

const (
	RoleAuthor     AuthorRole = "author"
	RoleEditor     AuthorRole = "editor"
	RoleTranslator AuthorRole = "translator"
)

// ParseAuthorRole accepts any casing and defaults to RoleAuthor for empty input.
func ParseAuthorRole(s string) (AuthorRole, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "author":
		return RoleAuthor, true
	case "editor":
		return RoleEditor, true
	case "translator":
		return RoleTranslator, true
	}
	return "", false
}

type Book struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	ISBN             string    `json:"isbn,omitempty"`
	PageCount        *int      `json:"page_count,omitempty"`
	YearPublished    *int      `json:"year_published,omitempty"`
	PrimaryGenreID   *int64    `json:"primary_genre_id,omitempty"`
	SecondaryGenreID *int64    `json:"secondary_genre_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasGenre reports whether genreID is the primary or secondary genre.
func (b *Book) HasGenre(genreID int64) bool {
	return (b.PrimaryGenreID != nil && *b.PrimaryGenreID == genreID) ||
		(b.SecondaryGenreID != nil && *b.SecondaryGenreID == genreID)
}

// BookAuthor links a book to one of its contributors.
type BookAuthor struct {
	AuthorID int64      `json:"author_id"`
	Role     AuthorRole `json:"role"`
}

type BookWithAuthors struct {
	Book    Book         `json:"book"`
	Authors []BookAuthor `json:"authors"`
}

// AuthorIDs returns the linked author ids in link order.
func (b *BookWithAuthors) AuthorIDs() []int64 {
	ids := make([]int64, 0, len(b.Authors))
	for _, a := range b.Authors {
		ids = append(ids, a.AuthorID)
	}
	return ids
}

// UserBook is a shelf entry: a book placed on a user's shelf.
type UserBook struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateTitle trims a book title and rejects empty ones.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrInvalidTitle
	}
	return title, nil
}
