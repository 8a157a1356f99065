package command

// Author Commands
type CreateAuthor struct {
	Name   string `json:"name"`
	UserID *int64 `json:"-"`
}

type RenameAuthor struct {
	AuthorID int64  `json:"-"`
	Name     string `json:"name"`
}

type DeleteAuthor struct {
	AuthorID int64 `json:"-"`
}

// Genre Commands
type CreateGenre struct {
	Name   string `json:"name"`
	UserID *int64 `json:"-"`
}

type RenameGenre struct {
	GenreID int64  `json:"-"`
	Name    string `json:"name"`
}

type DeleteGenre struct {
	GenreID int64 `json:"-"`
}

// Book Commands
type BookAuthorInput struct {
	AuthorID int64  `json:"author_id"`
	Role     string `json:"role"`
}

type BookFields struct {
	Title            string            `json:"title"`
	ISBN             string            `json:"isbn"`
	PageCount        *int              `json:"page_count"`
	YearPublished    *int              `json:"year_published"`
	PrimaryGenreID   *int64            `json:"primary_genre_id"`
	SecondaryGenreID *int64            `json:"secondary_genre_id"`
	Authors          []BookAuthorInput `json:"authors"`
}

type CreateBook struct {
	BookFields
	UserID *int64 `json:"-"`
}

type UpdateBook struct {
	BookFields
	BookID int64 `json:"-"`
}

type DeleteBook struct {
	BookID int64 `json:"-"`
}

type ShelveBook struct {
	UserID int64 `json:"-"`
	BookID int64 `json:"-"`
}

// Reading Commands
type StartReading struct {
	UserID int64  `json:"-"`
	BookID int64  `json:"book_id"`
	Format string `json:"format"`
}

type UpdateReading struct {
	UserID       int64    `json:"-"`
	ReadingID    int64    `json:"-"`
	Status       string   `json:"status"`
	Format       string   `json:"format"`
	Rating       *float64 `json:"rating"`
	QuickReviews []string `json:"quick_reviews"`
}

type FinishReading struct {
	UserID       int64    `json:"-"`
	ReadingID    int64    `json:"-"`
	Rating       *float64 `json:"rating"`
	QuickReviews []string `json:"quick_reviews"`
}

type AbandonReading struct {
	UserID    int64 `json:"-"`
	ReadingID int64 `json:"-"`
}

type DeleteReading struct {
	UserID    int64 `json:"-"`
	ReadingID int64 `json:"-"`
}
