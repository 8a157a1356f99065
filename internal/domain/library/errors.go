package library

import "errors"

// ErrNotFound matches every entity-specific not-found error via errors.Is.
var ErrNotFound = errors.New("not found")

var (
	ErrAuthorNotFound   error = &notFoundError{entity: "author"}
	ErrBookNotFound     error = &notFoundError{entity: "book"}
	ErrGenreNotFound    error = &notFoundError{entity: "genre"}
	ErrReadingNotFound  error = &notFoundError{entity: "reading"}
	ErrUserBookNotFound error = &notFoundError{entity: "user book"}
)

var (
	ErrInvalidName   = errors.New("name is required")
	ErrInvalidTitle  = errors.New("title is required")
	ErrInvalidRating = errors.New("rating must be between 0.5 and 5 in half steps")
	ErrInvalidStatus = errors.New("invalid reading status")
	ErrInvalidFormat = errors.New("invalid reading format")
	ErrInvalidRole   = errors.New("invalid author role")
	ErrInvalidReview = errors.New("invalid quick review")
	ErrNotOwner      = errors.New("reading belongs to another user")
)

type notFoundError struct {
	entity string
}

func (e *notFoundError) Error() string {
	return e.entity + " not found"
}

func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound reports whether err is any library not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
