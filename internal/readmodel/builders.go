package readmodel

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/example/booklog-timeline/internal/domain/library"
)

// The builders below are the only place timeline events are derived from
// library entities. Both the creation path and the refresh resolver call them,
// so a snapshot written at creation and one written by a refresh are identical.

func AuthorEvent(author *library.Author, userID *int64) NewTimelineEvent {
	return NewTimelineEvent{
		UserID:     userID,
		EntityType: EntityAuthor,
		EntityID:   author.ID,
		Action:     ActionAdded,
		OccurredAt: author.CreatedAt,
		Title:      author.Name,
		Details:    []Detail{},
		Genres:     []string{},
	}
}

func GenreEvent(genre *library.Genre, userID *int64) NewTimelineEvent {
	return NewTimelineEvent{
		UserID:     userID,
		EntityType: EntityGenre,
		EntityID:   genre.ID,
		Action:     ActionAdded,
		OccurredAt: genre.CreatedAt,
		Title:      genre.Name,
		Details:    []Detail{},
		Genres:     []string{},
	}
}

// BookEvent builds the "added" event of a book. Genre names are passed as
// empty strings when the book has no such genre.
func BookEvent(book *library.Book, authors []library.Author, primaryGenre, secondaryGenre string, userID *int64) NewTimelineEvent {
	details := []Detail{AuthorDetail(library.AuthorNames(authors))}

	genres := make([]string, 0, 2)
	for _, g := range []string{primaryGenre, secondaryGenre} {
		if g != "" {
			genres = append(genres, g)
		}
	}
	if len(genres) > 0 {
		details = append(details, Detail{Label: "Genres", Value: strings.Join(genres, ", ")})
	}
	if book.PageCount != nil {
		details = append(details, Detail{Label: "Pages", Value: strconv.Itoa(*book.PageCount)})
	}

	return NewTimelineEvent{
		UserID:     userID,
		EntityType: EntityBook,
		EntityID:   book.ID,
		Action:     ActionAdded,
		OccurredAt: book.CreatedAt,
		Title:      book.Title,
		Details:    details,
		Genres:     genres,
	}
}

func ReadingEvent(reading *library.Reading, book *library.Book, authors []library.Author) NewTimelineEvent {
	details := []Detail{AuthorDetail(library.AuthorNames(authors))}

	if reading.Format != "" {
		details = append(details, Detail{Label: "Format", Value: reading.Format.DisplayLabel()})
	}
	if reading.Rating != nil {
		details = append(details, Detail{Label: "Rating", Value: FormatRating(*reading.Rating)})
	}
	if len(reading.QuickReviews) > 0 {
		labels := make([]string, 0, len(reading.QuickReviews))
		for _, q := range reading.QuickReviews {
			labels = append(labels, q.Label())
		}
		details = append(details, Detail{Label: "Notes", Value: strings.Join(labels, ", ")})
	}

	userID := reading.UserID
	return NewTimelineEvent{
		UserID:     &userID,
		EntityType: EntityReading,
		EntityID:   reading.ID,
		Action:     ReadingAction(reading.Status),
		OccurredAt: readingOccurredAt(reading),
		Title:      book.Title,
		Details:    details,
		Genres:     []string{},
		ReadingData: &ReadingData{
			BookID: reading.BookID,
			Rating: reading.Rating,
			Status: string(reading.Status),
		},
	}
}

// ShelvedEvent records a book placed on a user's shelf. It is keyed by the
// shelf entry, so the book's own "added" event and other users' shelf
// entries for the same book are separate rows.
func ShelvedEvent(userBook *library.UserBook, book *library.Book, authors []library.Author) NewTimelineEvent {
	userID := userBook.UserID
	return NewTimelineEvent{
		UserID:     &userID,
		EntityType: EntityShelf,
		EntityID:   userBook.ID,
		Action:     ActionShelved,
		OccurredAt: userBook.CreatedAt,
		Title:      book.Title,
		Details:    []Detail{AuthorDetail(library.AuthorNames(authors))},
		Genres:     []string{},
	}
}

func ReadingAction(status library.ReadingStatus) string {
	switch status {
	case library.StatusRead:
		return ActionFinished
	case library.StatusAbandoned:
		return ActionAbandoned
	default:
		return ActionStarted
	}
}

func readingOccurredAt(reading *library.Reading) time.Time {
	switch reading.Status {
	case library.StatusRead, library.StatusAbandoned:
		return reading.UpdatedAt
	default:
		return reading.CreatedAt
	}
}

// AuthorDetail joins author names, falling back to "Unknown".
func AuthorDetail(names []string) Detail {
	value := "Unknown"
	if len(names) > 0 {
		value = strings.Join(names, ", ")
	}
	return Detail{Label: "Author", Value: value}
}

// FormatRating renders a star rating as "4/5" or "4.5/5".
func FormatRating(rating float64) string {
	if rating == math.Trunc(rating) {
		return strconv.Itoa(int(rating)) + "/5"
	}
	return strconv.FormatFloat(rating, 'f', -1, 64) + "/5"
}
