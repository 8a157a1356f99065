package command

import (
	"context"
	"fmt"

	"github.com/example/booklog-timeline/internal/domain/library"
	"github.com/example/booklog-timeline/internal/infrastructure/store"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/projection"
	"github.com/example/booklog-timeline/internal/readmodel"
)

// Handler runs library mutations. After each committed write it inserts the
// new entity's timeline snapshot, deletes snapshots of deleted entities, or
// signals the invalidator so the worker refreshes dependent snapshots.
type Handler struct {
	library     store.LibraryStore
	timeline    store.TimelineStore
	invalidator projection.Invalidator
	log         *logger.Logger
}

func NewHandler(lib store.LibraryStore, timeline store.TimelineStore, invalidator projection.Invalidator, log *logger.Logger) *Handler {
	return &Handler{
		library:     lib,
		timeline:    timeline,
		invalidator: invalidator,
		log:         log.With("component", "commands"),
	}
}

// insertSnapshot writes a creation-time snapshot. Failures leave the entity
// without a feed row until the next full rebuild and are only logged.
func (h *Handler) insertSnapshot(ctx context.Context, event readmodel.NewTimelineEvent) {
	if _, err := h.timeline.Insert(ctx, event); err != nil {
		h.log.Warn("timeline snapshot insert failed", "entity", event.Ref().String(), "error", err)
	}
}

func (h *Handler) deleteSnapshot(ctx context.Context, typ readmodel.EntityType, id int64) {
	ref := readmodel.EntityRef{Type: typ, ID: id}
	if err := h.timeline.DeleteByEntity(ctx, ref); err != nil {
		h.log.Warn("timeline snapshot delete failed", "entity", ref.String(), "error", err)
	}
}

// ============================================
// Authors
// ============================================

func (h *Handler) CreateAuthor(ctx context.Context, cmd CreateAuthor) (*library.Author, error) {
	name, err := library.ValidateName(cmd.Name)
	if err != nil {
		return nil, err
	}
	a, err := h.library.CreateAuthor(ctx, name)
	if err != nil {
		return nil, err
	}
	h.insertSnapshot(ctx, readmodel.AuthorEvent(a, cmd.UserID))
	return a, nil
}

func (h *Handler) RenameAuthor(ctx context.Context, cmd RenameAuthor) (*library.Author, error) {
	name, err := library.ValidateName(cmd.Name)
	if err != nil {
		return nil, err
	}
	a, err := h.library.UpdateAuthor(ctx, cmd.AuthorID, name)
	if err != nil {
		return nil, err
	}
	h.invalidator.Invalidate(readmodel.EntityAuthor, a.ID)
	return a, nil
}

// DeleteAuthor removes the author's snapshot immediately and refreshes the
// books that credited it.
func (h *Handler) DeleteAuthor(ctx context.Context, cmd DeleteAuthor) error {
	books, err := h.library.ListBooksByAuthor(ctx, cmd.AuthorID)
	if err != nil {
		return err
	}
	if err := h.library.DeleteAuthor(ctx, cmd.AuthorID); err != nil {
		return err
	}
	h.deleteSnapshot(ctx, readmodel.EntityAuthor, cmd.AuthorID)
	for _, b := range books {
		h.invalidator.Invalidate(readmodel.EntityBook, b.ID)
	}
	return nil
}

// ============================================
// Genres
// ============================================

func (h *Handler) CreateGenre(ctx context.Context, cmd CreateGenre) (*library.Genre, error) {
	name, err := library.ValidateName(cmd.Name)
	if err != nil {
		return nil, err
	}
	g, err := h.library.CreateGenre(ctx, name)
	if err != nil {
		return nil, err
	}
	h.insertSnapshot(ctx, readmodel.GenreEvent(g, cmd.UserID))
	return g, nil
}

func (h *Handler) RenameGenre(ctx context.Context, cmd RenameGenre) (*library.Genre, error) {
	name, err := library.ValidateName(cmd.Name)
	if err != nil {
		return nil, err
	}
	g, err := h.library.UpdateGenre(ctx, cmd.GenreID, name)
	if err != nil {
		return nil, err
	}
	h.invalidator.Invalidate(readmodel.EntityGenre, g.ID)
	return g, nil
}

func (h *Handler) DeleteGenre(ctx context.Context, cmd DeleteGenre) error {
	books, err := h.library.ListBooksByGenre(ctx, cmd.GenreID)
	if err != nil {
		return err
	}
	if err := h.library.DeleteGenre(ctx, cmd.GenreID); err != nil {
		return err
	}
	h.deleteSnapshot(ctx, readmodel.EntityGenre, cmd.GenreID)
	for _, b := range books {
		h.invalidator.Invalidate(readmodel.EntityBook, b.ID)
	}
	return nil
}

// ============================================
// Books
// ============================================

func (h *Handler) bookFromFields(ctx context.Context, f BookFields) (library.Book, []library.BookAuthor, error) {
	title, err := library.ValidateTitle(f.Title)
	if err != nil {
		return library.Book{}, nil, err
	}
	for _, id := range []*int64{f.PrimaryGenreID, f.SecondaryGenreID} {
		if id == nil {
			continue
		}
		if _, err := h.library.GetGenre(ctx, *id); err != nil {
			return library.Book{}, nil, err
		}
	}
	links := make([]library.BookAuthor, 0, len(f.Authors))
	for _, in := range f.Authors {
		role, ok := library.ParseAuthorRole(in.Role)
		if !ok {
			return library.Book{}, nil, fmt.Errorf("%w: %q", library.ErrInvalidRole, in.Role)
		}
		if _, err := h.library.GetAuthor(ctx, in.AuthorID); err != nil {
			return library.Book{}, nil, err
		}
		links = append(links, library.BookAuthor{AuthorID: in.AuthorID, Role: role})
	}
	return library.Book{
		Title:            title,
		ISBN:             f.ISBN,
		PageCount:        f.PageCount,
		YearPublished:    f.YearPublished,
		PrimaryGenreID:   f.PrimaryGenreID,
		SecondaryGenreID: f.SecondaryGenreID,
	}, links, nil
}

func (h *Handler) CreateBook(ctx context.Context, cmd CreateBook) (*library.BookWithAuthors, error) {
	book, links, err := h.bookFromFields(ctx, cmd.BookFields)
	if err != nil {
		return nil, err
	}
	created, err := h.library.CreateBook(ctx, book, links)
	if err != nil {
		return nil, err
	}

	authors, err := h.authorsOf(ctx, created)
	if err != nil {
		h.log.Warn("load book authors for snapshot", "book_id", created.Book.ID, "error", err)
		return created, nil
	}
	primary, secondary := h.genreNames(ctx, &created.Book)
	h.insertSnapshot(ctx, readmodel.BookEvent(&created.Book, authors, primary, secondary, cmd.UserID))
	return created, nil
}

func (h *Handler) UpdateBook(ctx context.Context, cmd UpdateBook) (*library.BookWithAuthors, error) {
	book, links, err := h.bookFromFields(ctx, cmd.BookFields)
	if err != nil {
		return nil, err
	}
	book.ID = cmd.BookID
	updated, err := h.library.UpdateBook(ctx, book, links)
	if err != nil {
		return nil, err
	}
	h.invalidator.Invalidate(readmodel.EntityBook, updated.Book.ID)
	return updated, nil
}

// DeleteBook removes the book's snapshot and the snapshots of its readings
// and shelf entries before returning.
func (h *Handler) DeleteBook(ctx context.Context, cmd DeleteBook) error {
	readings, err := h.library.ListReadingsByBook(ctx, cmd.BookID)
	if err != nil {
		return err
	}
	shelved, err := h.library.ListUserBooksByBook(ctx, cmd.BookID)
	if err != nil {
		return err
	}
	if err := h.library.DeleteBook(ctx, cmd.BookID); err != nil {
		return err
	}
	h.deleteSnapshot(ctx, readmodel.EntityBook, cmd.BookID)
	for _, r := range readings {
		h.deleteSnapshot(ctx, readmodel.EntityReading, r.ID)
	}
	for _, ub := range shelved {
		h.deleteSnapshot(ctx, readmodel.EntityShelf, ub.ID)
	}
	return nil
}

// ShelveBook places a book on the user's shelf and records a "shelved"
// snapshot for the new shelf entry.
func (h *Handler) ShelveBook(ctx context.Context, cmd ShelveBook) (*library.UserBook, error) {
	book, err := h.library.GetBookWithAuthors(ctx, cmd.BookID)
	if err != nil {
		return nil, err
	}
	ub, err := h.library.CreateUserBook(ctx, cmd.UserID, cmd.BookID)
	if err != nil {
		return nil, err
	}
	authors, err := h.authorsOf(ctx, book)
	if err != nil {
		h.log.Warn("load book authors for snapshot", "book_id", book.Book.ID, "error", err)
		return ub, nil
	}
	h.insertSnapshot(ctx, readmodel.ShelvedEvent(ub, &book.Book, authors))
	return ub, nil
}

func (h *Handler) authorsOf(ctx context.Context, book *library.BookWithAuthors) ([]library.Author, error) {
	authors := make([]library.Author, 0, len(book.Authors))
	for _, link := range book.Authors {
		a, err := h.library.GetAuthor(ctx, link.AuthorID)
		if library.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		authors = append(authors, *a)
	}
	return authors, nil
}

func (h *Handler) genreNames(ctx context.Context, book *library.Book) (primary, secondary string) {
	name := func(id *int64) string {
		if id == nil {
			return ""
		}
		g, err := h.library.GetGenre(ctx, *id)
		if err != nil {
			return ""
		}
		return g.Name
	}
	return name(book.PrimaryGenreID), name(book.SecondaryGenreID)
}

// ============================================
// Readings
// ============================================

func (h *Handler) StartReading(ctx context.Context, cmd StartReading) (*library.Reading, error) {
	var format library.ReadingFormat
	if cmd.Format != "" {
		f, err := library.ParseReadingFormat(cmd.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	book, err := h.library.GetBookWithAuthors(ctx, cmd.BookID)
	if err != nil {
		return nil, err
	}
	reading, err := h.library.CreateReading(ctx, library.Reading{
		UserID: cmd.UserID,
		BookID: cmd.BookID,
		Status: library.StatusReading,
		Format: format,
	})
	if err != nil {
		return nil, err
	}

	authors, err := h.authorsOf(ctx, book)
	if err != nil {
		h.log.Warn("load book authors for snapshot", "book_id", book.Book.ID, "error", err)
		return reading, nil
	}
	h.insertSnapshot(ctx, readmodel.ReadingEvent(reading, &book.Book, authors))
	return reading, nil
}

func (h *Handler) ownedReading(ctx context.Context, userID, readingID int64) (*library.Reading, error) {
	r, err := h.library.GetReading(ctx, readingID)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, library.ErrNotOwner
	}
	return r, nil
}

func (h *Handler) saveReading(ctx context.Context, r library.Reading) (*library.Reading, error) {
	if err := library.ValidateRating(r.Rating); err != nil {
		return nil, err
	}
	updated, err := h.library.UpdateReading(ctx, r)
	if err != nil {
		return nil, err
	}
	h.invalidator.Invalidate(readmodel.EntityReading, updated.ID)
	return updated, nil
}

func (h *Handler) UpdateReading(ctx context.Context, cmd UpdateReading) (*library.Reading, error) {
	r, err := h.ownedReading(ctx, cmd.UserID, cmd.ReadingID)
	if err != nil {
		return nil, err
	}
	if cmd.Status != "" {
		if r.Status, err = library.ParseReadingStatus(cmd.Status); err != nil {
			return nil, err
		}
	}
	if cmd.Format != "" {
		if r.Format, err = library.ParseReadingFormat(cmd.Format); err != nil {
			return nil, err
		}
	}
	if cmd.QuickReviews != nil {
		if r.QuickReviews, err = library.ParseQuickReviews(cmd.QuickReviews); err != nil {
			return nil, err
		}
	}
	r.Rating = cmd.Rating
	return h.saveReading(ctx, *r)
}

func (h *Handler) FinishReading(ctx context.Context, cmd FinishReading) (*library.Reading, error) {
	r, err := h.ownedReading(ctx, cmd.UserID, cmd.ReadingID)
	if err != nil {
		return nil, err
	}
	r.Status = library.StatusRead
	r.Rating = cmd.Rating
	if cmd.QuickReviews != nil {
		if r.QuickReviews, err = library.ParseQuickReviews(cmd.QuickReviews); err != nil {
			return nil, err
		}
	}
	return h.saveReading(ctx, *r)
}

func (h *Handler) AbandonReading(ctx context.Context, cmd AbandonReading) (*library.Reading, error) {
	r, err := h.ownedReading(ctx, cmd.UserID, cmd.ReadingID)
	if err != nil {
		return nil, err
	}
	r.Status = library.StatusAbandoned
	return h.saveReading(ctx, *r)
}

func (h *Handler) DeleteReading(ctx context.Context, cmd DeleteReading) error {
	if _, err := h.ownedReading(ctx, cmd.UserID, cmd.ReadingID); err != nil {
		return err
	}
	if err := h.library.DeleteReading(ctx, cmd.ReadingID); err != nil {
		return err
	}
	h.deleteSnapshot(ctx, readmodel.EntityReading, cmd.ReadingID)
	return nil
}

// ============================================
// Maintenance
// ============================================

// RebuildTimeline asks the worker to recompute every snapshot.
func (h *Handler) RebuildTimeline(ctx context.Context) {
	h.log.Info("full timeline rebuild requested")
	h.invalidator.InvalidateFull()
}

// ResetDatabase wipes the library and the timeline.
func (h *Handler) ResetDatabase(ctx context.Context) error {
	if err := h.library.Reset(ctx); err != nil {
		return err
	}
	return h.timeline.DeleteAll(ctx)
}

// RestoreCompleted is called after a bulk import replaced library rows.
func (h *Handler) RestoreCompleted(ctx context.Context) {
	h.invalidator.InvalidateFull()
}
