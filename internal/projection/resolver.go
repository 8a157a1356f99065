package projection

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/booklog-timeline/internal/domain/library"
	"github.com/example/booklog-timeline/internal/infrastructure/store"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/readmodel"
)

var ErrUnknownEntityType = errors.New("unknown entity type")

// Resolver recomputes snapshots for an entity and everything that embeds it.
// It reads only the library tables and writes only through UpdateByEntity.
type Resolver struct {
	library  store.LibraryReader
	timeline store.TimelineStore
	log      *logger.Logger
	tracer   trace.Tracer
}

func NewResolver(lib store.LibraryReader, timeline store.TimelineStore, log *logger.Logger) *Resolver {
	return &Resolver{
		library:  lib,
		timeline: timeline,
		log:      log.With("component", "resolver"),
		tracer:   otel.Tracer(tracerName),
	}
}

// bookData is a book with everything its snapshot and its readings' snapshots
// embed.
type bookData struct {
	book    library.Book
	authors []library.Author
}

// RefreshEntity recomputes the snapshot of ref and its dependents:
// author → books → shelf entries and readings, genre → books,
// book → shelf entries and readings.
func (r *Resolver) RefreshEntity(ctx context.Context, ref readmodel.EntityRef) error {
	ctx, span := r.tracer.Start(ctx, "timeline.refresh_entity", trace.WithAttributes(
		attribute.String("entity.type", ref.Type.String()),
		attribute.Int64("entity.id", ref.ID),
	))
	defer span.End()

	var err error
	switch ref.Type {
	case readmodel.EntityAuthor:
		err = r.refreshAuthor(ctx, ref.ID)
	case readmodel.EntityGenre:
		err = r.refreshGenre(ctx, ref.ID)
	case readmodel.EntityBook:
		err = r.refreshBookCascade(ctx, ref.ID)
	case readmodel.EntityReading:
		err = r.refreshReading(ctx, ref.ID)
	case readmodel.EntityShelf:
		err = r.refreshShelf(ctx, ref.ID)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEntityType, ref.Type)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
	}
	return err
}

// skipMissing swallows not-found errors: the entity was deleted after the
// signal was sent and its snapshot is already gone.
func (r *Resolver) skipMissing(ref readmodel.EntityRef, err error) error {
	if library.IsNotFound(err) {
		r.log.Debug("entity vanished before refresh, skipping", "entity", ref.String())
		return nil
	}
	return fmt.Errorf("load %s: %w", ref, err)
}

func (r *Resolver) write(ctx context.Context, event readmodel.NewTimelineEvent) error {
	if err := r.timeline.UpdateByEntity(ctx, event.Ref(), event.Content()); err != nil {
		return fmt.Errorf("write %s: %w", event.Ref(), err)
	}
	return nil
}

func (r *Resolver) refreshAuthor(ctx context.Context, id int64) error {
	ref := readmodel.EntityRef{Type: readmodel.EntityAuthor, ID: id}
	author, err := r.library.GetAuthor(ctx, id)
	if err != nil {
		return r.skipMissing(ref, err)
	}

	errs := []error{r.write(ctx, readmodel.AuthorEvent(author, nil))}

	books, err := r.library.ListBooksByAuthor(ctx, id)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list books of %s: %w", ref, err))...)
	}
	for _, b := range books {
		errs = append(errs, r.refreshBookCascade(ctx, b.ID))
	}
	return errors.Join(errs...)
}

func (r *Resolver) refreshGenre(ctx context.Context, id int64) error {
	ref := readmodel.EntityRef{Type: readmodel.EntityGenre, ID: id}
	genre, err := r.library.GetGenre(ctx, id)
	if err != nil {
		return r.skipMissing(ref, err)
	}

	errs := []error{r.write(ctx, readmodel.GenreEvent(genre, nil))}

	books, err := r.library.ListBooksByGenre(ctx, id)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list books of %s: %w", ref, err))...)
	}
	// Shelf and reading snapshots never embed genres.
	for _, b := range books {
		bookRef := readmodel.EntityRef{Type: readmodel.EntityBook, ID: b.ID}
		data, err := r.loadBook(ctx, b.ID)
		if err != nil {
			errs = append(errs, r.skipMissing(bookRef, err))
			continue
		}
		errs = append(errs, r.writeBook(ctx, data))
	}
	return errors.Join(errs...)
}

func (r *Resolver) refreshBookCascade(ctx context.Context, id int64) error {
	ref := readmodel.EntityRef{Type: readmodel.EntityBook, ID: id}
	data, err := r.loadBook(ctx, id)
	if err != nil {
		return r.skipMissing(ref, err)
	}

	errs := []error{r.writeBook(ctx, data)}

	shelved, err := r.library.ListUserBooksByBook(ctx, id)
	if err != nil {
		errs = append(errs, fmt.Errorf("list shelf entries of %s: %w", ref, err))
	}
	for i := range shelved {
		errs = append(errs, r.write(ctx, readmodel.ShelvedEvent(&shelved[i], &data.book, data.authors)))
	}

	readings, err := r.library.ListReadingsByBook(ctx, id)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("list readings of %s: %w", ref, err))...)
	}
	for i := range readings {
		errs = append(errs, r.write(ctx, readmodel.ReadingEvent(&readings[i], &data.book, data.authors)))
	}
	return errors.Join(errs...)
}

func (r *Resolver) refreshReading(ctx context.Context, id int64) error {
	ref := readmodel.EntityRef{Type: readmodel.EntityReading, ID: id}
	reading, err := r.library.GetReading(ctx, id)
	if err != nil {
		return r.skipMissing(ref, err)
	}
	data, err := r.loadBook(ctx, reading.BookID)
	if err != nil {
		return r.skipMissing(ref, err)
	}
	return r.write(ctx, readmodel.ReadingEvent(reading, &data.book, data.authors))
}

func (r *Resolver) refreshShelf(ctx context.Context, id int64) error {
	ref := readmodel.EntityRef{Type: readmodel.EntityShelf, ID: id}
	ub, err := r.library.GetUserBook(ctx, id)
	if err != nil {
		return r.skipMissing(ref, err)
	}
	data, err := r.loadBook(ctx, ub.BookID)
	if err != nil {
		return r.skipMissing(ref, err)
	}
	return r.write(ctx, readmodel.ShelvedEvent(ub, &data.book, data.authors))
}

func (r *Resolver) loadBook(ctx context.Context, id int64) (*bookData, error) {
	bwa, err := r.library.GetBookWithAuthors(ctx, id)
	if err != nil {
		return nil, err
	}
	authors := make([]library.Author, 0, len(bwa.Authors))
	for _, link := range bwa.Authors {
		a, err := r.library.GetAuthor(ctx, link.AuthorID)
		if library.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		authors = append(authors, *a)
	}
	return &bookData{book: bwa.Book, authors: authors}, nil
}

func (r *Resolver) genreName(ctx context.Context, id *int64) (string, error) {
	if id == nil {
		return "", nil
	}
	g, err := r.library.GetGenre(ctx, *id)
	if library.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

func (r *Resolver) writeBook(ctx context.Context, data *bookData) error {
	primary, err := r.genreName(ctx, data.book.PrimaryGenreID)
	if err != nil {
		return fmt.Errorf("load primary genre of book %d: %w", data.book.ID, err)
	}
	secondary, err := r.genreName(ctx, data.book.SecondaryGenreID)
	if err != nil {
		return fmt.Errorf("load secondary genre of book %d: %w", data.book.ID, err)
	}
	return r.write(ctx, readmodel.BookEvent(&data.book, data.authors, primary, secondary, nil))
}

// FullRebuild recomputes every snapshot: authors, genres, books, shelf
// entries, readings.
// Each pass reads the library tables only, so the order is not significant.
func (r *Resolver) FullRebuild(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "timeline.full_rebuild")
	defer span.End()

	var errs []error
	counts := make(map[string]int, len(readmodel.EntityTypes))
	books := make(map[int64]*bookData)

	for _, t := range readmodel.EntityTypes {
		n, err := r.rebuildAll(ctx, t, books)
		counts[t.String()] = n
		if err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "full rebuild failed")
	}
	r.log.Info("timeline snapshots rebuilt",
		"authors", counts["author"],
		"genres", counts["genre"],
		"books", counts["book"],
		"shelf_entries", counts["shelf"],
		"readings", counts["reading"],
	)
	return err
}

// rebuildAll recomputes every snapshot of one entity type. books caches book
// data across passes so readings reuse what the book pass loaded.
func (r *Resolver) rebuildAll(ctx context.Context, t readmodel.EntityType, books map[int64]*bookData) (int, error) {
	var errs []error
	switch t {
	case readmodel.EntityAuthor:
		authors, err := r.library.ListAuthors(ctx)
		if err != nil {
			return 0, fmt.Errorf("list authors: %w", err)
		}
		for i := range authors {
			errs = append(errs, r.write(ctx, readmodel.AuthorEvent(&authors[i], nil)))
		}
		return len(authors), errors.Join(errs...)

	case readmodel.EntityGenre:
		genres, err := r.library.ListGenres(ctx)
		if err != nil {
			return 0, fmt.Errorf("list genres: %w", err)
		}
		for i := range genres {
			errs = append(errs, r.write(ctx, readmodel.GenreEvent(&genres[i], nil)))
		}
		return len(genres), errors.Join(errs...)

	case readmodel.EntityBook:
		list, err := r.library.ListBooks(ctx)
		if err != nil {
			return 0, fmt.Errorf("list books: %w", err)
		}
		for _, b := range list {
			data, err := r.cachedBook(ctx, b.ID, books)
			if err != nil {
				errs = append(errs, r.skipMissing(readmodel.EntityRef{Type: readmodel.EntityBook, ID: b.ID}, err))
				continue
			}
			errs = append(errs, r.writeBook(ctx, data))
		}
		return len(list), errors.Join(errs...)

	case readmodel.EntityShelf:
		shelved, err := r.library.ListUserBooks(ctx)
		if err != nil {
			return 0, fmt.Errorf("list shelf entries: %w", err)
		}
		for i := range shelved {
			data, err := r.cachedBook(ctx, shelved[i].BookID, books)
			if err != nil {
				errs = append(errs, r.skipMissing(readmodel.EntityRef{Type: readmodel.EntityShelf, ID: shelved[i].ID}, err))
				continue
			}
			errs = append(errs, r.write(ctx, readmodel.ShelvedEvent(&shelved[i], &data.book, data.authors)))
		}
		return len(shelved), errors.Join(errs...)

	case readmodel.EntityReading:
		readings, err := r.library.ListReadings(ctx)
		if err != nil {
			return 0, fmt.Errorf("list readings: %w", err)
		}
		for i := range readings {
			data, err := r.cachedBook(ctx, readings[i].BookID, books)
			if err != nil {
				errs = append(errs, r.skipMissing(readmodel.EntityRef{Type: readmodel.EntityReading, ID: readings[i].ID}, err))
				continue
			}
			errs = append(errs, r.write(ctx, readmodel.ReadingEvent(&readings[i], &data.book, data.authors)))
		}
		return len(readings), errors.Join(errs...)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownEntityType, t)
}

func (r *Resolver) cachedBook(ctx context.Context, id int64, cache map[int64]*bookData) (*bookData, error) {
	if data, ok := cache[id]; ok {
		return data, nil
	}
	data, err := r.loadBook(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = data
	return data, nil
}
