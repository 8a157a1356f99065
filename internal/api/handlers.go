package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/example/booklog-timeline/internal/api/middleware"
	"github.com/example/booklog-timeline/internal/command"
	"github.com/example/booklog-timeline/internal/domain/library"
	"github.com/example/booklog-timeline/internal/platform/logger"
	"github.com/example/booklog-timeline/internal/query"
	"github.com/example/booklog-timeline/internal/readmodel"
)

var errBadID = errors.New("invalid id")

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
	log          *logger.Logger
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler, log *logger.Logger) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
		log:          log.With("component", "api"),
	}
}

// Timeline Handlers

// GetTimeline lists the signed-in user's feed, or every user's feed for
// anonymous callers and scope=all.
func (h *Handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := readmodel.ParseListRequest(q)

	var owner *int64
	if userID, ok := middleware.ReaderID(r.Context()); ok && q.Get("scope") != "all" {
		owner = &userID
	}

	page, err := h.queryHandler.ListTimeline(r.Context(), owner, req)
	if err != nil {
		respondJSONError(w, "timeline unavailable", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handlers) GetTimelineEntry(w http.ResponseWriter, r *http.Request) {
	typ, err := readmodel.ParseEntityType(r.PathValue("type"))
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	event, found := h.queryHandler.GetEntry(r.Context(), readmodel.EntityRef{Type: typ, ID: id})
	if !found {
		respondJSONError(w, "entry not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (h *Handlers) RebuildTimeline(w http.ResponseWriter, r *http.Request) {
	h.cmdHandler.RebuildTimeline(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.ResetDatabase(r.Context()); err != nil {
		h.respondCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Author Handlers

func (h *Handlers) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateAuthor
	if !decode(w, r, &cmd) {
		return
	}
	cmd.UserID = userIDPtr(r)

	author, err := h.cmdHandler.CreateAuthor(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, author)
}

func (h *Handlers) RenameAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var cmd command.RenameAuthor
	if !decode(w, r, &cmd) {
		return
	}
	cmd.AuthorID = id

	author, err := h.cmdHandler.RenameAuthor(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, author)
}

func (h *Handlers) DeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.cmdHandler.DeleteAuthor(r.Context(), command.DeleteAuthor{AuthorID: id}); err != nil {
		h.respondCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Genre Handlers

func (h *Handlers) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateGenre
	if !decode(w, r, &cmd) {
		return
	}
	cmd.UserID = userIDPtr(r)

	genre, err := h.cmdHandler.CreateGenre(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, genre)
}

func (h *Handlers) RenameGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var cmd command.RenameGenre
	if !decode(w, r, &cmd) {
		return
	}
	cmd.GenreID = id

	genre, err := h.cmdHandler.RenameGenre(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, genre)
}

func (h *Handlers) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.cmdHandler.DeleteGenre(r.Context(), command.DeleteGenre{GenreID: id}); err != nil {
		h.respondCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Book Handlers

func (h *Handlers) CreateBook(w http.ResponseWriter, r *http.Request) {
	var cmd command.CreateBook
	if !decode(w, r, &cmd.BookFields) {
		return
	}
	cmd.UserID = userIDPtr(r)

	book, err := h.cmdHandler.CreateBook(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, book)
}

func (h *Handlers) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var cmd command.UpdateBook
	if !decode(w, r, &cmd.BookFields) {
		return
	}
	cmd.BookID = id

	book, err := h.cmdHandler.UpdateBook(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, book)
}

func (h *Handlers) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.cmdHandler.DeleteBook(r.Context(), command.DeleteBook{BookID: id}); err != nil {
		h.respondCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ShelveBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.ReaderID(r.Context())

	ub, err := h.cmdHandler.ShelveBook(r.Context(), command.ShelveBook{UserID: userID, BookID: id})
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, ub)
}

// Reading Handlers

func (h *Handlers) StartReading(w http.ResponseWriter, r *http.Request) {
	var cmd command.StartReading
	if !decode(w, r, &cmd) {
		return
	}
	cmd.UserID, _ = middleware.ReaderID(r.Context())

	reading, err := h.cmdHandler.StartReading(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, reading)
}

func (h *Handlers) UpdateReading(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var cmd command.UpdateReading
	if !decode(w, r, &cmd) {
		return
	}
	cmd.ReadingID = id
	cmd.UserID, _ = middleware.ReaderID(r.Context())

	reading, err := h.cmdHandler.UpdateReading(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (h *Handlers) FinishReading(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	// the body is optional
	var cmd command.FinishReading
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil && !errors.Is(err, io.EOF) {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cmd.ReadingID = id
	cmd.UserID, _ = middleware.ReaderID(r.Context())

	reading, err := h.cmdHandler.FinishReading(r.Context(), cmd)
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (h *Handlers) AbandonReading(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.ReaderID(r.Context())

	reading, err := h.cmdHandler.AbandonReading(r.Context(), command.AbandonReading{UserID: userID, ReadingID: id})
	if err != nil {
		h.respondCommandError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reading)
}

func (h *Handlers) DeleteReading(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID, _ := middleware.ReaderID(r.Context())

	if err := h.cmdHandler.DeleteReading(r.Context(), command.DeleteReading{UserID: userID, ReadingID: id}); err != nil {
		h.respondCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

var badRequestErrors = []error{
	library.ErrInvalidName,
	library.ErrInvalidTitle,
	library.ErrInvalidRating,
	library.ErrInvalidStatus,
	library.ErrInvalidFormat,
	library.ErrInvalidRole,
	library.ErrInvalidReview,
}

func statusFor(err error) int {
	switch {
	case library.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, library.ErrNotOwner):
		return http.StatusForbidden
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (h *Handlers) respondCommandError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("command failed", "error", err)
		respondJSONError(w, "internal error", status)
		return
	}
	respondJSONError(w, err.Error(), status)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondJSONError(w, errBadID.Error(), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func userIDPtr(r *http.Request) *int64 {
	if id, ok := middleware.ReaderID(r.Context()); ok {
		return &id
	}
	return nil
}
