package api

import (
	"net/http"
	"time"

	"github.com/example/booklog-timeline/internal/api/middleware"
	"github.com/example/booklog-timeline/internal/auth"
	"github.com/example/booklog-timeline/internal/platform/logger"
)

func NewRouter(handlers *Handlers, jwtService *auth.JWTService, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.Authenticate(jwtService)
	optional := middleware.Identify(jwtService)
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.AdminOnly(h))
	}
	user := func(h http.HandlerFunc) http.Handler {
		return authed(h)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Timeline
	mux.Handle("GET /timeline", optional(http.HandlerFunc(handlers.GetTimeline)))
	mux.Handle("GET /timeline/{type}/{id}", optional(http.HandlerFunc(handlers.GetTimelineEntry)))
	mux.Handle("POST /timeline/rebuild", admin(handlers.RebuildTimeline))

	// Authors
	mux.Handle("POST /authors", user(handlers.CreateAuthor))
	mux.Handle("PUT /authors/{id}", user(handlers.RenameAuthor))
	mux.Handle("DELETE /authors/{id}", user(handlers.DeleteAuthor))

	// Genres
	mux.Handle("POST /genres", user(handlers.CreateGenre))
	mux.Handle("PUT /genres/{id}", user(handlers.RenameGenre))
	mux.Handle("DELETE /genres/{id}", user(handlers.DeleteGenre))

	// Books
	mux.Handle("POST /books", user(handlers.CreateBook))
	mux.Handle("PUT /books/{id}", user(handlers.UpdateBook))
	mux.Handle("DELETE /books/{id}", user(handlers.DeleteBook))
	mux.Handle("POST /books/{id}/shelve", user(handlers.ShelveBook))

	// Readings
	mux.Handle("POST /readings", user(handlers.StartReading))
	mux.Handle("PUT /readings/{id}", user(handlers.UpdateReading))
	mux.Handle("DELETE /readings/{id}", user(handlers.DeleteReading))
	mux.Handle("POST /readings/{id}/finish", user(handlers.FinishReading))
	mux.Handle("POST /readings/{id}/abandon", user(handlers.AbandonReading))

	// Admin
	mux.Handle("POST /admin/reset", admin(handlers.ResetDatabase))

	return withLogging(mux, log.With("component", "http"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.Handler, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
