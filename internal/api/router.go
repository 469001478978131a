package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(h.SessionContext)        // Resolve the session cookie on every request

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.SessionInfoHandler)
		r.Get("/history", h.HistoryHandler)
		r.Post("/chat", h.ChatHandler)
		r.Post("/title", h.TitleHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	})

	// Login/signup form submission
	r.Post("/", h.LoginHandler)

	// Bot webhook pass-through
	r.Post("/webhook", h.WebhookHandler)

	return r
}
