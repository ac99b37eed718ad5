package server

import (
	"net/http"

	"github.com/complexlabs/docchat/internal/api"
	"github.com/complexlabs/docchat/internal/api/handlers"
	"github.com/complexlabs/docchat/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	ChatHandler    *handlers.ChatHandler
	SessionHandler *handlers.SessionHandler
	UploadHandler  *handlers.UploadHandler
	CORSOrigin     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// 12 MiB cap leaves headroom over the 10 MiB file limit for the
	// multipart envelope.
	const maxBodyBytes int64 = 12 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	if cfg.CORSOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/ask", cfg.ChatHandler.Ask)
	r.Get("/chat/{id}", cfg.ChatHandler.GetChat)

	r.Post("/new-session", cfg.SessionHandler.Create)
	r.Get("/sessions", cfg.SessionHandler.List)
	r.Put("/session/{id}", cfg.SessionHandler.Rename)
	r.Delete("/session/{id}", cfg.SessionHandler.Delete)

	r.Post("/upload-pdf", cfg.UploadHandler.Upload)

	return r
}
