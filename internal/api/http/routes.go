package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up download routes, health check, and Prometheus metrics endpoint.
func NewRouter(downloadService DownloadServiceI, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	downloadHandler := NewDownloadHandler(downloadService, logger)

	r.Route("/downloads", func(r chi.Router) {
		r.Post("/", downloadHandler.CreateDownload)
		r.Get("/{downloadID}", downloadHandler.GetDownload)
		r.Post("/{downloadID}/confirm", downloadHandler.ConfirmDownload)
		r.Post("/{downloadID}/resume", downloadHandler.ResumeDownload)
		r.Delete("/{downloadID}", downloadHandler.CancelDownload)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
