package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"postforge/internal/http/handlers"
	"postforge/internal/infra"
	"postforge/internal/middleware"
)

func NewRouter(cfg *infra.Config, app *handlers.App, logger infra.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
	r.Use(middleware.Locale(cfg.DefaultLocale))

	// Health
	r.Get("/healthz", app.Health)

	r.Route("/posts", func(r chi.Router) {
		r.Post("/", app.CreatePost)
		r.Get("/{job_id}", app.PostStatus)
		r.Post("/{job_id}/cancel", app.PostCancel)
		r.Post("/{job_id}/regenerate", app.PostRegenerate)
		r.Post("/{job_id}/publish", app.PostPublish)
	})

	r.Get("/images/{job_id}/{file}", app.ServeImage)

	return r
}
