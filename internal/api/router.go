package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: app.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/ping", PingHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if app.RateLimit > 0 {
				window := app.RateLimitWindow
				if window <= 0 {
					window = time.Minute
				}
				r.Use(httprate.LimitByIP(app.RateLimit, window))
			}
			r.Post("/analyze", app.AnalyzeHandler)
			r.Post("/analyze_url", app.AnalyzeURLHandler)
			r.Delete("/results/{jobID}", app.DeleteResultHandler)
		})

		r.Get("/results", app.ListResultsHandler)
		r.Get("/results/{jobID}", app.GetResultHandler)
		r.Get("/results/{jobID}/report", app.GetReportHandler)
	})

	return r
}
