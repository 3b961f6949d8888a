package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
)

// HealthFunc reports whether the storage engines are usable.
type HealthFunc func(ctx context.Context) error

func New(serviceName string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))

	return r
}

// Control mounts the health and metrics endpoints of the daemon.
func Control(r chi.Router, health HealthFunc, metrics http.Handler) {
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := health(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Method(http.MethodGet, "/metrics", metrics)
}
