package routers

import (
	"github.com/go-chi/chi/v5"

	"github.com/harishm17/study-buddy-sub001/internal/handlers"
	"github.com/harishm17/study-buddy-sub001/internal/metrics"
)

func HealthRoutes(router chi.Router, healthHandler *handlers.HealthHandler) {
	router.Get("/healthz", healthHandler.Healthz)
	router.Get("/readyz", healthHandler.Readyz)
	router.Handle("/metrics", metrics.Handler())
}
