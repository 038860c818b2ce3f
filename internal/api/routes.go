package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Служебные
	mux.HandleFunc("GET /healthz", Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Requests
	mux.Handle("POST /api/v1/requests", chain(http.HandlerFunc(h.CreateRequest)))

	// Passes
	mux.Handle("GET /api/v1/passes", chain(http.HandlerFunc(h.ListPasses)))
	mux.Handle("GET /api/v1/passes/{id}", chain(http.HandlerFunc(h.GetPass)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
}

// Healthz отвечает ok.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
