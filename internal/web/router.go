package web

import (
	"net/http"

	"minibus-console/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, origins []string) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(observe(m, h.log))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/health", h.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.Route("/api", func(r chi.Router) {
		r.Route("/buses", func(r chi.Router) {
			r.Get("/", h.ListBuses)
			r.Post("/", h.CreateBus)
			r.Route("/{busID}", func(r chi.Router) {
				r.Get("/", h.GetBus)
				r.Patch("/", h.UpdateBus)
				r.Delete("/", h.DeleteBus)
				r.Put("/driver", h.AssignDriver)
				r.Get("/riders", h.Roster)
				r.Post("/riders", h.AssignRider)
				r.Patch("/riders/{riderID}/payment", h.UpdatePayment)
				r.Patch("/riders/{riderID}/subscription", h.UpdateSubscription)
				r.Delete("/riders/{riderID}", h.RemoveRider)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{userID}", h.GetUser)
			r.Patch("/{userID}", h.UpdateUser)
			r.Delete("/{userID}", h.DeleteUser)
		})

		r.Post("/maintenance/expire", h.Expire)
		r.Post("/maintenance/reconcile", h.Reconcile)
	})

	return mux
}
