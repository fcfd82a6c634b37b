// Package api is the HTTP surface. Authentication lives in the gateway in
// front of this service; every owner-scoped route trusts the X-Owner-ID
// header it sets.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haneulsoft/reserve-notify/internal/cache"
	"github.com/haneulsoft/reserve-notify/internal/repo"
	"github.com/haneulsoft/reserve-notify/internal/scheduler"
	"github.com/haneulsoft/reserve-notify/internal/service"
)

type Deps struct {
	Rules      *service.RuleService
	Templates  *service.TemplateService
	Schedules  *service.ScheduleService
	Deliveries repo.DeliveryRepository
	Receipts   cache.ReceiptCache
	Dispatcher *service.Dispatcher
	Loops      []*scheduler.Loop
	Registry   *prometheus.Registry
	Health     func() error
}

func NewRouter(d Deps) http.Handler {
	rules := &ruleHandler{rules: d.Rules}
	templates := &templateHandler{templates: d.Templates}
	schedules := &scheduleHandler{schedules: d.Schedules}
	deliveries := &deliveryHandler{deliveries: d.Deliveries, receipts: d.Receipts}
	messages := &messageHandler{dispatcher: d.Dispatcher}
	loops := &loopHandler{loops: d.Loops}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", healthHandler(d.Health))

		r.Group(func(r chi.Router) {
			r.Use(RequireOwner)

			r.Route("/rules", func(r chi.Router) {
				r.Post("/", rules.create)
				r.Get("/", rules.list)
				r.Get("/{id}", rules.get)
				r.Put("/{id}", rules.update)
				r.Delete("/{id}", rules.delete)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Post("/", templates.create)
				r.Get("/", templates.list)
				r.Get("/{id}", templates.get)
				r.Put("/{id}", templates.update)
				r.Delete("/{id}", templates.delete)
			})

			r.Route("/scheduled-messages", func(r chi.Router) {
				r.Get("/", schedules.list)
				r.Get("/{id}", schedules.get)
				r.Delete("/{id}", schedules.cancel)
			})

			r.Route("/message-logs", func(r chi.Router) {
				r.Get("/", deliveries.list)
				r.Get("/statistics", deliveries.statistics)
				r.Get("/{id}/receipt", deliveries.receipt)
			})

			r.Post("/messages/send", messages.send)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", loops.status)
			r.Post("/{name}/start", loops.start)
			r.Post("/{name}/stop", loops.stop)
		})
	})

	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func healthHandler(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
