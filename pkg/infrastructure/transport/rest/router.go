package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

func NewRouter(handler *Handler, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrder)
		r.Get("/customer/{customerId}", handler.ListByCustomer)
		r.Get("/restaurant/{restaurantId}", handler.ListByRestaurant)
		r.Get("/restaurant/{restaurantId}/active", handler.ListActiveByRestaurant)
		r.Get("/status/{status}", handler.ListByStatus)
		r.Get("/{id}", handler.GetOrder)
		r.Patch("/{id}/status", handler.UpdateStatus)
		r.Post("/{id}/cancel", handler.CancelOrder)
		r.Post("/{id}/discount", handler.ApplyDiscount)
	})
	return r
}

func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Debug("http request")
		})
	}
}
