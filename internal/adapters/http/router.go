package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the health surface and the scaffold business routes.
// Centralizing routes here keeps middleware and error behavior consistent
// once the business modules land.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/health", handler.getHealth)
	r.Get("/health/live", handler.getLive)
	r.Get("/health/ready", handler.getReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", handler.register)
		r.Post("/auth/login", handler.login)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/orders", handler.placeOrder)
			r.Get("/orders", handler.listOrders)
			r.Get("/market-data/candles", handler.listCandles)
		})
	})

	return r
}
