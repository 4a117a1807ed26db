package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/inkwelldev/inkwell-api/internal/api/middleware"
)

// setupRouter configures the HTTP routes and middleware stack.
func (app *application) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", app.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Post("/", app.itemHandler.CreateItem)
			r.Get("/", app.itemHandler.ListItems)
			r.Get("/{id}", app.itemHandler.GetItem)
			r.Delete("/{id}", app.itemHandler.DeleteItem)
		})
		r.Get("/ws", app.wsHandler.Serve)
	})

	return r
}

// handleHealth reports liveness, including database reachability.
func (app *application) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		app.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
