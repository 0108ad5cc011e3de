package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskcore/internal/api"
	apiMiddleware "github.com/phrazzld/taskcore/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	taskHandler := api.NewTaskHandler(
		app.queue,
		app.router,
		app.aggregator,
		app.config.Queue.DefaultMaxRetries,
		app.logger,
	)
	deadLetterHandler := api.NewDeadLetterHandler(app.archive, app.replays.Replay, app.logger)

	r.Route("/api", func(r chi.Router) {
		if app.tokens != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(app.tokens).Authenticate)
		}
		taskHandler.Routes(r)
		deadLetterHandler.Routes(r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
