// Package http provides HTTP routing and handlers for the reference MEC
// document server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/mecsync/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the shared
// document the way the sync client expects it: the whole document is read
// and written at the endpoint root.
//
// Parameters:
//
//	documentHandler - handler for the document and health endpoints
//	logger          - structured logger for request logging middleware
//
// Routes:
//
//	GET  /         → documentHandler.Get
//	POST /         → documentHandler.Post (text/plain or application/json)
//	GET  /healthz  → documentHandler.Health
//
// Middleware chain (applied in order):
//  1. Correlation                 - tags each request with X-Correlation-ID
//  2. WithRequestLogging(logger)  - logs each request once it completes
//  3. AllowContentType            - rejects writes of any other media type
func NewRouter(
	documentHandler *DocumentHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Correlation)
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/healthz", documentHandler.Health)
	r.Get("/", documentHandler.Get)
	r.With(chiMiddleware.AllowContentType("text/plain", "application/json")).
		Post("/", documentHandler.Post)

	return r
}
