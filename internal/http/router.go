// Package httpapi exposes the telemetry snapshot and device registry over
// the addon's local HTTP interface.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(middleware.Timeout(20 * time.Second))
	r.Use(StripIngressPrefix)
	r.Use(RequestLogger(api))

	r.Get("/healthz", api.Health)
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Get("/state", api.State)
		apiRouter.Get("/presence", api.Presence)
		apiRouter.Get("/traffic", api.Traffic)
		apiRouter.Get("/system", api.System)
		apiRouter.Get("/leases", api.Leases)

		apiRouter.Get("/devices", api.ListDevices)
		apiRouter.Get("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
			api.GetDevice(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Patch("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
			api.PatchDevice(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Delete("/devices/{id}", func(w http.ResponseWriter, r *http.Request) {
			api.DeleteDevice(w, r, chi.URLParam(r, "id"))
		})

		apiRouter.Post("/refresh", api.Refresh)
	})
	return r
}

// RunServer starts and gracefully stops the HTTP server with context
// cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
