package statusapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router for the status surface: global
// middleware, then health/devices/drivers routes, plus the debug
// WebSocket relay if one was configured.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/devices", s.handleListDevices)
	r.Get("/devices/{name}", s.handleGetDevice)
	r.Get("/drivers", s.handleListDrivers)

	if s.debug != nil {
		r.Get("/ws/devices", s.debug.ServeHTTP)
	}

	return r
}
