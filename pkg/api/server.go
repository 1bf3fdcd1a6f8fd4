/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api serves the read API and mounts the websocket endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/guardpost/pkg/auth"
	srHttp "github.com/carverauto/guardpost/pkg/http"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
	"github.com/carverauto/guardpost/pkg/version"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	reloadTimeout          = 30 * time.Second
)

// DeviceReader exposes the merged identity and presence view.
type DeviceReader interface {
	Devices() []models.DeviceView
	Device(deviceID string) (models.DeviceView, bool)
}

// InventoryReloader triggers an operator-requested inventory reload.
type InventoryReloader interface {
	ForceReload(ctx context.Context) error
}

// SocketHandler is the websocket hub.
type SocketHandler interface {
	HandleDevice(w http.ResponseWriter, r *http.Request)
	HandleOperator(w http.ResponseWriter, r *http.Request)
	Count() (devices, operators int)
}

// IdentityCounter reports how many identities are loaded.
type IdentityCounter interface {
	Len() int
}

type Server struct {
	router         *mux.Router
	devices        DeviceReader
	reloader       InventoryReloader
	sockets        SocketHandler
	identities     IdentityCounter
	verifier       *auth.Verifier
	allowedOrigins []string
	logger         logger.Logger
}

// NewServer builds the router. The verifier is required: every /api route is authenticated.
func NewServer(verifier *auth.Verifier, log logger.Logger, options ...func(*Server)) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		verifier: verifier,
		logger:   log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

func WithDevices(d DeviceReader) func(*Server) {
	return func(s *Server) {
		s.devices = d
	}
}

func WithReloader(r InventoryReloader) func(*Server) {
	return func(s *Server) {
		s.reloader = r
	}
}

func WithSockets(h SocketHandler) func(*Server) {
	return func(s *Server) {
		s.sockets = h
	}
}

func WithIdentities(c IdentityCounter) func(*Server) {
	return func(s *Server) {
		s.identities = c
	}
}

func WithAllowedOrigins(origins []string) func(*Server) {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// Handler returns the router wrapped in the common middleware, so CORS preflights are answered
// before route matching.
func (s *Server) Handler() http.Handler {
	return srHttp.CommonMiddleware(s.router, s.allowedOrigins, s.logger)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	if s.sockets != nil {
		s.router.HandleFunc("/ws/device", s.sockets.HandleDevice)
		s.router.HandleFunc("/ws/operator", s.sockets.HandleOperator)
	}

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(auth.Middleware(s.verifier))

	protected.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	protected.HandleFunc("/devices/{id}", s.handleDevice).Methods(http.MethodGet)

	admin := protected.PathPrefix("/inventory").Subrouter()
	admin.Use(auth.RequireAdmin)
	admin.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down HTTP server")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}

type healthResponse struct {
	Status           string `json:"status"`
	Identities       int    `json:"identities"`
	DevicesConnected int    `json:"devices_connected"`
	Operators        int    `json:"operators"`
	Version          string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Version: version.GetVersion()}

	if s.identities != nil {
		resp.Identities = s.identities.Len()
	}

	if s.sockets != nil {
		resp.DevicesConnected, resp.Operators = s.sockets.Count()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	if s.devices == nil {
		writeError(w, "device view not available", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, http.StatusOK, s.devices.Devices())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, "device view not available", http.StatusServiceUnavailable)
		return
	}

	id := mux.Vars(r)["id"]

	view, ok := s.devices.Device(id)
	if !ok {
		writeError(w, "device not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, http.StatusOK, view)
}

type reloadResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, "inventory reload not available", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	if err := s.reloader.ForceReload(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Forced inventory reload failed")
		writeError(w, err.Error(), http.StatusBadGateway)

		return
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		s.logger.Info().Str("user", claims.Username).Msg("Inventory reloaded on request")
	}

	s.writeJSON(w, http.StatusOK, reloadResponse{Status: "reloaded"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Message: message, Status: statusCode}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
