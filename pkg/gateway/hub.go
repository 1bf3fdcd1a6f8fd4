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

// Package gateway terminates device and operator websockets and routes their events.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/guardpost/pkg/auth"
	srHttp "github.com/carverauto/guardpost/pkg/http"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
	"github.com/carverauto/guardpost/pkg/session"
)

// Fleet is the device lifecycle the gateway drives.
type Fleet interface {
	Register(ctx context.Context, sess session.Session, req models.Registration) error
	Disconnect(sess session.Session, deviceID string)
	Heartbeat(ctx context.Context, sess session.Session, hb models.Heartbeat) (models.HeartbeatAck, error)
}

// Commander runs operator commands against devices.
type Commander interface {
	ActivateAlarm(ctx context.Context, targetID string, alarm models.AlarmPayload) models.CommandOutcome
	SendMessage(ctx context.Context, targetID string, msg models.MessagePayload) models.CommandOutcome
	Ping(ctx context.Context, targetID string) models.CommandOutcome
	GetDeviceInfo(ctx context.Context, targetID string) models.CommandOutcome
	CheckForUpdate(ctx context.Context, targetID string) models.CommandOutcome
	BroadcastMessage(ctx context.Context, msg models.MessagePayload) models.CommandOutcome
	CheckForAllUpdates(ctx context.Context) models.CommandOutcome
	SetMaintenanceMode(ctx context.Context, until time.Time) models.CommandOutcome
}

// Hub holds every live websocket and fans server pushes out to identified operators.
type Hub struct {
	fleet          Fleet
	commands       Commander
	verifier       *auth.Verifier
	allowedOrigins []string
	upgrader       websocket.Upgrader
	logger         logger.Logger

	// ctx outlives individual requests so handlers keep running until shutdown.
	ctx context.Context

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(ctx context.Context, fleet Fleet, commands Commander, verifier *auth.Verifier, allowedOrigins []string, log logger.Logger) *Hub {
	h := &Hub{
		fleet:          fleet,
		commands:       commands,
		verifier:       verifier,
		allowedOrigins: allowedOrigins,
		logger:         log,
		ctx:            ctx,
		clients:        make(map[*Client]struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if srHttp.OriginAllowed(h.allowedOrigins, origin) {
		return true
	}

	h.logger.Warn().
		Str("origin", origin).
		Strs("allowed_origins", h.allowedOrigins).
		Msg("Websocket origin not allowed")

	return false
}

// HandleDevice upgrades a device connection.
func (h *Hub) HandleDevice(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, kindDevice, nil)
}

// HandleOperator upgrades an operator connection after verifying its token.
func (h *Hub) HandleOperator(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Authenticate(r)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Operator websocket rejected")
		http.Error(w, err.Error(), http.StatusUnauthorized)

		return
	}

	h.serve(w, r, kindOperator, claims)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, kind clientKind, claims *auth.Claims) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to websocket")

		return
	}

	c := newClient(h, conn, kind, r.RemoteAddr)
	c.claims = claims

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	ev := c.logger.Info()
	if claims != nil {
		ev = ev.Str("operator", claims.Username).Str("role", string(claims.Role))
	}

	ev.Msg("Websocket connected")

	go c.writePump()
	go c.readPump(h.ctx)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if !ok {
		return
	}

	if c.kind == kindDevice {
		h.fleet.Disconnect(c, c.DeviceID())
	}

	c.logger.Info().Str("device_id", c.DeviceID()).Msg("Websocket disconnected")
}

// Count returns the number of live connections of each kind.
func (h *Hub) Count() (devices, operators int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.kind == kindDevice {
			devices++
		} else {
			operators++
		}
	}

	return devices, operators
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))

	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

// push sends an event to every operator that identified as a web console.
func (h *Hub) push(event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to encode push")
		return
	}

	data, err := json.Marshal(Envelope{Event: event, Payload: body})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.kind != kindOperator || !c.subscribed.Load() {
			continue
		}

		if err := c.enqueueRaw(data); err != nil {
			c.logger.Warn().Err(err).Str("event", event).Msg("Push dropped")
		}
	}
}

// OnPresenceTransition forwards presence changes to operator consoles.
func (h *Hub) OnPresenceTransition(tr models.PresenceTransition) {
	h.push(EventDeviceStatus, tr)
}

// InventoryChanged tells operator consoles to refresh their inventory view.
func (h *Hub) InventoryChanged(_ context.Context, change models.InventoryChangedData) {
	event, reason := EventDataModified, "inventory marker changed"
	if change.Forced {
		event, reason = EventInventoryUpdateAlert, "inventory reloaded by operator"
	}

	h.push(event, dataModifiedPayload{
		Reason:    reason,
		Marker:    change.Marker,
		Devices:   change.Devices,
		Pruned:    change.Pruned,
		Timestamp: change.Timestamp,
	})
}
