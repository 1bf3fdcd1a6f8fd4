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

//go:generate mockgen -destination=mock_session.go -package=session github.com/carverauto/guardpost/pkg/session Session

// Package session tracks which live transport session answers for each device id.
package session

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Session is a live, acknowledgment-capable connection to one device.
type Session interface {
	// ID identifies the transport session, not the device.
	ID() string
	// RemoteAddr is the peer address as seen by the transport.
	RemoteAddr() string
	// Request sends event with payload and blocks until the device replies or ctx ends.
	Request(ctx context.Context, event string, payload any) (json.RawMessage, error)
}

// Binding pairs a device id with the session currently answering for it.
type Binding struct {
	DeviceID string
	Session  Session
}

// Registry maps reported device ids to sessions. A device id maps to at most one session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Bind makes s the session for deviceID and returns the session it superseded, if any.
// The superseded session is not closed.
func (r *Registry) Bind(deviceID string, s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[deviceID]
	r.sessions[deviceID] = s

	if prev == s {
		return nil
	}

	return prev
}

// Unbind removes deviceID only while s is still the session bound to it.
func (r *Registry) Unbind(deviceID string, s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[deviceID]; !ok || cur != s {
		return false
	}

	delete(r.sessions, deviceID)

	return true
}

func (r *Registry) Lookup(deviceID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[deviceID]

	return s, ok
}

// Sessions returns the current bindings sorted by device id.
func (r *Registry) Sessions() []Binding {
	r.mu.RLock()
	out := make([]Binding, 0, len(r.sessions))

	for id, s := range r.sessions {
		out = append(out, Binding{DeviceID: id, Session: s})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
