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

// Package fleet owns the connection lifecycle of devices: registration, disconnection and
// heartbeats. It is the only writer of the connection registry and the presence tracker.
package fleet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
	"github.com/carverauto/guardpost/pkg/presence"
	"github.com/carverauto/guardpost/pkg/session"
)

type Service struct {
	identities IdentityStore
	registry   *session.Registry
	tracker    *presence.Tracker
	recorder   TelemetryRecorder
	clock      clock.Clock
	lowBattery int
	logger     logger.Logger
}

type Option func(*Service)

func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithLowBatteryThreshold sets the level below which a discharging device raises an alert.
func WithLowBatteryThreshold(level int) Option {
	return func(s *Service) { s.lowBattery = level }
}

func NewService(identities IdentityStore, tracker *presence.Tracker, recorder TelemetryRecorder, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		registry:   session.NewRegistry(),
		tracker:    tracker,
		recorder:   recorder,
		clock:      clock.Real(),
		lowBattery: models.DefaultLowBatteryThreshold,
		logger:     log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register runs the registration protocol for a device that announced itself on s.
// Nothing is bound or marked online unless every step succeeds.
func (s *Service) Register(ctx context.Context, sess session.Session, req models.Registration) error {
	addr := strings.TrimSpace(req.NetworkAddress)
	deviceID := strings.TrimSpace(req.ReportedID)

	if addr == "" || deviceID == "" {
		return fmt.Errorf("%w: ipAddress and androidId are required", models.ErrValidation)
	}

	ident, ok := s.identities.LookupByAddress(addr)
	if !ok {
		s.logger.Warn().
			Str("address", addr).
			Str("device_id", deviceID).
			Str("remote_addr", sess.RemoteAddr()).
			Msg("Registration from address not in inventory")

		return fmt.Errorf("%w: %s", models.ErrUnregisteredDevice, addr)
	}

	if ident.ReportedID != deviceID {
		if _, err := s.identities.ReconcileReportedID(ctx, addr, deviceID); err != nil {
			return err
		}
	}

	if prev := s.registry.Bind(deviceID, sess); prev != nil {
		s.logger.Info().
			Str("device_id", deviceID).
			Str("session", sess.ID()).
			Str("superseded_session", prev.ID()).
			Msg("Registration superseded an existing session")
	}

	s.tracker.Connected(deviceID, ident.Attributes.Alias, s.clock.Now())

	s.logger.Info().
		Str("device_id", deviceID).
		Str("address", addr).
		Str("alias", ident.Attributes.Alias).
		Str("app_version", req.AppVersion).
		Msg("Device registered")

	return nil
}

// Disconnect forgets the binding of deviceID when sess is still the bound session.
func (s *Service) Disconnect(sess session.Session, deviceID string) {
	if deviceID == "" {
		return
	}

	if !s.registry.Unbind(deviceID, sess) {
		s.logger.Debug().
			Str("device_id", deviceID).
			Str("session", sess.ID()).
			Msg("Superseded session closed")

		return
	}

	s.tracker.Disconnected(deviceID, s.clock.Now())

	s.logger.Info().Str("device_id", deviceID).Msg("Device disconnected")
}

// Heartbeat applies a telemetry sample sent over sess.
func (s *Service) Heartbeat(_ context.Context, sess session.Session, hb models.Heartbeat) (models.HeartbeatAck, error) {
	if hb.DeviceID == "" {
		return models.HeartbeatAck{}, fmt.Errorf("%w: deviceId is required", models.ErrValidation)
	}

	if hb.Battery < 0 || hb.Battery > 100 {
		return models.HeartbeatAck{}, fmt.Errorf("%w: battery %d out of range", models.ErrValidation, hb.Battery)
	}

	if bound, ok := s.registry.Lookup(hb.DeviceID); !ok || bound != sess {
		return models.HeartbeatAck{}, fmt.Errorf("%w: %s has not registered on this session", models.ErrNotConnected, hb.DeviceID)
	}

	now := s.clock.Now()

	s.tracker.Telemetry(hb.DeviceID, hb.Battery, hb.Charging, now)
	s.recorder.RecordHeartbeat(hb.DeviceID, hb.Battery, hb.Charging, now)

	if hb.Battery < s.lowBattery && !hb.Charging {
		s.logger.Warn().
			Str("device_id", hb.DeviceID).
			Int("battery", hb.Battery).
			Msg("Low battery")

		s.recorder.RecordBatteryAlert(hb.DeviceID, hb.Battery, hb.Charging, now)
	}

	return models.HeartbeatAck{Status: models.StatusOK, ServerTime: now.UnixMilli()}, nil
}

// Resync refreshes presence metadata after an inventory reload and returns pruned ids.
func (s *Service) Resync() []string {
	pruned := s.tracker.Resync(func(deviceID string) (string, bool) {
		ident, ok := s.identities.LookupByReportedID(deviceID)
		return ident.Attributes.Alias, ok
	})

	if len(pruned) > 0 {
		s.logger.Info().Strs("device_ids", pruned).Msg("Pruned presence of devices gone from inventory")
	}

	return pruned
}

// Lookup returns the session bound to deviceID.
func (s *Service) Lookup(deviceID string) (session.Session, bool) {
	return s.registry.Lookup(deviceID)
}

// Sessions returns every bound session.
func (s *Service) Sessions() []session.Binding {
	return s.registry.Sessions()
}

// Devices returns the merged identity and presence view of the whole inventory.
func (s *Service) Devices() []models.DeviceView {
	now := s.clock.Now()
	idents := s.identities.Snapshot()

	out := make([]models.DeviceView, 0, len(idents))
	for _, ident := range idents {
		out = append(out, s.view(ident, now))
	}

	return out
}

// Device returns the merged view of the device reporting deviceID.
func (s *Service) Device(deviceID string) (models.DeviceView, bool) {
	ident, ok := s.identities.LookupByReportedID(deviceID)
	if !ok {
		return models.DeviceView{}, false
	}

	return s.view(ident, s.clock.Now()), true
}

func (s *Service) view(ident models.DeviceIdentity, now time.Time) models.DeviceView {
	v := models.DeviceView{
		DeviceID:       ident.ReportedID,
		NetworkAddress: ident.NetworkAddress,
		Attributes:     ident.Attributes,
	}

	if ident.ReportedID == "" {
		return v
	}

	_, v.Connected = s.registry.Lookup(ident.ReportedID)

	if rec, ok := s.tracker.Get(ident.ReportedID); ok {
		since := models.Duration(now.Sub(rec.LastSeenAt).Truncate(time.Second))
		v.Presence = &rec
		v.TimeSinceLastSeen = &since
	}

	return v
}
