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

// Package dispatch sends operator commands to devices and turns every result, including
// failures, into a CommandOutcome.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
	"github.com/carverauto/guardpost/pkg/session"
)

// ConnectionView is the read-only registry view the dispatcher works from.
type ConnectionView interface {
	Lookup(deviceID string) (session.Session, bool)
	Sessions() []session.Binding
}

// AlarmRecorder is told about every alarm that actually reached a device session.
type AlarmRecorder interface {
	RecordAlarm(deviceID string, payload models.AlarmPayload, at time.Time)
}

// AlarmRecorders fans one alarm out to several recorders. Nil entries are skipped.
type AlarmRecorders []AlarmRecorder

func (rs AlarmRecorders) RecordAlarm(deviceID string, payload models.AlarmPayload, at time.Time) {
	for _, r := range rs {
		if r != nil {
			r.RecordAlarm(deviceID, payload, at)
		}
	}
}

type Dispatcher struct {
	conns          ConnectionView
	alarms         AlarmRecorder
	clock          clock.Clock
	timeout        time.Duration
	maxMaintenance time.Duration
	logger         logger.Logger
}

type Option func(*Dispatcher)

func WithClock(clk clock.Clock) Option {
	return func(d *Dispatcher) { d.clock = clk }
}

// WithTimeout sets the acknowledgment deadline for unicast and broadcast commands.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func WithMaintenanceWindow(maxAhead time.Duration) Option {
	return func(d *Dispatcher) { d.maxMaintenance = maxAhead }
}

func NewDispatcher(conns ConnectionView, alarms AlarmRecorder, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		conns:          conns,
		alarms:         alarms,
		clock:          clock.Real(),
		timeout:        models.DefaultCommandTimeout,
		maxMaintenance: models.DefaultMaintenanceMaxAhead,
		logger:         log,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func errorOutcome(format string, args ...any) models.CommandOutcome {
	return models.CommandOutcome{Status: models.StatusError, Message: fmt.Sprintf(format, args...)}
}

// ackContext bounds a wait by the command timeout only. Callers going away does not cut a
// wait short; only a reply or the deadline ends it.
func (d *Dispatcher) ackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
}

// SendCommand delivers one command to one device and waits for its acknowledgment.
func (d *Dispatcher) SendCommand(ctx context.Context, targetID string, kind models.CommandKind, payload any) models.CommandOutcome {
	event := kind.Event()
	if event == "" {
		return errorOutcome("%v: unknown command %q", models.ErrValidation, kind)
	}

	if targetID == "" {
		return errorOutcome("%v: target device id is required", models.ErrValidation)
	}

	sess, ok := d.conns.Lookup(targetID)
	if !ok {
		d.logger.Debug().Str("device_id", targetID).Str("command", string(kind)).Msg("Target not connected")
		return errorOutcome("device %s disconnected", targetID)
	}

	if kind == models.CommandActivateAlarm && d.alarms != nil {
		alarm, _ := payload.(models.AlarmPayload)
		d.alarms.RecordAlarm(targetID, alarm, d.clock.Now())
	}

	ackCtx, cancel := d.ackContext(ctx)
	defer cancel()

	start := d.clock.Now()
	raw, err := sess.Request(ackCtx, event, payload)

	log := d.logger.With().
		Str("device_id", targetID).
		Str("command", string(kind)).
		Dur("elapsed", d.clock.Now().Sub(start)).
		Logger()

	if err != nil {
		if isTimeout(err) {
			log.Warn().Msg("Device did not acknowledge in time")
			return errorOutcome("device %s did not respond in time", targetID)
		}

		log.Error().Err(err).Msg("Command send failed")

		return errorOutcome("device %s: %v", targetID, err)
	}

	out := interpret(kind, raw)
	log.Info().Str("status", string(out.Status)).Msg("Command acknowledged")

	return out
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrAckTimeout)
}

// interpret maps a device reply onto an outcome according to the command kind.
func interpret(kind models.CommandKind, raw json.RawMessage) models.CommandOutcome {
	var reply models.DeviceReply
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &reply)
	}

	status := models.ParseStatus(reply.Status)

	switch kind {
	case models.CommandPing:
		return models.CommandOutcome{Status: models.StatusOK, Message: fmt.Sprintf("ping answered: %s", status)}
	case models.CommandGetDeviceInfo:
		if reply.AndroidID == "" {
			return errorOutcome("device returned no device information")
		}

		return models.CommandOutcome{Status: models.StatusOK, Message: "device information received", Data: raw}
	case models.CommandCheckForUpdate:
		return models.CommandOutcome{Status: models.StatusOK, Message: "update check requested", Data: raw}
	case models.CommandActivateAlarm, models.CommandSendMessage, models.CommandMaintenanceMode:
		return passThrough(status, reply.Message)
	default:
		return passThrough(status, reply.Message)
	}
}

func passThrough(status models.OutcomeStatus, message string) models.CommandOutcome {
	if message == "" {
		message = "command acknowledged"
	}

	return models.CommandOutcome{Status: status, Message: message}
}

// SendCommandToAll delivers one command to every connected device under a single shared
// deadline. Every send starts at once; a silent device must not delay the others past the
// deadline. Partial acknowledgment is success; nobody answering is an error.
func (d *Dispatcher) SendCommandToAll(ctx context.Context, kind models.CommandKind, payload any) models.CommandOutcome {
	if !kind.Broadcastable() {
		return errorOutcome("%v: %q cannot be broadcast", models.ErrValidation, kind)
	}

	bindings := d.conns.Sessions()
	total := len(bindings)

	if total == 0 {
		return models.CommandOutcome{Status: models.StatusWarn, Message: "no devices connected"}
	}

	ackCtx, cancel := d.ackContext(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		responded int
		succeeded int
	)

	g := new(errgroup.Group)

	for _, b := range bindings {
		g.Go(func() error {
			raw, err := b.Session.Request(ackCtx, kind.Event(), payload)
			if err != nil {
				d.logger.Debug().Err(err).Str("device_id", b.DeviceID).Str("command", string(kind)).Msg("Broadcast target did not acknowledge")
				return nil
			}

			var reply models.DeviceReply
			_ = json.Unmarshal(raw, &reply)

			mu.Lock()
			responded++
			if models.ParseStatus(reply.Status) != models.StatusError {
				succeeded++
			}
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	d.logger.Info().
		Str("command", string(kind)).
		Int("addressed", total).
		Int("responded", responded).
		Int("succeeded", succeeded).
		Msg("Broadcast finished")

	if responded == 0 {
		return models.CommandOutcome{
			Status:    models.StatusError,
			Message:   fmt.Sprintf("none of the %d devices responded", total),
			Addressed: total,
		}
	}

	return models.CommandOutcome{
		Status:    models.StatusOK,
		Message:   fmt.Sprintf("processed by %d of %d devices", succeeded, total),
		Responded: responded,
		Succeeded: succeeded,
		Addressed: total,
	}
}
