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

// Package natsutil publishes fleet events as CloudEvents on NATS JetStream.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

const (
	typePrefix     = "com.carverauto.guardpost."
	maxPendingAcks = 256
)

// EventPublisher provides methods for publishing CloudEvents to NATS JetStream.
//
// The observer methods (OnPresenceTransition, RecordAlarm, InventoryChanged) publish
// asynchronously so that slow brokers never stall device traffic. Failures surface through
// the async error handler installed by NewJetStream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	prefix string
	source string
	logger logger.Logger
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName, subjectPrefix, source string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
		prefix: subjectPrefix,
		source: source,
		logger: log,
	}
}

// Subjects lists every subject this publisher writes to.
func (p *EventPublisher) Subjects() []string {
	return []string{
		p.prefix + ".devices.*",
		p.prefix + ".alarms",
		p.prefix + ".inventory.changed",
	}
}

func (p *EventPublisher) encode(eventType, subject string, ts time.Time, data any) ([]byte, error) {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            typePrefix + eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &ts,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	return eventBytes, nil
}

// publish waits for the JetStream acknowledgment.
func (p *EventPublisher) publish(ctx context.Context, eventType, subject string, ts time.Time, data any) error {
	eventBytes, err := p.encode(eventType, subject, ts, data)
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published event")

	return nil
}

func (p *EventPublisher) publishAsync(eventType, subject string, ts time.Time, data any) {
	eventBytes, err := p.encode(eventType, subject, ts, data)
	if err != nil {
		p.logger.Error().Err(err).Msg("Dropping event")
		return
	}

	if _, err := p.js.PublishAsync(subject, eventBytes); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to queue event")
	}
}

func (p *EventPublisher) transitionSubject(kind models.TransitionKind) string {
	return p.prefix + ".devices." + string(kind)
}

// PublishTransition publishes a presence transition and waits for the ack.
func (p *EventPublisher) PublishTransition(ctx context.Context, tr models.PresenceTransition) error {
	return p.publish(ctx, "device."+string(tr.Kind), p.transitionSubject(tr.Kind), tr.At, tr)
}

// PublishAlarm publishes an alarm activation and waits for the ack.
func (p *EventPublisher) PublishAlarm(ctx context.Context, data models.AlarmEventData) error {
	return p.publish(ctx, "alarm.activated", p.prefix+".alarms", data.Timestamp, data)
}

// PublishInventoryChanged publishes an inventory reload and waits for the ack.
func (p *EventPublisher) PublishInventoryChanged(ctx context.Context, change models.InventoryChangedData) error {
	return p.publish(ctx, "inventory.changed", p.prefix+".inventory.changed", change.Timestamp, change)
}

// OnPresenceTransition implements presence.Observer.
func (p *EventPublisher) OnPresenceTransition(tr models.PresenceTransition) {
	p.publishAsync("device."+string(tr.Kind), p.transitionSubject(tr.Kind), tr.At, tr)
}

// RecordAlarm implements dispatch.AlarmRecorder.
func (p *EventPublisher) RecordAlarm(deviceID string, alarm models.AlarmPayload, at time.Time) {
	p.publishAsync("alarm.activated", p.prefix+".alarms", at, models.AlarmEventData{
		DeviceID:        deviceID,
		DurationSeconds: alarm.EffectiveDuration(),
		Timestamp:       at,
	})
}

// InventoryChanged implements reconcile.Notifier.
func (p *EventPublisher) InventoryChanged(_ context.Context, change models.InventoryChangedData) {
	p.publishAsync("inventory.changed", p.prefix+".inventory.changed", change.Timestamp, change)
}

// Flush waits until every queued async publish has been acknowledged.
func (p *EventPublisher) Flush(ctx context.Context) error {
	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewJetStream wraps nc with an async error handler that logs failed publishes.
func NewJetStream(nc *nats.Conn, log logger.Logger) (jetstream.JetStream, error) {
	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(maxPendingAcks),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("Async publish failed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return js, nil
}

// EnsureStream creates the stream or widens an existing one so it captures subjects.
func EnsureStream(ctx context.Context, js jetstream.JetStream, streamName string, subjects []string) error {
	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		return nil
	}

	cfg := stream.CachedInfo().Config
	merged := append([]string(nil), cfg.Subjects...)

	for _, s := range subjects {
		merged = ensureSubjectList(merged, s)
	}

	if len(merged) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = merged
	if _, err := js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", streamName, err)
	}

	return nil
}

// ensureSubjectList appends subject unless an existing entry already matches it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, existing := range subjects {
		if subjectMatches(existing, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// subjectMatches reports whether pattern covers subject using NATS wildcard rules.
// A pattern token "*" covers one token of subject, which may itself be a wildcard.
func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}
