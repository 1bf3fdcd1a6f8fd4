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

// Package presence keeps the online/offline and telemetry state of every seen device.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

// Observer receives presence transitions in the order they were applied. Implementations must
// not block for long and must not mutate the tracker; they are called synchronously, outside
// the state lock.
type Observer interface {
	OnPresenceTransition(tr models.PresenceTransition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(tr models.PresenceTransition)

func (f ObserverFunc) OnPresenceTransition(tr models.PresenceTransition) { f(tr) }

type Tracker struct {
	mu           sync.Mutex
	records      map[string]*models.PresenceRecord
	pending      []models.PresenceTransition
	batteryDelta int
	logger       logger.Logger

	// emitMu allows one delivery at a time; pending is drained in order under it.
	emitMu    sync.Mutex
	obsMu     sync.RWMutex
	observers []Observer
}

func NewTracker(batteryDelta int, log logger.Logger) *Tracker {
	if batteryDelta <= 0 {
		batteryDelta = models.DefaultBatteryDelta
	}

	return &Tracker{
		records:      make(map[string]*models.PresenceRecord),
		batteryDelta: batteryDelta,
		logger:       log,
	}
}

// Subscribe adds an observer for every future transition.
func (t *Tracker) Subscribe(o Observer) {
	t.obsMu.Lock()
	t.observers = append(t.observers, o)
	t.obsMu.Unlock()
}

// queue records transitions for delivery. Callers hold t.mu, so pending follows the order in
// which state changed.
func (t *Tracker) queue(trs ...models.PresenceTransition) {
	t.pending = append(t.pending, trs...)
}

// flush delivers everything queued so far. When it returns, every transition the caller queued
// has been delivered, by this goroutine or by the one that held emitMu before it.
func (t *Tracker) flush() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	for {
		t.mu.Lock()
		trs := t.pending
		t.pending = nil
		t.mu.Unlock()

		if len(trs) == 0 {
			return
		}

		t.emit(trs)
	}
}

func (t *Tracker) emit(trs []models.PresenceTransition) {
	t.obsMu.RLock()
	observers := append([]Observer(nil), t.observers...)
	t.obsMu.RUnlock()

	for _, tr := range trs {
		t.logger.Debug().
			Str("device_id", tr.DeviceID).
			Str("transition", string(tr.Kind)).
			Int("battery", tr.Record.Battery).
			Bool("charging", tr.Record.Charging).
			Msg("Presence transition")

		for _, o := range observers {
			o.OnPresenceTransition(tr)
		}
	}
}

func transition(rec *models.PresenceRecord, kind models.TransitionKind, at time.Time) models.PresenceTransition {
	return models.PresenceTransition{
		DeviceID: rec.DeviceID,
		Kind:     kind,
		Record:   *rec,
		At:       at,
	}
}

// Connected marks a freshly registered device online.
func (t *Tracker) Connected(deviceID, alias string, now time.Time) *models.PresenceTransition {
	t.mu.Lock()

	var tr *models.PresenceTransition

	rec, ok := t.records[deviceID]

	switch {
	case !ok:
		rec = &models.PresenceRecord{DeviceID: deviceID, Alias: alias, Online: true, LastSeenAt: now}
		t.records[deviceID] = rec
		out := transition(rec, models.TransitionConnected, now)
		tr = &out
	case !rec.Online:
		rec.Online = true
		rec.LastSeenAt = now
		if alias != "" {
			rec.Alias = alias
		}

		out := transition(rec, models.TransitionReconnected, now)
		tr = &out
	default:
		rec.LastSeenAt = now
		if alias != "" {
			rec.Alias = alias
		}
	}

	if tr != nil {
		t.queue(*tr)
	}
	t.mu.Unlock()

	t.flush()

	return tr
}

// Disconnected marks a device offline. Nothing is emitted for devices that were not online.
func (t *Tracker) Disconnected(deviceID string, now time.Time) *models.PresenceTransition {
	t.mu.Lock()

	rec, ok := t.records[deviceID]
	if !ok || !rec.Online {
		t.mu.Unlock()
		return nil
	}

	rec.Online = false
	tr := transition(rec, models.TransitionDisconnected, now)
	t.queue(tr)
	t.mu.Unlock()

	t.flush()

	return &tr
}

// Telemetry applies a heartbeat sample. A transition is returned only for a first sighting,
// an offline device coming back, or a battery/charging change worth reporting.
func (t *Tracker) Telemetry(deviceID string, battery int, charging bool, now time.Time) *models.PresenceTransition {
	battery = min(max(battery, 0), 100)

	t.mu.Lock()

	var kind models.TransitionKind

	rec, ok := t.records[deviceID]

	switch {
	case !ok:
		rec = &models.PresenceRecord{DeviceID: deviceID}
		t.records[deviceID] = rec
		kind = models.TransitionConnected
	case !rec.Online:
		kind = models.TransitionReconnected
	case !rec.HasTelemetry || abs(rec.Battery-battery) >= t.batteryDelta || rec.Charging != charging:
		kind = models.TransitionBatteryUpdate
	}

	rec.Online = true
	rec.Battery = battery
	rec.Charging = charging
	rec.HasTelemetry = true
	rec.LastSeenAt = now

	if kind == "" {
		t.mu.Unlock()
		return nil
	}

	tr := transition(rec, kind, now)
	t.queue(tr)
	t.mu.Unlock()

	t.flush()

	return &tr
}

// Sweep marks online devices silent for longer than threshold as offline.
func (t *Tracker) Sweep(now time.Time, threshold time.Duration) []models.PresenceTransition {
	cutoff := now.Add(-threshold)

	t.mu.Lock()

	var out []models.PresenceTransition

	for _, rec := range t.records {
		if rec.Online && rec.LastSeenAt.Before(cutoff) {
			rec.Online = false
			out = append(out, transition(rec, models.TransitionDisconnected, now))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	t.queue(out...)
	t.mu.Unlock()

	t.flush()

	return out
}

// Resync refreshes the alias of every record from lookup and prunes offline records whose
// device no longer exists in the inventory. Online orphans stay until they disconnect.
func (t *Tracker) Resync(lookup func(deviceID string) (alias string, ok bool)) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pruned []string

	for id, rec := range t.records {
		alias, ok := lookup(id)
		if ok {
			rec.Alias = alias
			continue
		}

		if !rec.Online {
			delete(t.records, id)
			pruned = append(pruned, id)
		}
	}

	sort.Strings(pruned)

	return pruned
}

func (t *Tracker) Get(deviceID string) (models.PresenceRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[deviceID]
	if !ok {
		return models.PresenceRecord{}, false
	}

	return *rec, true
}

// Snapshot returns a copy of every record sorted by device id.
func (t *Tracker) Snapshot() []models.PresenceRecord {
	t.mu.Lock()
	out := make([]models.PresenceRecord, 0, len(t.records))

	for _, rec := range t.records {
		out = append(out, *rec)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
