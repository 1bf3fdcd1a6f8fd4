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

package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

const (
	maxBatch     = 256
	writeTimeout = 10 * time.Second
	drainTimeout = 5 * time.Second
)

// Recorder queues metric records and writes them in batches from a single worker.
// Every Record method is non-blocking: when the queue is full the record is dropped.
type Recorder struct {
	writer      Writer
	clock       clock.Clock
	logger      logger.Logger
	queue       chan models.MetricRecord
	sampleEvery int

	// deviceID -> *rate.Sometimes
	samplers sync.Map
	dropped  atomic.Int64
}

func NewRecorder(w Writer, cfg *models.MetricsConfig, clk clock.Clock, log logger.Logger) *Recorder {
	if w == nil {
		w = NopWriter{}
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = models.DefaultMetricsQueueSize
	}

	every := cfg.HeartbeatSampleEvery
	if every <= 0 {
		every = models.DefaultHeartbeatSampleEvery
	}

	return &Recorder{
		writer:      w,
		clock:       clk,
		logger:      log,
		queue:       make(chan models.MetricRecord, size),
		sampleEvery: every,
	}
}

// Dropped reports how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(rec models.MetricRecord) {
	select {
	case r.queue <- rec:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn().
			Str("kind", string(rec.Kind)).
			Str("device_id", rec.DeviceID).
			Int64("dropped_total", n).
			Msg("Metrics queue full, dropping record")
	}
}

func (r *Recorder) sampler(deviceID string) *rate.Sometimes {
	if s, ok := r.samplers.Load(deviceID); ok {
		return s.(*rate.Sometimes)
	}

	s, _ := r.samplers.LoadOrStore(deviceID, &rate.Sometimes{Every: r.sampleEvery})

	return s.(*rate.Sometimes)
}

// RecordHeartbeat keeps the first heartbeat of every device and then one in sampleEvery.
func (r *Recorder) RecordHeartbeat(deviceID string, battery int, charging bool, at time.Time) {
	r.sampler(deviceID).Do(func() {
		r.enqueue(models.MetricRecord{
			Kind:     models.MetricHeartbeat,
			DeviceID: deviceID,
			Battery:  battery,
			Charging: charging,
			At:       at,
		})
	})
}

func (r *Recorder) RecordBatteryAlert(deviceID string, battery int, charging bool, at time.Time) {
	r.enqueue(models.MetricRecord{
		Kind:     models.MetricBatteryAlert,
		DeviceID: deviceID,
		Battery:  battery,
		Charging: charging,
		At:       at,
	})
}

func (r *Recorder) RecordAlarm(deviceID string, payload models.AlarmPayload, at time.Time) {
	r.enqueue(models.MetricRecord{
		Kind:            models.MetricAlarm,
		DeviceID:        deviceID,
		DurationSeconds: payload.EffectiveDuration(),
		At:              at,
	})
}

// RecordOffline opens an offline interval. The device's heartbeat sampler is reset so the
// first heartbeat after it returns is always kept.
func (r *Recorder) RecordOffline(deviceID string, at time.Time) {
	r.samplers.Delete(deviceID)
	r.enqueue(models.MetricRecord{Kind: models.MetricOffline, DeviceID: deviceID, At: at})
}

// RecordOnline closes the device's open offline interval, if any.
func (r *Recorder) RecordOnline(deviceID string, at time.Time) {
	r.enqueue(models.MetricRecord{Kind: models.MetricOnline, DeviceID: deviceID, At: at})
}

// OnPresenceTransition maps tracker transitions onto offline intervals.
func (r *Recorder) OnPresenceTransition(tr models.PresenceTransition) {
	switch tr.Kind {
	case models.TransitionDisconnected:
		r.RecordOffline(tr.DeviceID, tr.At)
	case models.TransitionConnected, models.TransitionReconnected:
		r.RecordOnline(tr.DeviceID, tr.At)
	case models.TransitionBatteryUpdate:
	}
}

// Run drains the queue until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info().Int("queue_size", cap(r.queue)).Int("heartbeat_sample_every", r.sampleEvery).
		Msg("Starting metrics writer")

	batch := make([]models.MetricRecord, 0, maxBatch)

	for {
		select {
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx), batch)
			r.logger.Info().Msg("Metrics writer stopped")

			return nil
		case rec := <-r.queue:
			batch = r.collect(append(batch, rec))
			r.flush(ctx, batch)
			batch = batch[:0]
		}
	}
}

// collect appends whatever is already queued, up to maxBatch.
func (r *Recorder) collect(batch []models.MetricRecord) []models.MetricRecord {
	for len(batch) < maxBatch {
		select {
		case rec := <-r.queue:
			batch = append(batch, rec)
		default:
			return batch
		}
	}

	return batch
}

func (r *Recorder) drain(ctx context.Context, batch []models.MetricRecord) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	for {
		batch = r.collect(batch[:0])
		if len(batch) == 0 {
			return
		}

		r.flush(ctx, batch)

		if ctx.Err() != nil {
			return
		}
	}
}

func (r *Recorder) flush(ctx context.Context, batch []models.MetricRecord) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.writer.Write(ctx, batch); err != nil {
		r.logger.Error().Err(err).Int("records", len(batch)).Msg("Failed to write metrics batch")
	}
}
