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
	"time"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

const retentionCheckInterval = time.Minute

// Retention deletes metric rows older than the configured window once a day.
type Retention struct {
	writer Writer
	clock  clock.Clock
	logger logger.Logger
	window time.Duration
	hour   int

	lastRun time.Time
}

func NewRetention(w Writer, cfg *models.MetricsConfig, clk clock.Clock, log logger.Logger) *Retention {
	if w == nil {
		w = NopWriter{}
	}

	window := time.Duration(cfg.Retention)
	if window <= 0 {
		window = models.DefaultRetention
	}

	hour := cfg.RetentionHour
	if hour < 0 || hour > 23 {
		hour = models.DefaultRetentionHour
	}

	return &Retention{
		writer: w,
		clock:  clk,
		logger: log,
		window: window,
		hour:   hour,
	}
}

// due reports whether a prune should run at now: the configured hour has come and nothing ran
// yet on that calendar day.
func (r *Retention) due(now time.Time) bool {
	if now.Hour() != r.hour {
		return false
	}

	if r.lastRun.IsZero() {
		return true
	}

	y1, m1, d1 := r.lastRun.Date()
	y2, m2, d2 := now.Date()

	return y1 != y2 || m1 != m2 || d1 != d2
}

// Prune removes everything recorded before now minus the retention window.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	now := r.clock.Now()
	cutoff := now.Add(-r.window)

	deleted, err := r.writer.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("Metrics retention failed")
		return deleted, err
	}

	r.lastRun = now

	r.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Pruned old metrics")

	return deleted, nil
}

// Run checks once a minute and prunes when due, until ctx is done.
func (r *Retention) Run(ctx context.Context) error {
	r.logger.Info().
		Str("window", r.window.String()).
		Int("hour", r.hour).
		Msg("Starting metrics retention")

	ticker := r.clock.Ticker(retentionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.Chan():
			if !r.due(now) {
				continue
			}

			_, _ = r.Prune(ctx)
		}
	}
}
