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

package presence

import (
	"context"
	"time"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
)

// Sweeper periodically marks silent devices offline. It exists for sessions that stay open at
// the transport level after the device itself stopped heartbeating.
type Sweeper struct {
	tracker   *Tracker
	clock     clock.Clock
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
}

func NewSweeper(tracker *Tracker, clk clock.Clock, log logger.Logger, interval, threshold time.Duration) *Sweeper {
	return &Sweeper{
		tracker:   tracker,
		clock:     clk,
		logger:    log,
		interval:  interval,
		threshold: threshold,
	}
}

// Start runs the sweep loop until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().
		Str("interval", s.interval.String()).
		Str("threshold", s.threshold.String()).
		Msg("Starting offline sweeper")

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Offline sweeper stopping")
			return
		case <-ticker.Chan():
			s.sweep()
		}
	}
}

// sweep executes a single cycle.
func (s *Sweeper) sweep() int {
	marked := s.tracker.Sweep(s.clock.Now(), s.threshold)
	if len(marked) > 0 {
		s.logger.Info().Int("count", len(marked)).Msg("Marked silent devices offline")
	}

	return len(marked)
}
