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

//go:generate mockgen -destination=mock_reconcile.go -package=reconcile github.com/carverauto/guardpost/pkg/reconcile MarkerSource,Reloader,MetadataSyncer,Notifier

// Package reconcile keeps the identity cache in step with the inventory source.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

// MarkerSource reads the inventory change marker.
type MarkerSource interface {
	FetchMarker(ctx context.Context) (string, error)
}

// Reloader replaces the identity cache contents.
type Reloader interface {
	Reload(ctx context.Context) error
	Len() int
}

// MetadataSyncer refreshes presence metadata after a reload and returns pruned device ids.
type MetadataSyncer interface {
	Resync() []string
}

// Notifier tells interested parties that inventory data changed.
type Notifier interface {
	InventoryChanged(ctx context.Context, change models.InventoryChangedData)
}

type Loop struct {
	source    MarkerSource
	cache     Reloader
	syncer    MetadataSyncer
	notifiers []Notifier
	clock     clock.Clock
	interval  time.Duration
	logger    logger.Logger

	mu         sync.Mutex
	lastMarker string
}

func NewLoop(source MarkerSource, cache Reloader, syncer MetadataSyncer, clk clock.Clock, interval time.Duration, log logger.Logger, notifiers ...Notifier) *Loop {
	return &Loop{
		source:    source,
		cache:     cache,
		syncer:    syncer,
		notifiers: notifiers,
		clock:     clk,
		interval:  interval,
		logger:    log,
	}
}

// MarkerChanged reports whether next differs from the last observed marker.
func MarkerChanged(prev, next string) bool {
	return prev != next
}

// Load performs the initial inventory load. The marker is read before the rows, so an edit
// landing during the load still changes the marker for the first tick. A failed marker read
// leaves it empty and the first tick reloads.
func (l *Loop) Load(ctx context.Context) error {
	marker, err := l.source.FetchMarker(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Could not read initial inventory marker")
		marker = ""
	}

	if err := l.cache.Reload(ctx); err != nil {
		return err
	}

	l.setMarker(marker)

	l.logger.Info().Str("marker", marker).Int("identities", l.cache.Len()).Msg("Inventory loaded")

	return nil
}

func (l *Loop) marker() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastMarker
}

func (l *Loop) setMarker(m string) {
	l.mu.Lock()
	l.lastMarker = m
	l.mu.Unlock()
}

// Check fetches the change marker and compares it with the last observed one.
func (l *Loop) Check(ctx context.Context) (string, bool, error) {
	marker, err := l.source.FetchMarker(ctx)
	if err != nil {
		return "", false, fmt.Errorf("%w: marker: %w", models.ErrSourceFetch, err)
	}

	return marker, MarkerChanged(l.marker(), marker), nil
}

// Sync reloads the cache, resyncs presence metadata and notifies observers.
func (l *Loop) Sync(ctx context.Context, marker string) error {
	return l.sync(ctx, marker, false)
}

func (l *Loop) sync(ctx context.Context, marker string, forced bool) error {
	if err := l.cache.Reload(ctx); err != nil {
		return err
	}

	pruned := l.syncer.Resync()

	change := models.InventoryChangedData{
		Marker:    marker,
		Devices:   l.cache.Len(),
		Pruned:    pruned,
		Forced:    forced,
		Timestamp: l.clock.Now(),
	}

	for _, n := range l.notifiers {
		n.InventoryChanged(ctx, change)
	}

	return nil
}

// Tick runs one polling cycle. The marker only advances after a successful sync, so a failed
// reload is retried on the next tick.
func (l *Loop) Tick(ctx context.Context) error {
	marker, changed, err := l.Check(ctx)
	if err != nil {
		return err
	}

	if !changed {
		return nil
	}

	l.logger.Info().
		Str("previous_marker", l.marker()).
		Str("marker", marker).
		Msg("Inventory change detected")

	if err := l.Sync(ctx, marker); err != nil {
		return err
	}

	l.setMarker(marker)

	return nil
}

// ForceReload syncs regardless of the marker.
func (l *Loop) ForceReload(ctx context.Context) error {
	marker, _, err := l.Check(ctx)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Reloading without a fresh marker")
		marker = l.marker()
	}

	if err := l.sync(ctx, marker, true); err != nil {
		return err
	}

	l.setMarker(marker)

	return nil
}

// Start polls until ctx is done. Failures are logged and retried on the next tick.
func (l *Loop) Start(ctx context.Context) {
	l.logger.Info().Str("interval", l.interval.String()).Msg("Starting inventory reconciliation")

	ticker := l.clock.Ticker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Inventory reconciliation stopping")
			return
		case <-ticker.Chan():
			if err := l.Tick(ctx); err != nil {
				l.logger.Error().Err(err).Msg("Inventory reconciliation failed")
			}
		}
	}
}
