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

// Package identity mirrors the device inventory and repairs device-reported identifiers.
package identity

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

// snapshot is immutable once published.
type snapshot struct {
	order      []string
	byAddr     map[string]models.DeviceIdentity
	byReported map[string]string
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		order:      s.order,
		byAddr:     make(map[string]models.DeviceIdentity, len(s.byAddr)),
		byReported: make(map[string]string, len(s.byReported)),
	}

	for k, v := range s.byAddr {
		next.byAddr[k] = v
	}

	for k, v := range s.byReported {
		next.byReported[k] = v
	}

	return next
}

// Cache maps network addresses to inventory identities. Readers never block; reloads and
// reported-id repairs are serialized with each other.
type Cache struct {
	source  Source
	logger  logger.Logger
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

func NewCache(source Source, log logger.Logger) *Cache {
	c := &Cache{
		source: source,
		logger: log,
	}
	c.current.Store(&snapshot{
		byAddr:     map[string]models.DeviceIdentity{},
		byReported: map[string]string{},
	})

	return c
}

// Reload replaces the whole cache with the rows currently in the source. On failure the
// previous contents stay in place.
func (c *Cache) Reload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.source.FetchRows(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrSourceFetch, err)
	}

	snap := c.buildSnapshot(rows)
	c.current.Store(snap)

	c.logger.Info().
		Int("rows", len(rows)).
		Int("identities", len(snap.byAddr)).
		Int("reported_ids", len(snap.byReported)).
		Msg("Identity cache reloaded")

	return nil
}

func (c *Cache) buildSnapshot(rows []models.DeviceIdentity) *snapshot {
	snap := &snapshot{
		order:      make([]string, 0, len(rows)),
		byAddr:     make(map[string]models.DeviceIdentity, len(rows)),
		byReported: make(map[string]string),
	}

	for _, row := range rows {
		if row.NetworkAddress == "" {
			continue
		}

		if prev, dup := snap.byAddr[row.NetworkAddress]; dup {
			c.logger.Warn().
				Str("address", row.NetworkAddress).
				Int("row", row.RowIndex).
				Int("kept_row", prev.RowIndex).
				Msg("Duplicate network address in inventory, ignoring row")

			continue
		}

		if row.ReportedID != "" {
			if holder, dup := snap.byReported[row.ReportedID]; dup {
				c.logger.Warn().
					Str("reported_id", row.ReportedID).
					Str("address", row.NetworkAddress).
					Int("row", row.RowIndex).
					Str("kept_address", holder).
					Msg("Reported id already claimed by an earlier row, clearing it")

				row.ReportedID = ""
			} else {
				snap.byReported[row.ReportedID] = row.NetworkAddress
			}
		}

		snap.order = append(snap.order, row.NetworkAddress)
		snap.byAddr[row.NetworkAddress] = row
	}

	return snap
}

// LookupByAddress returns the identity registered for addr.
func (c *Cache) LookupByAddress(addr string) (models.DeviceIdentity, bool) {
	ident, ok := c.current.Load().byAddr[addr]
	return ident, ok
}

// LookupByReportedID returns the identity currently claiming reportedID.
func (c *Cache) LookupByReportedID(reportedID string) (models.DeviceIdentity, bool) {
	snap := c.current.Load()

	addr, ok := snap.byReported[reportedID]
	if !ok {
		return models.DeviceIdentity{}, false
	}

	ident, ok := snap.byAddr[addr]

	return ident, ok
}

// ReconcileReportedID makes the identity at addr carry reportedID, persisting the change to
// the source before it becomes visible. It reports whether anything had to change.
func (c *Cache) ReconcileReportedID(ctx context.Context, addr, reportedID string) (bool, error) {
	if addr == "" || reportedID == "" {
		return false, fmt.Errorf("%w: address and reported id are required", models.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.current.Load()

	ident, ok := snap.byAddr[addr]
	if !ok {
		return false, fmt.Errorf("%w: %s", models.ErrUnregisteredDevice, addr)
	}

	if ident.ReportedID == reportedID {
		return false, nil
	}

	if err := c.source.WriteReportedID(ctx, ident.RowIndex, reportedID); err != nil {
		c.logger.Error().
			Err(err).
			Str("address", addr).
			Int("row", ident.RowIndex).
			Str("reported_id", reportedID).
			Str("previous_id", ident.ReportedID).
			Msg("Failed to write reported id correction")

		return false, fmt.Errorf("%w: address %s row %d: %w", models.ErrReconciliationWrite, addr, ident.RowIndex, err)
	}

	next := snap.clone()

	if holderAddr, claimed := snap.byReported[reportedID]; claimed && holderAddr != addr {
		c.releaseStaleClaim(ctx, next, holderAddr)
	}

	if ident.ReportedID != "" {
		delete(next.byReported, ident.ReportedID)
	}

	c.logger.Info().
		Str("address", addr).
		Int("row", ident.RowIndex).
		Str("reported_id", reportedID).
		Str("previous_id", ident.ReportedID).
		Msg("Reported id reconciled")

	ident.ReportedID = reportedID
	next.byAddr[addr] = ident
	next.byReported[reportedID] = addr

	c.current.Store(next)

	return true, nil
}

// releaseStaleClaim clears a reported id from a row the device no longer lives at. The
// in-memory clear always happens; a failed source write only leaves the stale cell behind.
func (c *Cache) releaseStaleClaim(ctx context.Context, next *snapshot, holderAddr string) {
	holder := next.byAddr[holderAddr]

	if err := c.source.WriteReportedID(ctx, holder.RowIndex, ""); err != nil {
		c.logger.Warn().
			Err(err).
			Str("address", holderAddr).
			Int("row", holder.RowIndex).
			Str("reported_id", holder.ReportedID).
			Msg("Failed to clear stale reported id")
	}

	delete(next.byReported, holder.ReportedID)
	holder.ReportedID = ""
	next.byAddr[holderAddr] = holder
}

// Snapshot returns every identity in source order.
func (c *Cache) Snapshot() []models.DeviceIdentity {
	snap := c.current.Load()

	out := make([]models.DeviceIdentity, 0, len(snap.order))
	for _, addr := range snap.order {
		out = append(out, snap.byAddr[addr])
	}

	return out
}

// Len returns the number of cached identities.
func (c *Cache) Len() int {
	return len(c.current.Load().byAddr)
}
