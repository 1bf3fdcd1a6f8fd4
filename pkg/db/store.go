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

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const (
	insertAlarmSQL = `INSERT INTO alarm_events (device_id, duration_seconds, created_at)
VALUES ($1, $2, $3)`
	insertBatteryAlertSQL = `INSERT INTO battery_alerts (device_id, battery, charging, created_at)
VALUES ($1, $2, $3, $4)`
	insertHeartbeatSQL = `INSERT INTO heartbeats (device_id, battery, charging, created_at)
VALUES ($1, $2, $3, $4)`
	openOfflineSQL = `INSERT INTO offline_events (device_id, went_offline_at)
SELECT $1::TEXT, $2::TIMESTAMPTZ
WHERE NOT EXISTS (
	SELECT 1 FROM offline_events WHERE device_id = $1 AND came_online_at IS NULL
)`
	closeOfflineSQL = `UPDATE offline_events
SET came_online_at = $2::TIMESTAMPTZ,
	duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2 - went_offline_at)))::INTEGER
WHERE device_id = $1 AND came_online_at IS NULL`
)

// retentionTables maps each metrics table to its timestamp column.
var retentionTables = []struct {
	table  string
	column string
}{
	{"alarm_events", "created_at"},
	{"battery_alerts", "created_at"},
	{"heartbeats", "created_at"},
	{"offline_events", "went_offline_at"},
}

// Store writes metric records.
type Store struct {
	db     Querier
	logger logger.Logger
}

func NewStore(db Querier, log logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

func queue(batch *pgx.Batch, rec *models.MetricRecord) bool {
	switch rec.Kind {
	case models.MetricAlarm:
		batch.Queue(insertAlarmSQL, rec.DeviceID, rec.DurationSeconds, rec.At)
	case models.MetricBatteryAlert:
		batch.Queue(insertBatteryAlertSQL, rec.DeviceID, rec.Battery, rec.Charging, rec.At)
	case models.MetricHeartbeat:
		batch.Queue(insertHeartbeatSQL, rec.DeviceID, rec.Battery, rec.Charging, rec.At)
	case models.MetricOffline:
		batch.Queue(openOfflineSQL, rec.DeviceID, rec.At)
	case models.MetricOnline:
		batch.Queue(closeOfflineSQL, rec.DeviceID, rec.At)
	default:
		return false
	}

	return true
}

// Write persists records in one batch, preserving their order.
func (s *Store) Write(ctx context.Context, records []models.MetricRecord) error {
	batch := &pgx.Batch{}

	for i := range records {
		if !queue(batch, &records[i]) {
			s.logger.Warn().Str("kind", string(records[i].Kind)).Msg("Skipping unknown metric kind")
		}
	}

	return sendBatchExecAll(ctx, batch, s.db.SendBatch, "metrics")
}

// DeleteOlderThan removes rows recorded before cutoff and returns how many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64

	for _, rt := range retentionTables {
		tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`, rt.table, rt.column), cutoff)
		if err != nil {
			return total, fmt.Errorf("retention on %s: %w", rt.table, err)
		}

		total += tag.RowsAffected()
	}

	return total, nil
}
