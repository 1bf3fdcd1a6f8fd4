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
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

var errExec = errors.New("exec failed")

type fakeBatchResults struct {
	execs  int
	failAt int
	closed bool
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	f.execs++
	if f.failAt > 0 && f.execs == f.failAt {
		return pgconn.CommandTag{}, errExec
	}

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errExec }
func (f *fakeBatchResults) QueryRow() pgx.Row        { return nil }

func (f *fakeBatchResults) Close() error {
	f.closed = true
	return nil
}

type fakeQuerier struct {
	batches []*pgx.Batch
	results *fakeBatchResults
	execs   []string
	deleted int64
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("DELETE " + strconv.FormatInt(f.deleted, 10)), nil
}

func (f *fakeQuerier) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b)
	return f.results
}

func TestStoreWrite(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	q := &fakeQuerier{results: &fakeBatchResults{}}
	s := NewStore(q, logger.NewTestLogger())

	err := s.Write(context.Background(), []models.MetricRecord{
		{Kind: models.MetricAlarm, DeviceID: "dev-1", DurationSeconds: 30, At: at},
		{Kind: models.MetricHeartbeat, DeviceID: "dev-1", Battery: 80, Charging: true, At: at},
		{Kind: "bogus", DeviceID: "dev-1"},
		{Kind: models.MetricOffline, DeviceID: "dev-2", At: at},
		{Kind: models.MetricOnline, DeviceID: "dev-2", At: at.Add(time.Minute)},
		{Kind: models.MetricBatteryAlert, DeviceID: "dev-3", Battery: 12, At: at},
	})
	require.NoError(t, err)

	require.Len(t, q.batches, 1)

	queued := q.batches[0].QueuedQueries
	require.Len(t, queued, 5, "unknown kinds are skipped")

	assert.True(t, strings.HasPrefix(queued[0].SQL, "INSERT INTO alarm_events"))
	assert.Equal(t, []any{"dev-1", 30, at}, queued[0].Arguments)
	assert.True(t, strings.HasPrefix(queued[1].SQL, "INSERT INTO heartbeats"))
	assert.True(t, strings.HasPrefix(queued[2].SQL, "INSERT INTO offline_events"))
	assert.True(t, strings.HasPrefix(queued[3].SQL, "UPDATE offline_events"))
	assert.True(t, strings.HasPrefix(queued[4].SQL, "INSERT INTO battery_alerts"))

	assert.Equal(t, 5, q.results.execs)
	assert.True(t, q.results.closed)
}

func TestStoreWriteReportsFailingCommand(t *testing.T) {
	q := &fakeQuerier{results: &fakeBatchResults{failAt: 2}}
	s := NewStore(q, logger.NewTestLogger())

	err := s.Write(context.Background(), []models.MetricRecord{
		{Kind: models.MetricHeartbeat, DeviceID: "dev-1"},
		{Kind: models.MetricHeartbeat, DeviceID: "dev-2"},
	})
	require.ErrorIs(t, err, errExec)
	assert.Contains(t, err.Error(), "command 1")
	assert.True(t, q.results.closed)
}

func TestStoreWriteEmpty(t *testing.T) {
	q := &fakeQuerier{}
	require.NoError(t, NewStore(q, logger.NewTestLogger()).Write(context.Background(), nil))
	assert.Empty(t, q.batches)
}

func TestDeleteOlderThan(t *testing.T) {
	q := &fakeQuerier{deleted: 3}
	s := NewStore(q, logger.NewTestLogger())

	n, err := s.DeleteOlderThan(context.Background(), time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.Len(t, q.execs, 4)
	assert.Equal(t, "DELETE FROM offline_events WHERE went_offline_at < $1", q.execs[3])
}
