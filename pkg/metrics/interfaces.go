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

//go:generate mockgen -destination=mock_metrics.go -package=metrics github.com/carverauto/guardpost/pkg/metrics Writer

// Package metrics records fleet history asynchronously so the device path never waits on storage.
package metrics

import (
	"context"
	"time"

	"github.com/carverauto/guardpost/pkg/models"
)

// Writer persists metric records. *db.Store satisfies it.
type Writer interface {
	Write(ctx context.Context, records []models.MetricRecord) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NopWriter discards everything. It stands in when no database is configured.
type NopWriter struct{}

func (NopWriter) Write(context.Context, []models.MetricRecord) error { return nil }

func (NopWriter) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
