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

//go:generate mockgen -destination=mock_fleet.go -package=fleet github.com/carverauto/guardpost/pkg/fleet TelemetryRecorder

package fleet

import (
	"context"
	"time"

	"github.com/carverauto/guardpost/pkg/models"
)

// IdentityStore is the part of the identity cache the lifecycle service needs.
type IdentityStore interface {
	LookupByAddress(addr string) (models.DeviceIdentity, bool)
	LookupByReportedID(reportedID string) (models.DeviceIdentity, bool)
	ReconcileReportedID(ctx context.Context, addr, reportedID string) (bool, error)
	Snapshot() []models.DeviceIdentity
}

// TelemetryRecorder accepts fire-and-forget heartbeat metrics.
type TelemetryRecorder interface {
	RecordHeartbeat(deviceID string, battery int, charging bool, at time.Time)
	RecordBatteryAlert(deviceID string, battery int, charging bool, at time.Time)
}
