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

package models

import "time"

// MetricKind names the table a metric record lands in.
type MetricKind string

const (
	MetricAlarm        MetricKind = "alarm"
	MetricBatteryAlert MetricKind = "battery_alert"
	MetricHeartbeat    MetricKind = "heartbeat"
	MetricOffline      MetricKind = "offline"
	MetricOnline       MetricKind = "online"
)

// MetricRecord is one fleet metric waiting to be persisted. Only the fields relevant to Kind
// are set.
type MetricRecord struct {
	Kind            MetricKind
	DeviceID        string
	Battery         int
	Charging        bool
	DurationSeconds int
	At              time.Time
}
