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

// IdentityAttributes are the inventory fields guardpost never edits.
type IdentityAttributes struct {
	Owner      string `json:"owner"`
	AssetTag   string `json:"asset_tag"`
	Model      string `json:"model"`
	Contact    string `json:"contact"`
	Alias      string `json:"alias"`
	MACAddress string `json:"mac_address"`
}

// DeviceIdentity is one inventory row keyed by network address.
type DeviceIdentity struct {
	RowIndex       int                `json:"row_index"`
	NetworkAddress string             `json:"network_address"`
	Attributes     IdentityAttributes `json:"attributes"`
	ReportedID     string             `json:"reported_id,omitempty"`
}

// PresenceRecord is the live state of a device derived from its session and telemetry.
type PresenceRecord struct {
	DeviceID     string    `json:"device_id"`
	Alias        string    `json:"alias,omitempty"`
	Online       bool      `json:"online"`
	Battery      int       `json:"battery"`
	Charging     bool      `json:"charging"`
	HasTelemetry bool      `json:"has_telemetry"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

type TransitionKind string

const (
	TransitionConnected     TransitionKind = "connected"
	TransitionReconnected   TransitionKind = "reconnected"
	TransitionDisconnected  TransitionKind = "disconnected"
	TransitionBatteryUpdate TransitionKind = "battery_update"
)

// PresenceTransition is emitted to observers when a PresenceRecord changes meaningfully.
type PresenceTransition struct {
	DeviceID string         `json:"device_id"`
	Kind     TransitionKind `json:"kind"`
	Record   PresenceRecord `json:"record"`
	At       time.Time      `json:"at"`
}

// Registration is the announcement a device sends after opening its session.
type Registration struct {
	NetworkAddress string `json:"ipAddress"`
	ReportedID     string `json:"androidId"`
	AppVersion     string `json:"appVersion,omitempty"`
}

// Heartbeat is the periodic telemetry sample sent by a registered device.
type Heartbeat struct {
	DeviceID  string `json:"deviceId"`
	Battery   int    `json:"battery"`
	Charging  bool   `json:"charging"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type HeartbeatAck struct {
	Status     OutcomeStatus `json:"status"`
	ServerTime int64         `json:"serverTime"`
}

// DeviceView merges identity and presence for the operator read API.
type DeviceView struct {
	DeviceID          string             `json:"device_id"`
	NetworkAddress    string             `json:"network_address"`
	Attributes        IdentityAttributes `json:"attributes"`
	Connected         bool               `json:"connected"`
	Presence          *PresenceRecord    `json:"presence,omitempty"`
	TimeSinceLastSeen *Duration          `json:"time_since_last_seen,omitempty"`
}
