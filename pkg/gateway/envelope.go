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

package gateway

import (
	"encoding/json"
	"time"

	"github.com/carverauto/guardpost/pkg/models"
)

// Envelope is the frame exchanged on every websocket. A request carries ID, the reply to it
// carries the same value in ReplyTo. Pushes carry neither.
type Envelope struct {
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	ReplyTo string          `json:"reply_to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Device events.
const (
	EventRegisterDevice = "REGISTER_DEVICE"
	EventHeartbeat      = "HEARTBEAT"
)

// Operator events.
const (
	EventIdentifyClient       = "IDENTIFY_CLIENT"
	EventSendPing             = "SEND_PING"
	EventAlarmActivate        = "ALARM_ACTIVATE"
	EventSendMessage          = "SEND_MESSAGE"
	EventSendBroadcastMessage = "SEND_BROADCAST_MESSAGE"
	EventCheckForUpdate       = "CHECK_FOR_UPDATE"
	EventCheckForAllUpdate    = "CHECK_FOR_ALL_UPDATE"
	EventGetDeviceInfo        = "GET_DEVICE_INFO"
	EventSetMaintenanceMode   = "SET_MAINTENANCE_MODE"
)

// Server pushes to identified operators.
const (
	EventDeviceStatus         = "DEVICE_STATUS"
	EventDataModified         = "DATA_MODIFIED"
	EventInventoryUpdateAlert = "INVENTORY_UPDATE_ALERT"
)

// ClientTypeWeb is the clientType an operator console identifies with to receive pushes.
const ClientTypeWeb = "WEB"

type identifyPayload struct {
	ClientType string `json:"clientType"`
}

type targetPayload struct {
	TargetDeviceID string `json:"target_device_id"`
}

type alarmRequest struct {
	TargetDeviceID  string `json:"target_device_id"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	DeviceAlias     string `json:"deviceAlias,omitempty"`
}

type messageRequest struct {
	TargetDeviceID string `json:"target_device_id,omitempty"`
	DataMessage    struct {
		Message string `json:"message"`
		Sender  string `json:"sender,omitempty"`
	} `json:"dataMessage"`
}

type maintenanceRequest struct {
	UntilTimestamp int64 `json:"untilTimestamp"`
}

type dataModifiedPayload struct {
	Reason    string    `json:"reason"`
	Marker    string    `json:"marker,omitempty"`
	Devices   int       `json:"devices"`
	Pruned    []string  `json:"pruned,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type rejection struct {
	Status models.OutcomeStatus `json:"status"`
	Reason string               `json:"reason"`
}
