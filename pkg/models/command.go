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

import (
	"encoding/json"
	"strings"
)

type CommandKind string

const (
	CommandActivateAlarm   CommandKind = "activate-alarm"
	CommandSendMessage     CommandKind = "send-message"
	CommandPing            CommandKind = "ping"
	CommandGetDeviceInfo   CommandKind = "get-device-info"
	CommandCheckForUpdate  CommandKind = "check-for-update"
	CommandMaintenanceMode CommandKind = "enter-maintenance-mode"
)

var commandEvents = map[CommandKind]string{
	CommandActivateAlarm:   "ALARM_ACTIVATE",
	CommandSendMessage:     "MESSAGE_RECEIVE",
	CommandPing:            "PING",
	CommandGetDeviceInfo:   "GET_DEVICE_INFO",
	CommandCheckForUpdate:  "CHECK_FOR_UPDATE",
	CommandMaintenanceMode: "SET_MAINTENANCE_MODE",
}

// Event returns the wire event name devices listen for, or "" for unknown kinds.
func (k CommandKind) Event() string {
	return commandEvents[k]
}

// Broadcastable reports whether the kind may be sent to the whole fleet.
func (k CommandKind) Broadcastable() bool {
	switch k {
	case CommandSendMessage, CommandCheckForUpdate, CommandMaintenanceMode:
		return true
	case CommandActivateAlarm, CommandPing, CommandGetDeviceInfo:
		return false
	default:
		return false
	}
}

type OutcomeStatus string

const (
	StatusOK    OutcomeStatus = "OK"
	StatusError OutcomeStatus = "ERROR"
	StatusWarn  OutcomeStatus = "WARN"
)

// ParseStatus normalizes a device-supplied status, defaulting to OK.
func ParseStatus(raw string) OutcomeStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ERROR":
		return StatusError
	case "WARN", "WARNING":
		return StatusWarn
	default:
		return StatusOK
	}
}

// CommandOutcome is what an operator gets back for every command, successful or not.
type CommandOutcome struct {
	Status    OutcomeStatus   `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Responded int             `json:"responded,omitempty"`
	Succeeded int             `json:"succeeded,omitempty"`
	Addressed int             `json:"addressed,omitempty"`
}

// DeviceReply is the subset of a device acknowledgment guardpost interprets.
type DeviceReply struct {
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	AndroidID string `json:"androidId,omitempty"`
}

// DefaultAlarmDurationSeconds is what devices sound for when no duration is sent.
const DefaultAlarmDurationSeconds = 10

// AlarmPayload is sent as-is to the device. Zero values are omitted so the device applies its
// own defaults.
type AlarmPayload struct {
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	DeviceAlias     string `json:"deviceAlias,omitempty"`
}

// EffectiveDuration is the duration the device will actually sound for.
func (a AlarmPayload) EffectiveDuration() int {
	if a.DurationSeconds <= 0 {
		return DefaultAlarmDurationSeconds
	}

	return a.DurationSeconds
}

type MessagePayload struct {
	Text   string `json:"message"`
	Sender string `json:"sender,omitempty"`
}

type MaintenancePayload struct {
	UntilTimestamp int64 `json:"untilTimestamp"`
}

// RegistrationAck is sent back to a device after REGISTER_DEVICE.
type RegistrationAck struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}
