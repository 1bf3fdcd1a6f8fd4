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
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/guardpost/pkg/auth"
	"github.com/carverauto/guardpost/pkg/models"
)

// adminOnly lists the operator events restricted to the ADMIN role.
var adminOnly = map[string]bool{
	EventSendBroadcastMessage: true,
	EventCheckForUpdate:       true,
	EventCheckForAllUpdate:    true,
	EventSetMaintenanceMode:   true,
}

func invalid(format string, args ...any) models.CommandOutcome {
	return models.CommandOutcome{
		Status:  models.StatusError,
		Message: fmt.Sprintf("%v: %s", models.ErrValidation, fmt.Sprintf(format, args...)),
	}
}

// handleOperator runs in its own goroutine per request; command waits must not stall the
// read loop.
func (h *Hub) handleOperator(ctx context.Context, c *Client, env Envelope) {
	if env.Event == EventIdentifyClient {
		h.identify(c, env.Payload)
		return
	}

	if adminOnly[env.Event] && (c.claims == nil || !c.claims.IsAdmin()) {
		c.logger.Warn().Str("event", env.Event).Msg("Operator lacks admin role")
		c.reply(&env, models.CommandOutcome{Status: models.StatusError, Message: auth.ErrForbidden.Error()})

		return
	}

	out := h.command(ctx, c, &env)

	c.logger.Info().
		Str("event", env.Event).
		Str("operator", c.claims.Username).
		Str("status", string(out.Status)).
		Msg("Operator command handled")

	if env.ID != "" {
		c.reply(&env, out)
	}
}

func (h *Hub) identify(c *Client, payload json.RawMessage) {
	var req identifyPayload
	_ = json.Unmarshal(payload, &req)

	if req.ClientType != ClientTypeWeb {
		c.logger.Debug().Str("client_type", req.ClientType).Msg("Ignoring identification")
		return
	}

	c.subscribed.Store(true)
	c.logger.Info().Msg("Operator console subscribed to pushes")
}

func (h *Hub) command(ctx context.Context, c *Client, env *Envelope) models.CommandOutcome {
	switch env.Event {
	case EventSendPing, EventGetDeviceInfo, EventCheckForUpdate:
		var req targetPayload
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return invalid("malformed %s payload", env.Event)
		}

		switch env.Event {
		case EventSendPing:
			return h.commands.Ping(ctx, req.TargetDeviceID)
		case EventGetDeviceInfo:
			return h.commands.GetDeviceInfo(ctx, req.TargetDeviceID)
		default:
			return h.commands.CheckForUpdate(ctx, req.TargetDeviceID)
		}
	case EventAlarmActivate:
		var req alarmRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return invalid("malformed alarm payload")
		}

		return h.commands.ActivateAlarm(ctx, req.TargetDeviceID, models.AlarmPayload{
			DurationSeconds: req.DurationSeconds,
			DeviceAlias:     req.DeviceAlias,
		})
	case EventSendMessage, EventSendBroadcastMessage:
		var req messageRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return invalid("malformed message payload")
		}

		msg := models.MessagePayload{Text: req.DataMessage.Message, Sender: req.DataMessage.Sender}
		if msg.Sender == "" && c.claims != nil {
			msg.Sender = c.claims.Username
		}

		if env.Event == EventSendBroadcastMessage {
			return h.commands.BroadcastMessage(ctx, msg)
		}

		return h.commands.SendMessage(ctx, req.TargetDeviceID, msg)
	case EventCheckForAllUpdate:
		return h.commands.CheckForAllUpdates(ctx)
	case EventSetMaintenanceMode:
		var req maintenanceRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return invalid("malformed maintenance payload")
		}

		if req.UntilTimestamp <= 0 {
			return invalid("untilTimestamp is required")
		}

		return h.commands.SetMaintenanceMode(ctx, time.UnixMilli(req.UntilTimestamp))
	default:
		return invalid("unknown event %q", env.Event)
	}
}
