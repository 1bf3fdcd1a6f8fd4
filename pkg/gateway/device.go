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
	"strings"

	"github.com/carverauto/guardpost/pkg/models"
)

// handleDevice runs on the read loop, so frames from one device are applied in order.
func (h *Hub) handleDevice(ctx context.Context, c *Client, env *Envelope) {
	switch env.Event {
	case EventRegisterDevice:
		c.reply(env, h.register(ctx, c, env.Payload))
	case EventHeartbeat:
		ack, err := h.heartbeat(ctx, c, env.Payload)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Heartbeat rejected")
			c.reply(env, rejection{Status: models.StatusError, Reason: err.Error()})

			return
		}

		c.reply(env, ack)
	default:
		c.logger.Debug().Str("event", env.Event).Msg("Ignoring unknown device event")
	}
}

func (h *Hub) register(ctx context.Context, c *Client, payload json.RawMessage) models.RegistrationAck {
	var req models.Registration
	if err := json.Unmarshal(payload, &req); err != nil {
		return models.RegistrationAck{
			Status: models.StatusError,
			Reason: fmt.Sprintf("%v: malformed registration: %v", models.ErrValidation, err),
		}
	}

	if err := h.fleet.Register(ctx, c, req); err != nil {
		return models.RegistrationAck{Status: models.StatusError, Reason: err.Error()}
	}

	// A connection that re-registers under another id gives up its previous binding.
	newID := strings.TrimSpace(req.ReportedID)
	if prev := c.DeviceID(); prev != "" && prev != newID {
		h.fleet.Disconnect(c, prev)
	}

	c.setDeviceID(newID)

	return models.RegistrationAck{Status: models.StatusOK}
}

func (h *Hub) heartbeat(ctx context.Context, c *Client, payload json.RawMessage) (models.HeartbeatAck, error) {
	var hb models.Heartbeat
	if err := json.Unmarshal(payload, &hb); err != nil {
		return models.HeartbeatAck{}, fmt.Errorf("%w: malformed heartbeat: %w", models.ErrValidation, err)
	}

	return h.fleet.Heartbeat(ctx, c, hb)
}
