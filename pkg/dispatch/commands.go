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

package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/guardpost/pkg/models"
)

func (d *Dispatcher) ActivateAlarm(ctx context.Context, targetID string, alarm models.AlarmPayload) models.CommandOutcome {
	if alarm.DurationSeconds < 0 {
		return errorOutcome("%v: alarm duration must not be negative", models.ErrValidation)
	}

	return d.SendCommand(ctx, targetID, models.CommandActivateAlarm, alarm)
}

func (d *Dispatcher) SendMessage(ctx context.Context, targetID string, msg models.MessagePayload) models.CommandOutcome {
	if strings.TrimSpace(msg.Text) == "" {
		return errorOutcome("%v: message text is required", models.ErrValidation)
	}

	return d.SendCommand(ctx, targetID, models.CommandSendMessage, msg)
}

func (d *Dispatcher) Ping(ctx context.Context, targetID string) models.CommandOutcome {
	return d.SendCommand(ctx, targetID, models.CommandPing, struct{}{})
}

func (d *Dispatcher) GetDeviceInfo(ctx context.Context, targetID string) models.CommandOutcome {
	return d.SendCommand(ctx, targetID, models.CommandGetDeviceInfo, struct{}{})
}

func (d *Dispatcher) CheckForUpdate(ctx context.Context, targetID string) models.CommandOutcome {
	return d.SendCommand(ctx, targetID, models.CommandCheckForUpdate, struct{}{})
}

func (d *Dispatcher) BroadcastMessage(ctx context.Context, msg models.MessagePayload) models.CommandOutcome {
	if strings.TrimSpace(msg.Text) == "" {
		return errorOutcome("%v: message text is required", models.ErrValidation)
	}

	return d.SendCommandToAll(ctx, models.CommandSendMessage, msg)
}

func (d *Dispatcher) CheckForAllUpdates(ctx context.Context) models.CommandOutcome {
	return d.SendCommandToAll(ctx, models.CommandCheckForUpdate, struct{}{})
}

// SetMaintenanceMode asks every connected device to stay in maintenance until the given
// instant, which must lie in (now, now+window].
func (d *Dispatcher) SetMaintenanceMode(ctx context.Context, until time.Time) models.CommandOutcome {
	if err := d.ValidateMaintenanceUntil(until); err != nil {
		return errorOutcome("%v", err)
	}

	return d.SendCommandToAll(ctx, models.CommandMaintenanceMode, models.MaintenancePayload{
		UntilTimestamp: until.UnixMilli(),
	})
}

// ValidateMaintenanceUntil checks a maintenance deadline without contacting any device.
func (d *Dispatcher) ValidateMaintenanceUntil(until time.Time) error {
	now := d.clock.Now()

	if until.IsZero() {
		return fmt.Errorf("%w: maintenance end time is required", models.ErrValidation)
	}

	if !until.After(now) {
		return fmt.Errorf("%w: maintenance end time must be in the future", models.ErrValidation)
	}

	if until.After(now.Add(d.maxMaintenance)) {
		return fmt.Errorf("%w: maintenance end time must be within %s", models.ErrValidation, d.maxMaintenance)
	}

	return nil
}
