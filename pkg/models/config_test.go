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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", input: `"10s"`, want: 10 * time.Second},
		{name: "nanoseconds", input: `1500`, want: 1500 * time.Nanosecond},
		{name: "garbage", input: `"ten seconds"`, wantErr: true},
		{name: "wrong type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var d Duration

			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}
}

func TestDurationMarshal(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(b))
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config

	require.NoError(t, json.Unmarshal([]byte(`{
		"auth": {"jwt_secret": "s3cret"},
		"inventory": {"spreadsheet_id": "sheet", "poll_interval": "30s"}
	}`), &cfg))

	cfg.ApplyDefaults()

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Inventory.PollInterval))
	assert.Equal(t, "RF!A2:K351", cfg.Inventory.DataRange)
	assert.Equal(t, "K", cfg.Inventory.Columns.ReportedID)
	assert.Equal(t, DefaultCommandTimeout, time.Duration(cfg.Commands.Timeout))
	assert.Equal(t, DefaultMaintenanceMaxAhead, time.Duration(cfg.Commands.MaintenanceMaxAhead))
	assert.Equal(t, DefaultBatteryDelta, cfg.Presence.BatteryDelta)
	assert.Equal(t, DefaultHeartbeatSampleEvery, cfg.Metrics.HeartbeatSampleEvery)
	assert.Equal(t, DefaultEventStream, cfg.NATS.Stream)
	assert.False(t, cfg.NATS.Enabled())
	require.NotNil(t, cfg.Logging)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }},
		{name: "missing spreadsheet", mutate: func(c *Config) { c.Inventory.SpreadsheetID = "" }},
		{name: "battery delta too large", mutate: func(c *Config) { c.Presence.BatteryDelta = 150 }},
		{name: "database without host", mutate: func(c *Config) {
			c.Metrics.Database = &DatabaseConfig{Database: "guardpost"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Config{
				Auth:      AuthConfig{JWTSecret: "s3cret"},
				Inventory: InventoryConfig{SpreadsheetID: "sheet"},
			}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			assert.ErrorIs(t, cfg.Validate(), ErrValidation)
		})
	}
}
