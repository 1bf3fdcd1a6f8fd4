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
	"fmt"
	"time"

	"github.com/carverauto/guardpost/pkg/logger"
)

// Duration wraps time.Duration so config files can say "10s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	DefaultListenAddr           = ":3000"
	DefaultCommandTimeout       = 5 * time.Second
	DefaultMaintenanceMaxAhead  = 30 * 24 * time.Hour
	DefaultPollInterval         = 10 * time.Second
	DefaultSourceTimeout        = 15 * time.Second
	DefaultOfflineAfter         = 2 * time.Minute
	DefaultSweepInterval        = 2 * time.Minute
	DefaultBatteryDelta         = 5
	DefaultLowBatteryThreshold  = 20
	DefaultMetricsQueueSize     = 1024
	DefaultHeartbeatSampleEvery = 10
	DefaultRetention            = 90 * 24 * time.Hour
	DefaultRetentionHour        = 3
	DefaultEventStream          = "GUARDPOST_EVENTS"
	DefaultSubjectPrefix        = "guardpost"
)

// Config is the guardpost process configuration.
type Config struct {
	ListenAddr     string          `json:"listen_addr"`
	AllowedOrigins []string        `json:"allowed_origins"`
	Logging        *logger.Config  `json:"logging"`
	Auth           AuthConfig      `json:"auth"`
	Inventory      InventoryConfig `json:"inventory"`
	Commands       CommandConfig   `json:"commands"`
	Presence       PresenceConfig  `json:"presence"`
	Metrics        MetricsConfig   `json:"metrics"`
	NATS           NATSConfig      `json:"nats"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// ColumnLayout names the sheet column letter holding each identity field.
type ColumnLayout struct {
	NetworkAddress string `json:"network_address"`
	ReportedID     string `json:"reported_id"`
	AssetTag       string `json:"asset_tag"`
	Model          string `json:"model"`
	Owner          string `json:"owner"`
	Contact        string `json:"contact"`
	Alias          string `json:"alias"`
	MACAddress     string `json:"mac_address"`
}

type InventoryConfig struct {
	SpreadsheetID   string       `json:"spreadsheet_id"`
	CredentialsFile string       `json:"credentials_file"`
	Endpoint        string       `json:"endpoint,omitempty"`
	DataRange       string       `json:"data_range"`
	MarkerRange     string       `json:"marker_range"`
	Columns         ColumnLayout `json:"columns"`
	PollInterval    Duration     `json:"poll_interval"`
	RequestTimeout  Duration     `json:"request_timeout"`
}

type CommandConfig struct {
	Timeout             Duration `json:"timeout"`
	MaintenanceMaxAhead Duration `json:"maintenance_max_ahead"`
}

type PresenceConfig struct {
	OfflineAfter        Duration `json:"offline_after"`
	SweepInterval       Duration `json:"sweep_interval"`
	BatteryDelta        int      `json:"battery_delta"`
	LowBatteryThreshold int      `json:"low_battery_threshold"`
}

// DatabaseConfig describes the Postgres cluster used for fleet metrics.
type DatabaseConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	Database        string   `json:"database"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	SSLMode         string   `json:"ssl_mode"`
	ApplicationName string   `json:"application_name"`
	MaxConnections  int32    `json:"max_connections"`
	MinConnections  int32    `json:"min_connections"`
	ConnectTimeout  Duration `json:"connect_timeout"`
}

type MetricsConfig struct {
	Database             *DatabaseConfig `json:"database,omitempty"`
	QueueSize            int             `json:"queue_size"`
	HeartbeatSampleEvery int             `json:"heartbeat_sample_every"`
	Retention            Duration        `json:"retention"`
	RetentionHour        int             `json:"retention_hour"`
}

type NATSConfig struct {
	URL           string         `json:"url"`
	Stream        string         `json:"stream"`
	SubjectPrefix string         `json:"subject_prefix"`
	Source        string         `json:"source"`
	TLS           *NATSTLSConfig `json:"tls,omitempty"`
}

// NATSTLSConfig enables mutual TLS towards the NATS cluster.
type NATSTLSConfig struct {
	CAFile     string `json:"ca_file"`
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	ServerName string `json:"server_name,omitempty"`
}

// Enabled reports whether events should be published at all.
func (n *NATSConfig) Enabled() bool {
	return n.URL != ""
}

// ApplyDefaults fills every zero value with its documented default.
func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	inv := &c.Inventory
	if inv.DataRange == "" {
		inv.DataRange = "RF!A2:K351"
	}

	if inv.MarkerRange == "" {
		inv.MarkerRange = "Metadatos!A1"
	}

	setDefault(&inv.Columns.NetworkAddress, "I")
	setDefault(&inv.Columns.ReportedID, "K")
	setDefault(&inv.Columns.AssetTag, "C")
	setDefault(&inv.Columns.Model, "D")
	setDefault(&inv.Columns.Owner, "E")
	setDefault(&inv.Columns.Contact, "F")
	setDefault(&inv.Columns.Alias, "G")
	setDefault(&inv.Columns.MACAddress, "H")
	setDefaultDuration(&inv.PollInterval, DefaultPollInterval)
	setDefaultDuration(&inv.RequestTimeout, DefaultSourceTimeout)

	setDefaultDuration(&c.Commands.Timeout, DefaultCommandTimeout)
	setDefaultDuration(&c.Commands.MaintenanceMaxAhead, DefaultMaintenanceMaxAhead)

	setDefaultDuration(&c.Presence.OfflineAfter, DefaultOfflineAfter)
	setDefaultDuration(&c.Presence.SweepInterval, DefaultSweepInterval)

	if c.Presence.BatteryDelta <= 0 {
		c.Presence.BatteryDelta = DefaultBatteryDelta
	}

	if c.Presence.LowBatteryThreshold <= 0 {
		c.Presence.LowBatteryThreshold = DefaultLowBatteryThreshold
	}

	if c.Metrics.QueueSize <= 0 {
		c.Metrics.QueueSize = DefaultMetricsQueueSize
	}

	if c.Metrics.HeartbeatSampleEvery <= 0 {
		c.Metrics.HeartbeatSampleEvery = DefaultHeartbeatSampleEvery
	}

	setDefaultDuration(&c.Metrics.Retention, DefaultRetention)

	if c.Metrics.RetentionHour <= 0 || c.Metrics.RetentionHour > 23 {
		c.Metrics.RetentionHour = DefaultRetentionHour
	}

	if c.NATS.Stream == "" {
		c.NATS.Stream = DefaultEventStream
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = DefaultSubjectPrefix
	}

	if c.NATS.Source == "" {
		c.NATS.Source = "guardpost"
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", ErrValidation)
	}

	if c.Inventory.SpreadsheetID == "" {
		return fmt.Errorf("%w: inventory.spreadsheet_id is required", ErrValidation)
	}

	if c.Inventory.PollInterval <= 0 {
		return fmt.Errorf("%w: inventory.poll_interval must be positive", ErrValidation)
	}

	if c.Commands.Timeout <= 0 {
		return fmt.Errorf("%w: commands.timeout must be positive", ErrValidation)
	}

	if c.Presence.BatteryDelta > 100 {
		return fmt.Errorf("%w: presence.battery_delta must be at most 100", ErrValidation)
	}

	if db := c.Metrics.Database; db != nil && (db.Host == "" || db.Database == "") {
		return fmt.Errorf("%w: metrics.database needs host and database", ErrValidation)
	}

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setDefaultDuration(field *Duration, value time.Duration) {
	if *field <= 0 {
		*field = Duration(value)
	}
}
