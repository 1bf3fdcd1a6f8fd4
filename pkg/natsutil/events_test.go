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

package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  "guardpost.alarms",
			want:     []string{"guardpost.alarms"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"guardpost.*"},
			subject:  "guardpost.alarms",
			want:     []string{"guardpost.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"guardpost.>"},
			subject:  "guardpost.devices.*",
			want:     []string{"guardpost.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"guardpost.devices.connected"},
			subject:  "guardpost.devices.*",
			want:     []string{"guardpost.devices.connected", "guardpost.devices.*"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, got)
		})
	}
}

func runServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not start")
	}

	t.Cleanup(ns.Shutdown)

	return ns
}

func testConfig(url string) *models.NATSConfig {
	return &models.NATSConfig{
		URL:           url,
		Stream:        "GUARDPOST_TEST",
		SubjectPrefix: "guardpost",
		Source:        "guardpost/test",
	}
}

func lastEvent(t *testing.T, ctx context.Context, js jetstream.JetStream, subject string) models.CloudEvent {
	t.Helper()

	stream, err := js.Stream(ctx, "GUARDPOST_TEST")
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, subject)
	require.NoError(t, err)

	var ev models.CloudEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))

	return ev
}

func TestPublishEvents(t *testing.T) {
	ns := runServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pub, nc, err := ConnectWithEventPublisher(ctx, testConfig(ns.ClientURL()), logger.NewTestLogger())
	require.NoError(t, err)
	defer nc.Close()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, pub.PublishTransition(ctx, models.PresenceTransition{
		DeviceID: "dev-1",
		Kind:     models.TransitionDisconnected,
		Record:   models.PresenceRecord{DeviceID: "dev-1", Alias: "Lobby"},
		At:       at,
	}))

	pub.RecordAlarm("dev-1", models.AlarmPayload{DurationSeconds: 30}, at)
	pub.InventoryChanged(ctx, models.InventoryChangedData{Marker: "v9", Devices: 12, Timestamp: at})
	require.NoError(t, pub.Flush(ctx))

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ev := lastEvent(t, ctx, js, "guardpost.devices.disconnected")
	assert.Equal(t, "1.0", ev.SpecVersion)
	assert.Equal(t, "guardpost/test", ev.Source)
	assert.Equal(t, "com.carverauto.guardpost.device.disconnected", ev.Type)
	assert.NotEmpty(t, ev.ID)

	ev = lastEvent(t, ctx, js, "guardpost.alarms")
	assert.Equal(t, "com.carverauto.guardpost.alarm.activated", ev.Type)

	data, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "dev-1", data["device_id"])
	assert.InDelta(t, 30, data["duration_seconds"], 0)

	ev = lastEvent(t, ctx, js, "guardpost.inventory.changed")
	assert.Equal(t, "com.carverauto.guardpost.inventory.changed", ev.Type)
}

func TestEnsureStreamWidensExistingStream(t *testing.T) {
	ns := runServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nc, err := Connect(testConfig(ns.ClientURL()), logger.NewTestLogger())
	require.NoError(t, err)
	defer nc.Close()

	js, err := NewJetStream(nc, logger.NewTestLogger())
	require.NoError(t, err)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{Name: "GUARDPOST_TEST", Subjects: []string{"guardpost.alarms"}})
	require.NoError(t, err)

	require.NoError(t, EnsureStream(ctx, js, "GUARDPOST_TEST", []string{"guardpost.alarms", "guardpost.devices.*"}))

	stream, err := js.Stream(ctx, "GUARDPOST_TEST")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"guardpost.alarms", "guardpost.devices.*"}, stream.CachedInfo().Config.Subjects)
}

func TestTLSConfigRequiresMaterial(t *testing.T) {
	_, err := TLSConfig(&models.NATSTLSConfig{CAFile: "/tmp/ca.pem"})
	require.ErrorIs(t, err, ErrTLSIncomplete)

	_, err = Connect(&models.NATSConfig{URL: "nats://127.0.0.1:1", TLS: &models.NATSTLSConfig{}}, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrTLSIncomplete)
}
