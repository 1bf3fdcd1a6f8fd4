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

package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/identity"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
	"github.com/carverauto/guardpost/pkg/presence"
	"github.com/carverauto/guardpost/pkg/session"
)

var now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	source   *identity.MockSource
	cache    *identity.Cache
	tracker  *presence.Tracker
	recorder *MockTelemetryRecorder
	events   []models.PresenceTransition
}

func newFixture(t *testing.T, ctrl *gomock.Controller) *fixture {
	t.Helper()

	f := &fixture{}

	f.source = identity.NewMockSource(ctrl)
	f.source.EXPECT().FetchRows(gomock.Any()).Return([]models.DeviceIdentity{
		{RowIndex: 2, NetworkAddress: "10.0.0.5", Attributes: models.IdentityAttributes{Alias: "Front desk"}},
		{RowIndex: 3, NetworkAddress: "10.0.0.6", ReportedID: "dev-2", Attributes: models.IdentityAttributes{Alias: "Dock"}},
	}, nil)

	f.cache = identity.NewCache(f.source, logger.NewTestLogger())
	require.NoError(t, f.cache.Reload(context.Background()))

	f.tracker = presence.NewTracker(5, logger.NewTestLogger())
	f.tracker.Subscribe(presence.ObserverFunc(func(tr models.PresenceTransition) {
		f.events = append(f.events, tr)
	}))

	mockClock := clock.NewMockClock(ctrl)
	mockClock.EXPECT().Now().Return(now).AnyTimes()

	f.recorder = NewMockTelemetryRecorder(ctrl)
	f.svc = NewService(f.cache, f.tracker, f.recorder, logger.NewTestLogger(),
		WithClock(mockClock), WithLowBatteryThreshold(20))

	return f
}

func newSession(ctrl *gomock.Controller, id string) *session.MockSession {
	s := session.NewMockSession(ctrl)
	s.EXPECT().ID().Return(id).AnyTimes()
	s.EXPECT().RemoteAddr().Return("10.0.0.5:41000").AnyTimes()

	return s
}

func TestRegisterReconcilesAbsentID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.source.EXPECT().WriteReportedID(gomock.Any(), 2, "dev-1").Return(nil)

	sess := newSession(ctrl, "s1")
	require.NoError(t, f.svc.Register(context.Background(), sess, models.Registration{
		NetworkAddress: "10.0.0.5",
		ReportedID:     "dev-1",
	}))

	ident, ok := f.cache.LookupByAddress("10.0.0.5")
	require.True(t, ok)
	assert.Equal(t, "dev-1", ident.ReportedID)

	bound, ok := f.svc.Lookup("dev-1")
	require.True(t, ok)
	assert.Same(t, sess, bound)

	rec, ok := f.tracker.Get("dev-1")
	require.True(t, ok)
	assert.True(t, rec.Online)
	assert.Equal(t, "Front desk", rec.Alias)

	require.Len(t, f.events, 1)
	assert.Equal(t, models.TransitionConnected, f.events[0].Kind)
}

func TestRegisterMatchingIDSkipsWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.source.EXPECT().WriteReportedID(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	require.NoError(t, f.svc.Register(context.Background(), newSession(ctrl, "s1"), models.Registration{
		NetworkAddress: "10.0.0.6",
		ReportedID:     "dev-2",
	}))
}

func TestRegisterRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     models.Registration
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name:    "missing address",
			req:     models.Registration{ReportedID: "dev-1"},
			wantErr: models.ErrValidation,
		},
		{
			name:    "missing id",
			req:     models.Registration{NetworkAddress: "10.0.0.5", ReportedID: "  "},
			wantErr: models.ErrValidation,
		},
		{
			name:    "unknown hardware",
			req:     models.Registration{NetworkAddress: "172.16.0.9", ReportedID: "dev-x"},
			wantErr: models.ErrUnregisteredDevice,
		},
		{
			name: "write-back failure",
			req:  models.Registration{NetworkAddress: "10.0.0.5", ReportedID: "dev-1"},
			setup: func(f *fixture) {
				f.source.EXPECT().WriteReportedID(gomock.Any(), 2, "dev-1").Return(errors.New("quota exceeded"))
			},
			wantErr: models.ErrReconciliationWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			f := newFixture(t, ctrl)
			if tt.setup != nil {
				tt.setup(f)
			}

			err := f.svc.Register(context.Background(), newSession(ctrl, "s1"), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Empty(t, f.svc.Sessions())
			assert.Empty(t, f.tracker.Snapshot())
			assert.Empty(t, f.events)
		})
	}
}

func TestRegisterSupersedes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	first := newSession(ctrl, "s1")
	second := newSession(ctrl, "s2")
	req := models.Registration{NetworkAddress: "10.0.0.6", ReportedID: "dev-2"}

	require.NoError(t, f.svc.Register(context.Background(), first, req))
	require.NoError(t, f.svc.Register(context.Background(), second, req))

	sessions := f.svc.Sessions()
	require.Len(t, sessions, 1)
	assert.Same(t, second, sessions[0].Session)

	f.svc.Disconnect(first, "dev-2")

	_, ok := f.svc.Lookup("dev-2")
	assert.True(t, ok, "closing the superseded session must not unbind the new one")

	rec, _ := f.tracker.Get("dev-2")
	assert.True(t, rec.Online)

	f.svc.Disconnect(second, "dev-2")

	_, ok = f.svc.Lookup("dev-2")
	assert.False(t, ok)

	rec, _ = f.tracker.Get("dev-2")
	assert.False(t, rec.Online)
	assert.Equal(t, models.TransitionDisconnected, f.events[len(f.events)-1].Kind)
}

func TestDisconnectWithoutRegistration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	f.svc.Disconnect(newSession(ctrl, "s1"), "")
	f.svc.Disconnect(newSession(ctrl, "s2"), "dev-9")

	assert.Empty(t, f.events)
	assert.Empty(t, f.tracker.Snapshot())
}

func TestHeartbeat(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	sess := newSession(ctrl, "s1")
	require.NoError(t, f.svc.Register(context.Background(), sess, models.Registration{
		NetworkAddress: "10.0.0.6", ReportedID: "dev-2",
	}))

	t.Run("healthy battery", func(t *testing.T) {
		f.recorder.EXPECT().RecordHeartbeat("dev-2", 80, false, now)

		ack, err := f.svc.Heartbeat(context.Background(), sess, models.Heartbeat{DeviceID: "dev-2", Battery: 80})
		require.NoError(t, err)
		assert.Equal(t, models.StatusOK, ack.Status)
		assert.Equal(t, now.UnixMilli(), ack.ServerTime)

		rec, _ := f.tracker.Get("dev-2")
		assert.Equal(t, 80, rec.Battery)
	})

	t.Run("low battery not charging raises alert", func(t *testing.T) {
		f.recorder.EXPECT().RecordHeartbeat("dev-2", 15, false, now)
		f.recorder.EXPECT().RecordBatteryAlert("dev-2", 15, false, now)

		_, err := f.svc.Heartbeat(context.Background(), sess, models.Heartbeat{DeviceID: "dev-2", Battery: 15})
		require.NoError(t, err)
	})

	t.Run("low battery while charging is fine", func(t *testing.T) {
		f.recorder.EXPECT().RecordHeartbeat("dev-2", 15, true, now)

		_, err := f.svc.Heartbeat(context.Background(), sess, models.Heartbeat{DeviceID: "dev-2", Battery: 15, Charging: true})
		require.NoError(t, err)
	})

	t.Run("unregistered session", func(t *testing.T) {
		_, err := f.svc.Heartbeat(context.Background(), newSession(ctrl, "other"), models.Heartbeat{DeviceID: "dev-2", Battery: 50})
		require.ErrorIs(t, err, models.ErrNotConnected)

		_, err = f.svc.Heartbeat(context.Background(), sess, models.Heartbeat{DeviceID: "dev-7", Battery: 50})
		require.ErrorIs(t, err, models.ErrNotConnected)
		_, ok := f.tracker.Get("dev-7")
		assert.False(t, ok)
	})

	t.Run("invalid samples", func(t *testing.T) {
		_, err := f.svc.Heartbeat(context.Background(), sess, models.Heartbeat{Battery: 50})
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.svc.Heartbeat(context.Background(), sess, models.Heartbeat{DeviceID: "dev-2", Battery: 101})
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestDevicesView(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	require.NoError(t, f.svc.Register(context.Background(), newSession(ctrl, "s1"), models.Registration{
		NetworkAddress: "10.0.0.6", ReportedID: "dev-2",
	}))

	views := f.svc.Devices()
	require.Len(t, views, 2)

	assert.Empty(t, views[0].DeviceID)
	assert.Nil(t, views[0].Presence)
	assert.False(t, views[0].Connected)

	assert.Equal(t, "dev-2", views[1].DeviceID)
	assert.True(t, views[1].Connected)
	require.NotNil(t, views[1].Presence)
	require.NotNil(t, views[1].TimeSinceLastSeen)
	assert.Equal(t, time.Duration(0), time.Duration(*views[1].TimeSinceLastSeen))

	one, ok := f.svc.Device("dev-2")
	require.True(t, ok)
	assert.Equal(t, "Dock", one.Attributes.Alias)

	_, ok = f.svc.Device("dev-404")
	assert.False(t, ok)
}

func TestResyncPrunesOfflineOrphans(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t, ctrl)
	sess := newSession(ctrl, "s1")
	require.NoError(t, f.svc.Register(context.Background(), sess, models.Registration{
		NetworkAddress: "10.0.0.6", ReportedID: "dev-2",
	}))
	f.svc.Disconnect(sess, "dev-2")

	f.source.EXPECT().FetchRows(gomock.Any()).Return([]models.DeviceIdentity{
		{RowIndex: 2, NetworkAddress: "10.0.0.5"},
	}, nil)
	require.NoError(t, f.cache.Reload(context.Background()))

	assert.Equal(t, []string{"dev-2"}, f.svc.Resync())
	assert.Empty(t, f.tracker.Snapshot())
}
