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

package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/guardpost/pkg/clock"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

var (
	errUnavailable = errors.New("503 from sheets")
	fixedNow       = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

type mocks struct {
	source   *MockMarkerSource
	cache    *MockReloader
	syncer   *MockMetadataSyncer
	notifier *MockNotifier
	clock    *clock.MockClock
}

func newLoop(ctrl *gomock.Controller) (*Loop, *mocks) {
	m := &mocks{
		source:   NewMockMarkerSource(ctrl),
		cache:    NewMockReloader(ctrl),
		syncer:   NewMockMetadataSyncer(ctrl),
		notifier: NewMockNotifier(ctrl),
		clock:    clock.NewMockClock(ctrl),
	}
	m.clock.EXPECT().Now().Return(fixedNow).AnyTimes()

	l := NewLoop(m.source, m.cache, m.syncer, m.clock, 10*time.Second, logger.NewTestLogger(), m.notifier)

	return l, m
}

func TestMarkerChanged(t *testing.T) {
	t.Parallel()

	assert.False(t, MarkerChanged("2026-03-01T10:00", "2026-03-01T10:00"))
	assert.True(t, MarkerChanged("2026-03-01T10:00", "2026-03-01T10:05"))
	assert.True(t, MarkerChanged("", "2026-03-01T10:00"))
}

func TestTick(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged marker does nothing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)
		m.source.EXPECT().FetchMarker(gomock.Any()).Return("v1", nil)

		l.setMarker("v1")
		require.NoError(t, l.Tick(ctx))
	})

	t.Run("changed marker reloads, resyncs and notifies", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)

		gomock.InOrder(
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v2", nil),
			m.cache.EXPECT().Reload(gomock.Any()).Return(nil),
			m.syncer.EXPECT().Resync().Return([]string{"dev-9"}),
			m.cache.EXPECT().Len().Return(42),
			m.notifier.EXPECT().InventoryChanged(gomock.Any(), models.InventoryChangedData{
				Marker:    "v2",
				Devices:   42,
				Pruned:    []string{"dev-9"},
				Timestamp: fixedNow,
			}),
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v2", nil),
		)

		l.setMarker("v1")
		require.NoError(t, l.Tick(ctx))
		require.NoError(t, l.Tick(ctx), "second tick sees the same marker")
	})

	t.Run("marker fetch failure is reported and loop can continue", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)
		m.source.EXPECT().FetchMarker(gomock.Any()).Return("", errUnavailable)

		err := l.Tick(ctx)
		require.ErrorIs(t, err, models.ErrSourceFetch)
		require.ErrorIs(t, err, errUnavailable)
	})

	t.Run("failed reload is retried next tick", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)

		gomock.InOrder(
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v2", nil),
			m.cache.EXPECT().Reload(gomock.Any()).Return(errUnavailable),
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v2", nil),
			m.cache.EXPECT().Reload(gomock.Any()).Return(nil),
			m.syncer.EXPECT().Resync().Return(nil),
			m.cache.EXPECT().Len().Return(3),
			m.notifier.EXPECT().InventoryChanged(gomock.Any(), gomock.Any()),
		)

		require.ErrorIs(t, l.Tick(ctx), errUnavailable)
		require.NoError(t, l.Tick(ctx))
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("marker is read before the rows", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)

		gomock.InOrder(
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v1", nil),
			m.cache.EXPECT().Reload(gomock.Any()).Return(nil),
			m.cache.EXPECT().Len().Return(12),
		)

		require.NoError(t, l.Load(ctx))
		assert.Equal(t, "v1", l.marker())
	})

	t.Run("edit during the load is picked up by the first tick", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)

		gomock.InOrder(
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v1", nil),
			m.cache.EXPECT().Reload(gomock.Any()).Return(nil),
			m.cache.EXPECT().Len().Return(12),
			m.source.EXPECT().FetchMarker(gomock.Any()).Return("v2", nil),
			m.cache.EXPECT().Reload(gomock.Any()).Return(nil),
			m.syncer.EXPECT().Resync().Return(nil),
			m.cache.EXPECT().Len().Return(13),
			m.notifier.EXPECT().InventoryChanged(gomock.Any(), gomock.Any()),
		)

		require.NoError(t, l.Load(ctx))
		require.NoError(t, l.Tick(ctx))
		assert.Equal(t, "v2", l.marker())
	})

	t.Run("unreadable marker still loads", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)

		m.source.EXPECT().FetchMarker(gomock.Any()).Return("", errUnavailable)
		m.cache.EXPECT().Reload(gomock.Any()).Return(nil)
		m.cache.EXPECT().Len().Return(12)

		require.NoError(t, l.Load(ctx))
		assert.Empty(t, l.marker())
	})

	t.Run("reload failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		l, m := newLoop(ctrl)

		m.source.EXPECT().FetchMarker(gomock.Any()).Return("v1", nil)
		m.cache.EXPECT().Reload(gomock.Any()).Return(errUnavailable)

		require.ErrorIs(t, l.Load(ctx), errUnavailable)
		assert.Empty(t, l.marker())
	})
}

func TestForceReload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	l, m := newLoop(ctrl)

	m.source.EXPECT().FetchMarker(gomock.Any()).Return("", errUnavailable)
	m.cache.EXPECT().Reload(gomock.Any()).Return(nil)
	m.syncer.EXPECT().Resync().Return(nil)
	m.cache.EXPECT().Len().Return(1)
	m.notifier.EXPECT().InventoryChanged(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, change models.InventoryChangedData) {
			assert.True(t, change.Forced)
		})

	require.NoError(t, l.ForceReload(context.Background()))
}

func TestStartSurvivesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	l, m := newLoop(ctrl)

	ticks := make(chan time.Time)
	ticker := clock.NewMockTicker(ctrl)
	ticker.EXPECT().Chan().Return((<-chan time.Time)(ticks)).AnyTimes()
	ticker.EXPECT().Stop()
	m.clock.EXPECT().Ticker(10 * time.Second).Return(ticker)

	fetched := make(chan struct{}, 2)
	m.source.EXPECT().FetchMarker(gomock.Any()).DoAndReturn(func(context.Context) (string, error) {
		fetched <- struct{}{}
		return "", errUnavailable
	}).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		l.Start(ctx)
		close(done)
	}()

	ticks <- fixedNow
	<-fetched
	ticks <- fixedNow
	<-fetched

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
