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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/guardpost/pkg/auth"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

const testSecret = "api-test-secret"

type fakeDevices map[string]models.DeviceView

func (f fakeDevices) Devices() []models.DeviceView {
	out := make([]models.DeviceView, 0, len(f))
	for _, v := range f {
		out = append(out, v)
	}

	return out
}

func (f fakeDevices) Device(id string) (models.DeviceView, bool) {
	v, ok := f[id]
	return v, ok
}

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) ForceReload(context.Context) error {
	f.calls++
	return f.err
}

type fakeSockets struct{}

func (fakeSockets) HandleDevice(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func (fakeSockets) HandleOperator(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func (fakeSockets) Count() (devices, operators int) { return 3, 1 }

type fakeIdentities int

func (f fakeIdentities) Len() int { return int(f) }

func newTestServer(reloader *fakeReloader) *Server {
	devices := fakeDevices{
		"dev-1": {DeviceID: "dev-1", NetworkAddress: "10.0.0.5", Connected: true},
	}

	return NewServer(auth.NewVerifier(testSecret), logger.NewTestLogger(),
		WithDevices(devices),
		WithReloader(reloader),
		WithSockets(fakeSockets{}),
		WithIdentities(fakeIdentities(350)),
		WithAllowedOrigins([]string{"http://ops.example"}),
	)
}

func token(t *testing.T, role auth.Role) string {
	t.Helper()

	tok, err := auth.NewVerifier(testSecret).GenerateToken("u-1", "alice", role, time.Hour)
	require.NoError(t, err)

	return tok
}

func do(t *testing.T, s *Server, method, path, tok string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, http.NoBody)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	return rr
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestServer(&fakeReloader{}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))

	assert.Equal(t, healthResponse{Status: "ok", Identities: 350, DevicesConnected: 3, Operators: 1, Version: "dev"}, body)
}

func TestDevicesRequireToken(t *testing.T) {
	rr := do(t, newTestServer(&fakeReloader{}), http.MethodGet, "/api/devices", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.NotEmpty(t, body.Message)
}

func TestDevices(t *testing.T) {
	s := newTestServer(&fakeReloader{})
	tok := token(t, auth.RoleUser)

	rr := do(t, s, http.MethodGet, "/api/devices", tok)
	require.Equal(t, http.StatusOK, rr.Code)

	var list []models.DeviceView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "dev-1", list[0].DeviceID)

	rr = do(t, s, http.MethodGet, "/api/devices/dev-1", tok)
	require.Equal(t, http.StatusOK, rr.Code)

	var one models.DeviceView
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&one))
	assert.Equal(t, "10.0.0.5", one.NetworkAddress)
	assert.True(t, one.Connected)

	rr = do(t, s, http.MethodGet, "/api/devices/ghost", tok)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReload(t *testing.T) {
	tests := []struct {
		name       string
		role       auth.Role
		reloadErr  error
		wantStatus int
		wantCalls  int
	}{
		{"admin", auth.RoleAdmin, nil, http.StatusOK, 1},
		{"user forbidden", auth.RoleUser, nil, http.StatusForbidden, 0},
		{"source failure", auth.RoleAdmin, errors.New("sheets unavailable"), http.StatusBadGateway, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reloader := &fakeReloader{err: tt.reloadErr}

			rr := do(t, newTestServer(reloader), http.MethodPost, "/api/inventory/reload", token(t, tt.role))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalls, reloader.calls)
		})
	}
}

func TestReloadRejectsGet(t *testing.T) {
	rr := do(t, newTestServer(&fakeReloader{}), http.MethodGet, "/api/inventory/reload", token(t, auth.RoleAdmin))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestWebsocketRoutesMounted(t *testing.T) {
	s := newTestServer(&fakeReloader{})

	assert.Equal(t, http.StatusTeapot, do(t, s, http.MethodGet, "/ws/device", "").Code)
	assert.Equal(t, http.StatusTeapot, do(t, s, http.MethodGet, "/ws/operator", "").Code)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(&fakeReloader{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
