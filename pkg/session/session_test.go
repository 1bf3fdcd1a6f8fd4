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

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestBindAndLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()
	s := NewMockSession(ctrl)

	assert.Nil(t, r.Bind("dev-1", s))

	got, ok := r.Lookup("dev-1")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Lookup("dev-2")
	assert.False(t, ok)
}

func TestSupersession(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()
	first := NewMockSession(ctrl)
	second := NewMockSession(ctrl)

	r.Bind("dev-1", first)
	prev := r.Bind("dev-1", second)

	assert.Same(t, first, prev)
	assert.Equal(t, 1, r.Len())

	got, _ := r.Lookup("dev-1")
	assert.Same(t, second, got)

	t.Run("stale session cannot unbind its successor", func(t *testing.T) {
		assert.False(t, r.Unbind("dev-1", first))

		got, ok := r.Lookup("dev-1")
		require.True(t, ok)
		assert.Same(t, second, got)
	})

	t.Run("current session unbinds", func(t *testing.T) {
		assert.True(t, r.Unbind("dev-1", second))
		assert.Equal(t, 0, r.Len())
		assert.False(t, r.Unbind("dev-1", second))
	})
}

func TestRebindSameSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()
	s := NewMockSession(ctrl)

	r.Bind("dev-1", s)
	assert.Nil(t, r.Bind("dev-1", s))
}

func TestSessionsSorted(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()

	for _, id := range []string{"dev-3", "dev-1", "dev-2"} {
		r.Bind(id, NewMockSession(ctrl))
	}

	bindings := r.Sessions()
	require.Len(t, bindings, 3)
	assert.Equal(t, "dev-1", bindings[0].DeviceID)
	assert.Equal(t, "dev-3", bindings[2].DeviceID)
}

func TestConcurrentBindUnbind(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewRegistry()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			id := fmt.Sprintf("dev-%d", i%5)
			s := NewMockSession(ctrl)
			r.Bind(id, s)
			_, _ = r.Lookup(id)
			r.Unbind(id, s)
		}(i)
	}

	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 5)
}
