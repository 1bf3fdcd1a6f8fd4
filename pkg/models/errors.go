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

import "errors"

var (
	// ErrValidation marks missing or malformed input rejected before any side effect.
	ErrValidation = errors.New("validation failed")
	// ErrNotConnected marks a device with no live session.
	ErrNotConnected = errors.New("device not connected")
	// ErrUnregisteredDevice marks a network address absent from the identity cache.
	ErrUnregisteredDevice = errors.New("unregistered device")
	// ErrAckTimeout marks a command that was sent but never acknowledged.
	ErrAckTimeout = errors.New("device did not respond in time")
	// ErrReconciliationWrite marks a reported-id correction that could not be persisted.
	ErrReconciliationWrite = errors.New("reported id write-back failed")
	// ErrSourceFetch marks a failed read from the identity source.
	ErrSourceFetch = errors.New("identity source fetch failed")

	errInvalidDuration = errors.New("invalid duration")
)

// ErrorResponse is the JSON body of every HTTP error.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}
