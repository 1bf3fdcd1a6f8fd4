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

//go:generate mockgen -destination=mock_identity.go -package=identity github.com/carverauto/guardpost/pkg/identity Source

package identity

import (
	"context"

	"github.com/carverauto/guardpost/pkg/models"
)

// Source is the external inventory the cache mirrors.
type Source interface {
	// FetchRows returns every inventory row in source order.
	FetchRows(ctx context.Context) ([]models.DeviceIdentity, error)
	// FetchMarker returns the cheap last-modified marker of the inventory.
	FetchMarker(ctx context.Context) (string, error)
	// WriteReportedID stores reportedID in the row at rowIndex.
	WriteReportedID(ctx context.Context, rowIndex int, reportedID string) error
}
