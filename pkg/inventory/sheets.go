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

// Package inventory reads and repairs the device inventory kept in a Google spreadsheet.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

var errNoSpreadsheet = errors.New("spreadsheet id is required")

// SheetsSource implements identity.Source over the Sheets v4 values API.
type SheetsSource struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	dataRange     string
	markerRange   string
	layout        *layout
	timeout       time.Duration
	breaker       *CircuitBreaker
	logger        logger.Logger
}

// NewSheetsSource builds a source from config. Without a credentials file requests are sent
// unauthenticated, which only makes sense against a custom endpoint.
func NewSheetsSource(ctx context.Context, cfg *models.InventoryConfig, log logger.Logger) (*SheetsSource, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errNoSpreadsheet
	}

	lay, err := newLayout(cfg.DataRange, cfg.Columns)
	if err != nil {
		return nil, err
	}

	base, err := baseTransport(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	breaker := NewCircuitBreaker("sheets", DefaultCircuitBreakerConfig(), log)
	client := &http.Client{Transport: &breakerTransport{next: base, breaker: breaker}}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	timeout := time.Duration(cfg.RequestTimeout)
	if timeout <= 0 {
		timeout = models.DefaultSourceTimeout
	}

	return &SheetsSource{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		dataRange:     cfg.DataRange,
		markerRange:   cfg.MarkerRange,
		layout:        lay,
		timeout:       timeout,
		breaker:       breaker,
		logger:        log,
	}, nil
}

func baseTransport(ctx context.Context, credentialsFile string) (http.RoundTripper, error) {
	if credentialsFile == "" {
		return http.DefaultTransport, nil
	}

	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials '%s': %w", credentialsFile, err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials '%s': %w", credentialsFile, err)
	}

	return &oauth2.Transport{Source: creds.TokenSource, Base: http.DefaultTransport}, nil
}

// Breaker exposes the circuit breaker guarding the API.
func (s *SheetsSource) Breaker() *CircuitBreaker {
	return s.breaker
}

func (s *SheetsSource) FetchRows(ctx context.Context) ([]models.DeviceIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.values.Get(s.spreadsheetID, s.dataRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dataRange, err)
	}

	rows := s.layout.identities(resp.Values)

	s.logger.Debug().
		Int("rows", len(resp.Values)).
		Int("identities", len(rows)).
		Msg("Fetched inventory rows")

	return rows, nil
}

func (s *SheetsSource) FetchMarker(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.values.Get(s.spreadsheetID, s.markerRange).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.markerRange, err)
	}

	if len(resp.Values) == 0 {
		return "", nil
	}

	return cell(resp.Values[0], 0), nil
}

func (s *SheetsSource) WriteReportedID(ctx context.Context, rowIndex int, reportedID string) error {
	if rowIndex < s.layout.firstRow {
		return fmt.Errorf("row %d is outside the inventory range %s", rowIndex, s.dataRange)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := s.layout.reportedCell(rowIndex)

	_, err := s.values.Update(s.spreadsheetID, target, &sheets.ValueRange{
		Range:  target,
		Values: [][]interface{}{{reportedID}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	s.logger.Info().Str("cell", target).Str("reported_id", reportedID).Msg("Wrote reported id")

	return nil
}
