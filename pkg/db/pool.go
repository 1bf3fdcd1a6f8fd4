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

// Package db persists fleet metrics in Postgres.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

const (
	defaultPort           = 5432
	defaultConnectTimeout = 30 * time.Second
	connectInitialBackoff = 500 * time.Millisecond
	connectMaxBackoff     = 5 * time.Second
)

var errNoDatabase = errors.New("database config is required")

func buildConnURL(cfg *models.DatabaseConfig) (*url.URL, error) {
	if cfg == nil || cfg.Host == "" || cfg.Database == "" {
		return nil, errNoDatabase
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	connURL := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	appName := cfg.ApplicationName
	if appName == "" {
		appName = "guardpost"
	}

	query.Set("application_name", appName)

	connURL.RawQuery = query.Encode()

	return connURL, nil
}

func poolConfig(cfg *models.DatabaseConfig) (*pgxpool.Config, error) {
	connURL, err := buildConnURL(cfg)
	if err != nil {
		return nil, err
	}

	pc, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("db: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		pc.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		pc.MinConns = cfg.MinConnections
	}

	return pc, nil
}

// NewPool dials Postgres, retrying with exponential backoff until the server answers a ping
// or the connect timeout elapses.
func NewPool(ctx context.Context, cfg *models.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.ConnectTimeout)
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = connectInitialBackoff
	bo.MaxInterval = connectMaxBackoff

	attempt := 0
	operation := func() (*pgxpool.Pool, error) {
		attempt++

		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("db: failed to initialize pool: %w", err))
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			log.Warn().Err(err).Int("attempt", attempt).Str("host", cfg.Host).Msg("Database not reachable yet")

			return nil, err
		}

		return pool, nil
	}

	pool, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(timeout))
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Host, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", pc.MaxConns).
		Msg("Connected to metrics database")

	return pool, nil
}
