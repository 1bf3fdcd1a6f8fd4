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
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

// Connect creates a NATS connection with the configured security and logging handlers.
func Connect(cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	opts := []nats.Option{nats.Name(cfg.Source)}

	if cfg.TLS != nil {
		tlsConf, err := TLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	opts = append(opts,
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// ConnectWithEventPublisher connects, ensures the event stream and returns a publisher.
// The caller owns the returned connection.
func ConnectWithEventPublisher(ctx context.Context, cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*EventPublisher, *nats.Conn, error) {
	nc, err := Connect(cfg, log, extraOpts...)
	if err != nil {
		return nil, nil, err
	}

	js, err := NewJetStream(nc, log)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	publisher := NewEventPublisher(js, cfg.Stream, cfg.SubjectPrefix, cfg.Source, log)

	if err := EnsureStream(ctx, js, cfg.Stream, publisher.Subjects()); err != nil {
		nc.Close()
		return nil, nil, err
	}

	log.Info().
		Str("stream", cfg.Stream).
		Strs("subjects", publisher.Subjects()).
		Msg("Event publisher ready")

	return publisher, nc, nil
}
