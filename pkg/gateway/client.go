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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carverauto/guardpost/pkg/auth"
	"github.com/carverauto/guardpost/pkg/logger"
	"github.com/carverauto/guardpost/pkg/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024

	sendQueueSize = 64
)

var (
	errClientClosed = errors.New("connection closed")
	errSendQueue    = errors.New("send queue full")
)

type clientKind string

const (
	kindDevice   clientKind = "device"
	kindOperator clientKind = "operator"
)

// Client is one websocket connection. Device clients double as session.Session for the
// connection registry.
type Client struct {
	id         string
	kind       clientKind
	conn       *websocket.Conn
	remoteAddr string
	hub        *Hub
	logger     logger.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	pending  map[string]chan json.RawMessage
	deviceID string

	claims     *auth.Claims
	subscribed atomic.Bool
}

func newClient(hub *Hub, conn *websocket.Conn, kind clientKind, remoteAddr string) *Client {
	id := uuid.NewString()

	return &Client{
		id:         id,
		kind:       kind,
		conn:       conn,
		remoteAddr: remoteAddr,
		hub:        hub,
		logger: logger.Wrap(hub.logger.With().
			Str("client_id", id).
			Str("client_kind", string(kind)).
			Str("remote_addr", remoteAddr).
			Logger()),
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		pending: make(map[string]chan json.RawMessage),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) RemoteAddr() string { return c.remoteAddr }

// DeviceID returns the id this device connection registered as, if any.
func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.deviceID
}

func (c *Client) setDeviceID(id string) {
	c.mu.Lock()
	c.deviceID = id
	c.mu.Unlock()
}

// Request sends an event to the peer and waits for the frame that replies to it.
func (c *Client) Request(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s payload: %w", models.ErrValidation, event, err)
	}

	id := uuid.NewString()
	reply := make(chan json.RawMessage, 1)

	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(Envelope{ID: id, Event: event, Payload: body}); err != nil {
		return nil, err
	}

	select {
	case raw := <-reply:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("%w: %w", models.ErrNotConnected, errClientClosed)
	}
}

// resolve hands a reply frame to the waiting Request. Late replies are dropped.
func (c *Client) resolve(env *Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.ReplyTo]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug().Str("reply_to", env.ReplyTo).Msg("Dropping reply with no waiting request")
		return
	}

	select {
	case ch <- env.Payload:
	default:
	}
}

func (c *Client) reply(req *Envelope, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", req.Event).Msg("Failed to encode reply")
		return
	}

	if err := c.enqueue(Envelope{Event: req.Event, ReplyTo: req.ID, Payload: body}); err != nil {
		c.logger.Warn().Err(err).Str("event", req.Event).Msg("Reply not sent")
	}
}

func (c *Client) enqueue(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	return c.enqueueRaw(data)
}

func (c *Client) enqueueRaw(data []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: %w", models.ErrNotConnected, errClientClosed)
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %w", models.ErrNotConnected, errClientClosed)
	default:
		return errSendQueue
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump reads frames until the connection fails, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Websocket read error")
			}

			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse frame")
			continue
		}

		if env.ReplyTo != "" {
			c.resolve(&env)
			continue
		}

		switch c.kind {
		case kindDevice:
			c.hub.handleDevice(ctx, c, &env)
		case kindOperator:
			go c.hub.handleOperator(ctx, c, env)
		}
	}
}

// writePump owns all writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))

			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
