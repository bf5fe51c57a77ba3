// Package stream is the client side of the per-game push channel. It opens
// one long-lived websocket subscription per game, decodes the event envelope,
// and dispatches to one handler per event kind. It makes no delivery
// guarantee: the connection reconnects automatically after a transient drop,
// and events sent during the gap are lost. Consumers must recover from gaps
// by reloading, not by assuming completeness.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultBackoffMin = 500 * time.Millisecond
	defaultBackoffMax = 15 * time.Second
)

// Client dials game event subscriptions against one server.
type Client struct {
	baseURL    string
	dialer     *websocket.Dialer
	backoffMin time.Duration
	backoffMax time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.backoffMin = min
		c.backoffMax = max
	}
}

// NewClient builds a stream client for the given base URL, e.g.
// "ws://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		dialer:     websocket.DefaultDialer,
		backoffMin: defaultBackoffMin,
		backoffMax: defaultBackoffMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe opens the push subscription for one game. The returned
// Subscription does not read until Listen is called, so handlers registered
// in between cannot miss events.
func (c *Client) Subscribe(ctx context.Context, gameID uuid.UUID) (*Subscription, error) {
	url := fmt.Sprintf("%s/api/games/%s/stream", c.baseURL, gameID)

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial game stream: %w", err)
	}

	s := &Subscription{
		client:   c,
		url:      url,
		gameID:   gameID,
		conn:     conn,
		handlers: make(map[EventType]Handler),
		done:     make(chan struct{}),
	}

	log.Debug().Str("game_id", gameID.String()).Msg("game stream subscribed")
	return s, nil
}

// Subscription is one open push subscription. Register handlers, then call
// Listen exactly once; Close exactly once per game view teardown (extra
// Closes are no-ops).
type Subscription struct {
	client *Client
	url    string
	gameID uuid.UUID

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[EventType]Handler
	onError  func(error)

	closeOnce sync.Once
	done      chan struct{}
}

// On registers the handler for one event kind, replacing any previous one.
// Handlers run on the subscription's read goroutine, one event at a time, in
// connection delivery order.
func (s *Subscription) On(kind EventType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// OnError registers the callback for envelope decode failures. A decode
// failure never terminates the subscription.
func (s *Subscription) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Listen starts the read loop in its own goroutine.
func (s *Subscription) Listen() {
	go s.run()
}

// Close tears the subscription down. Idempotent; after Close no handler is
// invoked and no reconnect is attempted.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
		log.Debug().Str("game_id", s.gameID.String()).Msg("game stream closed")
	})
	return nil
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run reads the current connection until it drops, then redials with capped
// exponential backoff until Close.
func (s *Subscription) run() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	for {
		s.readLoop(conn)
		if s.closed() {
			return
		}

		var ok bool
		conn, ok = s.redial()
		if !ok {
			return
		}
	}
}

func (s *Subscription) redial() (*websocket.Conn, bool) {
	backoff := s.client.backoffMin
	for {
		select {
		case <-s.done:
			return nil, false
		case <-time.After(backoff):
		}

		conn, _, err := s.client.dialer.Dial(s.url, nil)
		if err != nil {
			log.Warn().Err(err).Str("game_id", s.gameID.String()).
				Dur("backoff", backoff).Msg("game stream redial failed")
			backoff *= 2
			if backoff > s.client.backoffMax {
				backoff = s.client.backoffMax
			}
			continue
		}

		s.mu.Lock()
		if s.closed() {
			s.mu.Unlock()
			conn.Close()
			return nil, false
		}
		s.conn = conn
		s.mu.Unlock()

		log.Info().Str("game_id", s.gameID.String()).Msg("game stream reconnected")
		return conn, true
	}
}

func (s *Subscription) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !s.closed() {
				log.Warn().Err(err).Str("game_id", s.gameID.String()).Msg("game stream read failed")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.reportError(fmt.Errorf("decode event envelope: %w", err))
			continue
		}

		s.mu.Lock()
		h := s.handlers[ev.Type]
		s.mu.Unlock()

		if h == nil {
			log.Debug().Str("event", string(ev.Type)).Msg("unhandled stream event kind")
			continue
		}
		h(ev.Data)
	}
}

func (s *Subscription) reportError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()

	if fn != nil {
		fn(err)
		return
	}
	log.Error().Err(err).Str("game_id", s.gameID.String()).Msg("stream decode failure")
}
