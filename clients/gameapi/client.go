// Package gameapi is the HTTP client for the game server's request/response
// surface: listing, creating, and loading games, and submitting a card
// selection. Mutating endpoints answer with a {success, payload|error}
// envelope; a rejected action becomes a DomainError, a non-2xx status a
// RequestError.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sushigo/live/internal/game"
)

// Client talks to one game server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client for the given base URL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token, e.g. after Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// envelope is the server's response wrapper on mutating endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// doEnveloped calls an endpoint that answers with the {success,...} wrapper
// and returns the payload, or a DomainError when the server rejected the
// action.
func (c *Client) doEnveloped(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var env envelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &DomainError{Message: env.Error}
	}
	return env.Payload, nil
}

// Login exchanges a user name for a bearer token and installs it on the
// client.
func (c *Client) Login(ctx context.Context, userName string) (string, error) {
	var token string
	if err := c.do(ctx, http.MethodPost, "/api/login", userName, &token); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	c.token = token
	return token, nil
}

// ListGames returns the games the logged-in user participates in.
func (c *Client) ListGames(ctx context.Context) ([]game.GameSummary, error) {
	var games []game.GameSummary
	if err := c.do(ctx, http.MethodGet, "/api/games", nil, &games); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// CreateGame starts a new game against the named opponents and returns its
// id. A business-rule rejection (e.g. bad player count) comes back as a
// DomainError.
func (c *Client) CreateGame(ctx context.Context, opponents []string) (uuid.UUID, error) {
	payload, err := c.doEnveloped(ctx, http.MethodPost, "/api/games", opponents)
	if err != nil {
		var domErr *DomainError
		if errors.As(err, &domErr) {
			return uuid.Nil, err
		}
		return uuid.Nil, fmt.Errorf("create game: %w", err)
	}
	var id uuid.UUID
	if err := json.Unmarshal(payload, &id); err != nil {
		return uuid.Nil, fmt.Errorf("decode game id: %w", err)
	}
	return id, nil
}

// LoadGame fetches the complete current snapshot of one game. A missing game
// is (nil, nil): the caller must navigate away rather than retry.
func (c *Client) LoadGame(ctx context.Context, id uuid.UUID) (*game.Game, error) {
	var g game.Game
	err := c.do(ctx, http.MethodGet, "/api/games/"+id.String(), nil, &g)
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.NotFound() {
			return nil, nil
		}
		return nil, fmt.Errorf("load game: %w", err)
	}
	return &g, nil
}

// SelectCards commits the local card selection for the current turn. An
// illegal selection comes back as a DomainError.
func (c *Client) SelectCards(ctx context.Context, id uuid.UUID, cards []int) error {
	if _, err := c.doEnveloped(ctx, http.MethodPut, "/api/games/"+id.String(), cards); err != nil {
		var domErr *DomainError
		if errors.As(err, &domErr) {
			return err
		}
		return fmt.Errorf("select cards: %w", err)
	}
	return nil
}
