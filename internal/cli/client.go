package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	userAgent       = "gocup-cli"
	requestIDHeader = "X-Request-Id"
)

// Client talks to the JSON API under /api/v1
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/api/v1",
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ServerError is a non-2xx reply from the API
type ServerError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *ServerError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Register creates an account and returns its first session
func (c *Client) Register(ctx context.Context, username, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/players/register", credentials(username, password), &result)
	return &result, err
}

// Login starts a session for an existing account
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(ctx, http.MethodPost, "/players/login", credentials(username, password), &result)
	return &result, err
}

// Me returns the logged in player
func (c *Client) Me(ctx context.Context) (*Player, error) {
	var result Player
	err := c.do(ctx, http.MethodGet, "/players/me", nil, &result)
	return &result, err
}

// QueueStatus returns the queue length and, when logged in, the wait so far
func (c *Client) QueueStatus(ctx context.Context) (*QueueData, error) {
	var result QueueData
	err := c.do(ctx, http.MethodGet, "/queue", nil, &result)
	return &result, err
}

// Game returns a snapshot of a game
func (c *Client) Game(ctx context.Context, id string) (*Game, error) {
	var result Game
	err := c.do(ctx, http.MethodGet, "/games/"+url.PathEscape(id), nil, &result)
	return &result, err
}

// ChatHistory returns the chat of a game in order
func (c *Client) ChatHistory(ctx context.Context, id string) (*ChatHistory, error) {
	var result ChatHistory
	err := c.do(ctx, http.MethodGet, "/games/"+url.PathEscape(id)+"/chat", nil, &result)
	return &result, err
}

// Health checks the API is serving
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	var result HealthResult
	err := c.do(ctx, http.MethodGet, "/health", nil, &result)
	return &result, err
}

func credentials(username, password string) map[string]string {
	return map[string]string{"username": username, "password": password}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return serverError(resp, respBody)
	}
	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func serverError(resp *http.Response, body []byte) *ServerError {
	e := &ServerError{
		Status:    resp.StatusCode,
		Message:   strings.TrimSpace(string(body)),
		RequestID: resp.Header.Get(requestIDHeader),
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
	}
	return e
}
