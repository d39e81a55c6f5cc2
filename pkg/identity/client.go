package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/portal/pkg/observability"
)

// DefaultTimeout bounds every call to the identity service
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

// Client is a typed client for the remote identity and user service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the client logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewHTTPClient builds an instrumented HTTP client. A nil base uses http.DefaultTransport.
func NewHTTPClient(timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(base),
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(DefaultTimeout, nil)
	}
	return c
}

// BaseURL returns the service root this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token pair and profile
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. Fields are forwarded verbatim and the created record is returned.
func (c *Client) Register(ctx context.Context, fields map[string]interface{}) (map[string]interface{}, error) {
	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", fields, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RefreshToken mints a new access token
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh-token", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the refresh token on the server. The response body is ignored.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", refreshRequest{RefreshToken: refreshToken}, nil)
}

// ValidateToken asks the service whether an access token is still valid
func (c *Client) ValidateToken(ctx context.Context, token string) (*ValidateResponse, error) {
	var resp ValidateResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/validate", validateRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListUsers returns every user known to the service
func (c *Client) ListUsers(ctx context.Context) ([]Identity, error) {
	var users []Identity
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a single user
func (c *Client) GetUser(ctx context.Context, id int64) (*Identity, error) {
	var user Identity
	if err := c.do(ctx, http.MethodGet, userPath(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update and returns the updated record
func (c *Client) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*Identity, error) {
	var user Identity
	if err := c.do(ctx, http.MethodPut, userPath(id), update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id), nil, nil)
}

// Ping checks that the service answers at all. Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return newTransportError(err)
	}
	resp.Body.Close()
	return nil
}

func userPath(id int64) string {
	return "/api/users/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
		}).WithError(err).Debug("identity service unreachable")
		return newTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return newTransportError(err)
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("identity service call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRejectedError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s %s response: %w", method, path, err)
	}
	return nil
}
