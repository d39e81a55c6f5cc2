package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/platinummonkey/portal/pkg/contextkeys"
	"github.com/platinummonkey/portal/pkg/observability"
)

// Credentials supplies the current access token and can mint a new one.
// session.Manager is the production implementation.
type Credentials interface {
	oauth2.TokenSource
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

// AuthTransport attaches the bearer token to every request and, on a 401,
// refreshes once and replays the request. A replayed request is marked in its
// context and is never refreshed again. Concurrent 401s are not coalesced, so
// parallel requests may each trigger a refresh.
type AuthTransport struct {
	credentials Credentials
	base        http.RoundTripper
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// TransportOption configures an AuthTransport
type TransportOption func(*AuthTransport)

// WithTransportLogger sets the transport logger
func WithTransportLogger(logger *observability.Logger) TransportOption {
	return func(t *AuthTransport) {
		t.logger = logger
	}
}

// WithTransportMetrics records retry outcomes
func WithTransportMetrics(metrics *observability.Metrics) TransportOption {
	return func(t *AuthTransport) {
		t.metrics = metrics
	}
}

// NewAuthTransport wraps base. A nil base uses http.DefaultTransport.
func NewAuthTransport(credentials Credentials, base http.RoundTripper, opts ...TransportOption) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &AuthTransport{
		credentials: credentials,
		base:        base,
		logger:      observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper. req is never modified; bodies that
// cannot be rewound are buffered into the clones that are sent.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	first := req.Clone(req.Context())
	getBody := req.GetBody
	if req.Body != nil && req.Body != http.NoBody && getBody == nil {
		var err error
		if getBody, err = bufferBody(req.Body); err != nil {
			return nil, err
		}
		if first, err = withBody(first, getBody); err != nil {
			return nil, err
		}
	}
	if token, err := t.credentials.Token(); err == nil && token != nil && token.AccessToken != "" {
		token.SetAuthHeader(first)
	}

	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || contextkeys.IsRetry(req.Context()) {
		return resp, nil
	}

	// Keep the original 401 readable in case the refresh fails.
	original, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read unauthorized response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(original))

	log := t.logger.WithFields(map[string]interface{}{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	token, err := t.credentials.Refresh(req.Context())
	if err != nil {
		t.metrics.IncAuthRetry("refresh_failed")
		log.WithError(err).Warn("token refresh after 401 failed")
		return resp, nil
	}

	retry, err := withBody(req.Clone(contextkeys.WithRetry(req.Context())), getBody)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(retry)

	t.metrics.IncAuthRetry("replayed")
	log.Debug("replaying request with refreshed token")
	return t.base.RoundTrip(retry)
}

// bufferBody reads and closes body, returning a function that replays it
func bufferBody(body io.ReadCloser) (func() (io.ReadCloser, error), error) {
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

// withBody gives clone a fresh body from getBody, if there is one
func withBody(clone *http.Request, getBody func() (io.ReadCloser, error)) (*http.Request, error) {
	if getBody == nil {
		return clone, nil
	}
	body, err := getBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	clone.GetBody = getBody
	return clone, nil
}
