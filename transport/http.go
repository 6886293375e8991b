package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultTimeout = 30 * time.Second

// HTTPClient is the lowest transport layer: one request, one response, no
// retries and no interpretation of the body beyond JSON encoding. Non-2xx
// statuses come back as *Error.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
	tokens  TokenProvider
	headers map[string]string
	log     zerolog.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client (primarily for tests
// and custom transport settings).
func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithLogger sets the logger used for per-request debug logging.
func WithLogger(log zerolog.Logger) HTTPClientOption {
	return func(h *HTTPClient) {
		h.log = log
	}
}

// WithHeader adds a header sent on every request (e.g. a client instance ID).
func WithHeader(key, value string) HTTPClientOption {
	return func(h *HTTPClient) {
		h.headers[key] = value
	}
}

// NewHTTPClient creates a transport bound to the remote service's base URL.
func NewHTTPClient(baseURL string, options ...HTTPClientOption) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[NewHTTPClient] invalid base URL")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("[NewHTTPClient] base URL %q must be absolute", baseURL)
	}

	h := &HTTPClient{
		baseURL: u,
		client:  &http.Client{Timeout: defaultTimeout},
		headers: make(map[string]string),
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(h)
	}
	return h, nil
}

// SetTokenProvider late-binds the access-token source. The provider is
// consulted on every request so retries pick up refreshed credentials.
func (h *HTTPClient) SetTokenProvider(tp TokenProvider) {
	h.tokens = tp
}

// SetHeader sets a header sent on every subsequent request. Used for values
// that only exist after hydration, like the client instance ID.
func (h *HTTPClient) SetHeader(key, value string) {
	h.headers[key] = value
}

// Do performs a single round trip. Any non-2xx status is returned as *Error
// carrying the status code and the remote service's message, if it sent one.
func (h *HTTPClient) Do(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[HTTPClient.Do] encode request body")
		}
		body = bytes.NewReader(encoded)
	}

	u := *h.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + req.Path

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "[HTTPClient.Do] build request")
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range h.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if h.tokens != nil {
		if token := h.tokens.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(err, "[HTTPClient.Do] %s %s", req.Method, req.Path)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "[HTTPClient.Do] read response for %s %s", req.Method, req.Path)
	}

	h.log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Msg("request completed")

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{
			StatusCode: httpResp.StatusCode,
			Message:    remoteMessage(respBody),
		}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

// remoteMessage pulls the "message" (or "error") field out of an error body.
func remoteMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
