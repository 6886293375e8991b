// Package transport performs the HTTP round trips to the remote
// authentication service. It has two layers: HTTPClient, which does a single
// request/response exchange and reports non-2xx statuses as a typed *Error,
// and RefreshClient, which wraps any Doer and transparently recovers from a
// single expired-credential (401) failure by refreshing and retrying once.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Doer executes one request against the remote authentication service.
// Implementations return *Error for any non-2xx HTTP status.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TokenProvider supplies the current access token at send time. Resolving the
// token per request (rather than baking it into the Request) means a retry
// issued after a refresh automatically carries the refreshed credential.
type TokenProvider interface {
	AccessToken() string
}

// TokenRefresher exchanges the stored refresh token for fresh credentials.
// The session client implements this; RefreshClient calls it on a 401.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context) error
}

// Request describes a single call to the remote service. Body, when non-nil,
// is JSON-encoded.
type Request struct {
	Method  string
	Path    string
	Body    any
	Headers map[string]string
}

// Response is the raw outcome of a successful (2xx) round trip.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v. An empty body is not an error;
// v is left untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("transport.Response.Decode: %w", err)
	}
	return nil
}

// Error is the typed failure for any non-2xx HTTP status. The remote service
// returns a JSON body with a "message" field; Message carries it when present.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote service returned status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a *Error with the given HTTP status code.
func IsStatus(err error, status int) bool {
	var te *Error
	return errors.As(err, &te) && te.StatusCode == status
}
