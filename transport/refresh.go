package transport

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// refreshKey is the single singleflight key: there is only ever one logical
// refresh operation, however many requests hit a 401 concurrently.
const refreshKey = "refresh"

// RefreshClient wraps a Doer and recovers from exactly one class of failure:
// a 401 on any path other than the refresh endpoint itself. It refreshes the
// credentials (coalescing concurrent refreshes into a single call) and then
// retries the original request exactly once, returning that retry's outcome
// whether it succeeds or fails.
//
// Construction is two-phase: the session client needs this transport to make
// its calls, and this transport needs the session client to refresh tokens.
// Build the RefreshClient first, hand it to the session client, then call
// AttachSession with the completed client.
type RefreshClient struct {
	inner       Doer
	refreshPath string
	session     TokenRefresher
	group       singleflight.Group
	log         zerolog.Logger
}

// NewRefreshClient wraps inner. refreshPath identifies the refresh endpoint;
// 401s against it are never themselves retried, which is what prevents an
// expired refresh credential from looping forever.
func NewRefreshClient(inner Doer, refreshPath string) *RefreshClient {
	return &RefreshClient{
		inner:       inner,
		refreshPath: refreshPath,
		log:         zerolog.Nop(),
	}
}

// SetLogger sets the logger used when a refresh-and-retry cycle runs.
func (rc *RefreshClient) SetLogger(log zerolog.Logger) {
	rc.log = log
}

// AttachSession late-binds the session client whose RefreshTokens performs
// the actual credential refresh. Until attached, 401s propagate unchanged.
func (rc *RefreshClient) AttachSession(session TokenRefresher) {
	rc.session = session
}

// Do attempts the request and applies the single-retry policy described on
// RefreshClient. The refresh itself is deduplicated: the first 401 starts
// it, concurrent 401s wait on the same in-flight call, and the handle is
// cleared when it settles regardless of outcome, so a later 401 can start a
// fresh one.
func (rc *RefreshClient) Do(ctx context.Context, req Request) (*Response, error) {
	resp, err := rc.inner.Do(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !IsStatus(err, http.StatusUnauthorized) || req.Path == rc.refreshPath || rc.session == nil {
		return resp, err
	}

	rc.log.Debug().Str("path", req.Path).Msg("401 received, refreshing credentials")

	// A failed refresh is not swallowed here: the session client emits its
	// session-expired event, and the single retry below surfaces the true
	// error to the caller.
	if _, refreshErr, _ := rc.group.Do(refreshKey, func() (any, error) {
		return nil, rc.session.RefreshTokens(ctx)
	}); refreshErr != nil {
		rc.log.Debug().Err(refreshErr).Msg("credential refresh failed")
	}

	return rc.inner.Do(ctx, req)
}
