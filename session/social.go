package session

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/pkg/errors"
)

// Callback carries the two return-channel signals a social-login redirect
// can land with: the provider's error flag and, in exchange-delivery mode,
// the short-lived token to trade for real credentials.
type Callback struct {
	ErrorParam    string
	ExchangeToken string
}

// CallbackFromQuery reads the two return-channel query parameters from a
// landing URL.
func CallbackFromQuery(query url.Values) Callback {
	return Callback{
		ErrorParam:    query.Get("error"),
		ExchangeToken: query.Get("exchange_token"),
	}
}

// CallbackResult tells the caller where to route after the landing was
// processed. Exactly one of the three outcomes applies.
type CallbackResult struct {
	// Authenticated means a session exists and the profile is loaded.
	Authenticated bool
	// Challenge is the pending verification step, surfaced exactly like any
	// other challenge; no authenticated session exists until it resolves.
	Challenge *auth.AuthResponse
	// RoutedToLogin means the landing carried an error or the exchange was
	// rejected; nothing was mutated and no retry happens automatically.
	RoutedToLogin bool
}

// CompleteSocialRedirect finalizes a return from a third-party login page.
// It runs at most once per controller instance: UI frameworks that
// double-invoke effects hit the latch and get a nil result with no error and
// no state mutation.
//
// With an exchange token present the token is traded for credentials; a
// pending challenge is surfaced without a profile fetch. Without one
// (cookie-delivery mode) the redirect target already established the session
// server-side and only the profile fetch remains.
func (c *Controller) CompleteSocialRedirect(ctx context.Context, cb Callback) (*CallbackResult, error) {
	c.lock.Lock()
	if c.socialOnce {
		c.lock.Unlock()
		return nil, nil
	}
	c.socialOnce = true
	c.lock.Unlock()

	if cb.ErrorParam != "" {
		c.log.Info().Str("error", cb.ErrorParam).Msg("social login aborted by provider")
		return &CallbackResult{RoutedToLogin: true}, nil
	}

	if cb.ExchangeToken != "" {
		resp, err := c.client.ExchangeSocialRedirect(ctx, cb.ExchangeToken)
		if err != nil {
			return &CallbackResult{RoutedToLogin: true}, errors.Wrap(err, "[Controller.CompleteSocialRedirect] exchange")
		}
		if resp.Pending() {
			return &CallbackResult{Challenge: resp}, nil
		}
		return &CallbackResult{Authenticated: true}, nil
	}

	// Cookie-delivery mode: the session already exists server-side, so a
	// successful profile fetch is the whole completion.
	user, err := c.client.GetProfile(ctx)
	if err != nil {
		return &CallbackResult{RoutedToLogin: true}, errors.Wrap(err, "[Controller.CompleteSocialRedirect] profile")
	}
	c.update(func(s *State) {
		s.Challenge = nil
		s.User = user
	})
	return &CallbackResult{Authenticated: true}, nil
}
