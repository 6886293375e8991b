package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/transport"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Remote service endpoint paths. Exact paths are a deployment concern; these
// are the defaults the service ships with.
const (
	PathSignup         = "/auth/signup"
	PathLogin          = "/auth/login"
	PathChallenge      = "/auth/challenge"
	PathResendCode     = "/auth/challenge/resend"
	PathChallengeSetup = "/auth/challenge/setup"
	PathRefresh        = "/auth/refresh"
	PathLogout         = "/auth/logout"
	PathProfile        = "/auth/me"
	PathSocialStart    = "/auth/social/start"
	PathSocialExchange = "/auth/social/exchange"
)

// Client is the session client: a typed façade over the transport exposing
// the auth operations and maintaining the last-known user, tokens, and
// pending challenge. State transitions are announced through exactly four
// events (see EventKind); nothing else mutates the user cache.
//
// Client implements transport.TokenProvider and transport.TokenRefresher so
// it can be late-bound into the refresh transport after construction.
type Client struct {
	transport   transport.Doer
	store       SessionStore
	events      emitter
	log         zerolog.Logger
	nowTime     func() time.Time
	refreshPath string

	lock      sync.Mutex
	user      *User
	tokens    *oauth2.Token
	challenge *AuthResponse
	clientID  string
}

var (
	_ transport.TokenProvider  = (*Client)(nil)
	_ transport.TokenRefresher = (*Client)(nil)
)

// ClientOption modifies a Client during construction.
type ClientOption func(*Client)

// WithLogger sets the logger for session state transitions.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithRefreshPath overrides the refresh endpoint path. It must be the same
// path the refresh transport exempts from its retry policy, or a failing
// refresh would itself be treated as a refreshable 401.
func WithRefreshPath(path string) ClientOption {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// NewClient creates a session client over the given transport and store.
func NewClient(doer transport.Doer, store SessionStore, options ...ClientOption) (*Client, error) {
	if doer == nil {
		return nil, errors.New("[NewClient] transport is required")
	}
	if store == nil {
		return nil, errors.New("[NewClient] session store is required")
	}

	c := &Client{
		transport:   doer,
		store:       store,
		log:         zerolog.Nop(),
		nowTime:     time.Now,
		refreshPath: PathRefresh,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Subscribe registers a handler for all session events and returns its
// unsubscribe func. Handlers run synchronously in subscription order.
func (c *Client) Subscribe(h Handler) func() {
	return c.events.subscribe(h)
}

// Initialize hydrates the in-memory caches from the persisted store. It
// performs no network calls; call it once before any other operation. When
// the persisted access token carries no expiry (older installs), the expiry
// is recovered from the JWT exp claim.
func (c *Client) Initialize(_ context.Context) error {
	user, err := c.store.User()
	if err != nil {
		return errors.Wrap(err, "[Client.Initialize] load user")
	}
	tokens, err := c.store.Tokens()
	if err != nil {
		return errors.Wrap(err, "[Client.Initialize] load tokens")
	}
	challenge, err := c.store.Challenge()
	if err != nil {
		return errors.Wrap(err, "[Client.Initialize] load challenge")
	}
	clientID, err := c.store.ClientID()
	if err != nil {
		return errors.Wrap(err, "[Client.Initialize] load client id")
	}
	if clientID == "" {
		clientID = uuid.New().String()
		if err := c.store.SetClientID(clientID); err != nil {
			return errors.Wrap(err, "[Client.Initialize] persist client id")
		}
	}
	if tokens != nil && tokens.Expiry.IsZero() {
		tokens.Expiry = jwtExpiry(tokens.AccessToken)
	}

	c.lock.Lock()
	c.user = user
	c.tokens = tokens
	c.challenge = challenge
	c.clientID = clientID
	c.lock.Unlock()

	c.log.Debug().
		Bool("hasUser", user != nil).
		Bool("hasTokens", tokens != nil).
		Bool("hasChallenge", challenge != nil).
		Msg("session client hydrated")
	return nil
}

// CurrentUser returns the cached user snapshot without a network call. It is
// guaranteed non-nil immediately after an EventSuccess emission.
func (c *Client) CurrentUser() *User {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.user
}

// StoredChallenge returns the cached pending challenge, or nil.
func (c *Client) StoredChallenge() *AuthResponse {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.challenge
}

// ClientID returns the per-install identifier established by Initialize.
func (c *Client) ClientID() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.clientID
}

// AccessToken implements transport.TokenProvider. It is consulted at send
// time so retries after a refresh carry the refreshed credential.
func (c *Client) AccessToken() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken
}

// Login authenticates with email and password. The returned AuthResponse is
// either terminal (EventSuccess emitted, user cache populated) or pending
// (EventChallenge emitted, challenge stored).
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, PathLogin, creds, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Login]")
	}
	return c.settleAuthResponse(ctx, &resp)
}

// Signup creates an account. Most deployments answer with a VERIFY_EMAIL
// challenge rather than a terminal response.
func (c *Client) Signup(ctx context.Context, params SignupParams) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, PathSignup, params, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.Signup]")
	}
	return c.settleAuthResponse(ctx, &resp)
}

// RespondToChallenge answers the pending challenge. The response shape is
// validated locally against the decision table; a stale continuation token
// is only ever detected by the remote service.
func (c *Client) RespondToChallenge(ctx context.Context, cr ChallengeResponse) (*AuthResponse, error) {
	pending := c.StoredChallenge()
	if err := ValidateResponse(pending, cr); err != nil {
		return nil, errors.Wrap(err, "[Client.RespondToChallenge]")
	}

	var resp AuthResponse
	if err := c.post(ctx, PathChallenge, cr, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.RespondToChallenge]")
	}
	return c.settleAuthResponse(ctx, &resp)
}

type resendRequest struct {
	Session string        `json:"session"`
	Type    ChallengeKind `json:"type"`
	Method  string        `json:"method,omitempty"`
}

// ResendCode asks the remote service to redeliver the pending challenge's
// code. method may be empty for verification challenges; TOTP never has
// anything to resend.
func (c *Client) ResendCode(ctx context.Context, method string) error {
	pending := c.StoredChallenge()
	if !pending.Pending() {
		return errors.Wrap(ErrNoPendingChallenge, "[Client.ResendCode]")
	}
	if !SupportsResend(pending.ChallengeName, method) {
		return errors.Wrapf(ErrResendNotSupported, "[Client.ResendCode] %s/%s", pending.ChallengeName, method)
	}
	req := resendRequest{Session: pending.Session, Type: pending.ChallengeName, Method: method}
	if err := c.post(ctx, PathResendCode, req, nil); err != nil {
		return errors.Wrap(err, "[Client.ResendCode]")
	}
	return nil
}

type setupRequest struct {
	Session string `json:"session"`
	Method  string `json:"method"`
}

// GetSetupData runs the first phase of MFA enrollment: it fetches either an
// auto-completed device ID (destination already verified) or the material
// for an OTP round trip. Only valid while an MFA_SETUP_REQUIRED challenge is
// pending.
func (c *Client) GetSetupData(ctx context.Context, method string) (*SetupChallengeData, error) {
	pending := c.StoredChallenge()
	if !pending.Pending() || pending.ChallengeName != ChallengeMFASetupRequired {
		return nil, errors.Wrap(ErrNoPendingChallenge, "[Client.GetSetupData] requires a pending MFA setup challenge")
	}

	var data SetupChallengeData
	if err := c.post(ctx, PathChallengeSetup, setupRequest{Session: pending.Session, Method: method}, &data); err != nil {
		return nil, errors.Wrap(err, "[Client.GetSetupData]")
	}
	return &data, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokens exchanges the stored refresh token for fresh credentials.
// Any failure is terminal for the session: local state is cleared and
// EventSessionExpired is emitted before the error is returned. The refresh
// transport never retries this path.
func (c *Client) RefreshTokens(ctx context.Context) error {
	c.lock.Lock()
	var refreshToken string
	if c.tokens != nil {
		refreshToken = c.tokens.RefreshToken
	}
	c.lock.Unlock()

	if refreshToken == "" {
		c.expireSession()
		return errors.Wrap(ErrSessionExpired, "[Client.RefreshTokens] no refresh token")
	}

	var payload TokenPayload
	if err := c.post(ctx, c.refreshPath, refreshRequest{RefreshToken: refreshToken}, &payload); err != nil {
		c.log.Info().Err(err).Msg("token refresh failed, session expired")
		c.expireSession()
		return errors.Wrap(ErrSessionExpired, err.Error())
	}

	tokens := payload.OAuth2Token(c.nowTime())
	if tokens.RefreshToken == "" {
		// No rotation: keep using the previous refresh token.
		tokens.RefreshToken = refreshToken
	}
	if err := c.setTokens(tokens); err != nil {
		return errors.Wrap(err, "[Client.RefreshTokens] persist tokens")
	}

	c.log.Debug().Msg("credentials refreshed")
	return nil
}

// Logout tells the remote service to end the session, then clears local
// state and emits EventLogout. Local state is cleared even when the remote
// call fails; the failure is still returned.
func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, PathLogout, nil, nil)

	c.clearSession()
	c.events.emit(Event{Kind: EventLogout})
	c.log.Info().Msg("logged out")

	if err != nil {
		return errors.Wrap(err, "[Client.Logout] remote logout")
	}
	return nil
}

// GetProfile fetches a fresh user snapshot, replaces the cache and the
// persisted copy, and returns it. It emits no events; callers decide whether
// a fetch failure matters.
func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, PathProfile, &user); err != nil {
		return nil, errors.Wrap(err, "[Client.GetProfile]")
	}

	c.lock.Lock()
	c.user = &user
	c.lock.Unlock()
	if err := c.store.SetUser(&user); err != nil {
		return nil, errors.Wrap(err, "[Client.GetProfile] persist user")
	}
	return &user, nil
}

type socialStartRequest struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirectUri"`
	State       string `json:"state"`
}

// LoginWithSocial asks the remote service to begin a social login and
// returns the provider URL the caller must navigate to. The state parameter
// is generated here and echoed back on the redirect.
func (c *Client) LoginWithSocial(ctx context.Context, provider, redirectURI string) (string, error) {
	req := socialStartRequest{
		Provider:    provider,
		RedirectURI: redirectURI,
		State:       uuid.New().String(),
	}
	var redirect SocialRedirect
	if err := c.post(ctx, PathSocialStart, req, &redirect); err != nil {
		return "", errors.Wrap(err, "[Client.LoginWithSocial]")
	}
	return redirect.URL, nil
}

type socialExchangeRequest struct {
	Token string `json:"token"`
}

// ExchangeSocialRedirect trades the exchange token from a social-login
// redirect for real credentials. The result is settled exactly like a login
// response: terminal or pending challenge.
func (c *Client) ExchangeSocialRedirect(ctx context.Context, token string) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.post(ctx, PathSocialExchange, socialExchangeRequest{Token: token}, &resp); err != nil {
		return nil, errors.Wrap(err, "[Client.ExchangeSocialRedirect]")
	}
	return c.settleAuthResponse(ctx, &resp)
}

// settleAuthResponse folds an AuthResponse into client state. Pending
// responses become the stored challenge and emit EventChallenge. Terminal
// responses clear the challenge, install the issued tokens, resolve the
// user (from the response or a profile fetch), and emit EventSuccess. The
// cache is updated before emission so synchronous reads are fresh.
func (c *Client) settleAuthResponse(ctx context.Context, resp *AuthResponse) (*AuthResponse, error) {
	if resp.Pending() {
		c.lock.Lock()
		c.challenge = resp
		c.lock.Unlock()
		if err := c.store.SetChallenge(resp); err != nil {
			return nil, errors.Wrap(err, "[Client.settleAuthResponse] persist challenge")
		}
		c.log.Info().Str("challenge", string(resp.ChallengeName)).Msg("challenge pending")
		c.events.emit(Event{Kind: EventChallenge, Challenge: resp})
		return resp, nil
	}

	// Terminal: challenge cleared before the user is updated.
	c.lock.Lock()
	c.challenge = nil
	c.lock.Unlock()
	if err := c.store.SetChallenge(nil); err != nil {
		return nil, errors.Wrap(err, "[Client.settleAuthResponse] clear challenge")
	}
	if resp.Tokens != nil {
		if err := c.setTokens(resp.Tokens.OAuth2Token(c.nowTime())); err != nil {
			return nil, errors.Wrap(err, "[Client.settleAuthResponse] persist tokens")
		}
	}

	user := resp.User
	if user == nil {
		fetched, err := c.GetProfile(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.settleAuthResponse] resolve user")
		}
		user = fetched
	} else {
		c.lock.Lock()
		c.user = user
		c.lock.Unlock()
		if err := c.store.SetUser(user); err != nil {
			return nil, errors.Wrap(err, "[Client.settleAuthResponse] persist user")
		}
	}

	c.log.Info().Str("userID", user.ID).Msg("authenticated")
	c.events.emit(Event{Kind: EventSuccess, User: user})
	return resp, nil
}

func (c *Client) setTokens(tokens *oauth2.Token) error {
	c.lock.Lock()
	c.tokens = tokens
	c.lock.Unlock()
	return c.store.SetTokens(tokens)
}

// clearSession wipes the cache and the persisted session atomically with
// respect to cache readers.
func (c *Client) clearSession() {
	c.lock.Lock()
	c.user = nil
	c.tokens = nil
	c.challenge = nil
	c.lock.Unlock()
	if err := c.store.Clear(); err != nil {
		c.log.Error().Err(err).Msg("failed to clear persisted session")
	}
}

func (c *Client) expireSession() {
	c.clearSession()
	c.events.emit(Event{Kind: EventSessionExpired})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	resp, err := c.transport.Do(ctx, transport.Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	resp, err := c.transport.Do(ctx, transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// jwtExpiry recovers the expiry from a JWT's exp claim without verifying the
// signature; verification is the server's job, the client only needs the
// timestamp. Returns the zero time for opaque tokens.
func jwtExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
