// Package session exposes the single coherent view of "who is logged in and
// what do they need to do next". The Controller subscribes to the session
// client's events, hydrates from persisted state at startup, and reconciles
// every asynchronous auth outcome into one State that observers can render
// without ever seeing a spurious logged-out flash.
package session

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// State is the controller's reactive view. IsLoading distinguishes
// "definitely logged out" from "not yet determined": until Initialize
// completes, a nil User means nothing.
type State struct {
	User      *auth.User
	Challenge *auth.AuthResponse
	IsLoading bool
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// Observer receives a State snapshot after every change.
type Observer func(State)

// Controller owns the session state. All mutations flow through the four
// client events plus Initialize; logout and expiry clear user and challenge
// in the same update, so no observer sees one cleared without the other.
type Controller struct {
	client *auth.Client
	log    zerolog.Logger

	lock        sync.Mutex
	state       State
	observers   []observerEntry
	nextID      int
	socialOnce  bool
	closed      bool
	unsubscribe func()
}

type observerEntry struct {
	id int
	fn Observer
}

// ControllerOption modifies a Controller during construction.
type ControllerOption func(*Controller)

// WithLogger sets the logger for controller state transitions.
func WithLogger(log zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController creates a controller subscribed to the client's events. The
// initial state is empty with IsLoading true; call Initialize to hydrate.
func NewController(client *auth.Client, options ...ControllerOption) (*Controller, error) {
	if client == nil {
		return nil, errors.New("[NewController] session client is required")
	}

	c := &Controller{
		client: client,
		log:    zerolog.Nop(),
		state:  State{IsLoading: true},
	}
	for _, opt := range options {
		opt(c)
	}
	c.unsubscribe = client.Subscribe(c.handleEvent)
	return c, nil
}

// State returns a snapshot of the current session view.
func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

// IsAuthenticated is a convenience over State().
func (c *Controller) IsAuthenticated() bool {
	return c.State().IsAuthenticated()
}

// OnChange registers an observer and returns its unsubscribe func.
// Observers run synchronously, in registration order, with a snapshot taken
// under the same lock hold as the mutation that triggered them.
func (c *Controller) OnChange(fn Observer) func() {
	c.lock.Lock()
	defer c.lock.Unlock()
	id := c.nextID
	c.nextID++
	c.observers = append(c.observers, observerEntry{id: id, fn: fn})
	return func() {
		c.lock.Lock()
		defer c.lock.Unlock()
		for i, o := range c.observers {
			if o.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// Close detaches the controller from the client's events and stops observer
// notifications. No event fires after Close returns.
func (c *Controller) Close() {
	c.lock.Lock()
	c.closed = true
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.lock.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Initialize runs the startup hydration sequence once:
//
//  1. hydrate the client from persisted storage
//  2. if a cached user exists, refresh the profile; a fetch failure falls
//     back to the cached user rather than logging them out (unless the
//     failure itself expired the session, in which case the client cache is
//     already cleared and stays authoritative)
//  3. restore any stored pending challenge
//  4. flip IsLoading to false in the same update
func (c *Controller) Initialize(ctx context.Context) error {
	if err := c.client.Initialize(ctx); err != nil {
		return errors.Wrap(err, "[Controller.Initialize]")
	}

	user := c.client.CurrentUser()
	if user != nil {
		if fresh, err := c.client.GetProfile(ctx); err == nil {
			user = fresh
		} else {
			c.log.Debug().Err(err).Msg("startup profile fetch failed, keeping cached user")
			// Re-read: a refresh failure during the fetch clears the cache,
			// a transient failure leaves the cached user in place.
			user = c.client.CurrentUser()
		}
	}
	challenge := c.client.StoredChallenge()

	c.update(func(s *State) {
		s.User = user
		s.Challenge = challenge
		s.IsLoading = false
	})
	return nil
}

// Login delegates to the session client; state changes arrive via events.
// Errors propagate untouched for the caller to display.
func (c *Controller) Login(ctx context.Context, creds auth.Credentials) (*auth.AuthResponse, error) {
	return c.client.Login(ctx, creds)
}

// Signup delegates to the session client.
func (c *Controller) Signup(ctx context.Context, params auth.SignupParams) (*auth.AuthResponse, error) {
	return c.client.Signup(ctx, params)
}

// RespondToChallenge delegates to the session client.
func (c *Controller) RespondToChallenge(ctx context.Context, cr auth.ChallengeResponse) (*auth.AuthResponse, error) {
	return c.client.RespondToChallenge(ctx, cr)
}

// ResendCode delegates to the session client.
func (c *Controller) ResendCode(ctx context.Context, method string) error {
	return c.client.ResendCode(ctx, method)
}

// Logout delegates to the session client; the logout event clears the state.
func (c *Controller) Logout(ctx context.Context) error {
	return c.client.Logout(ctx)
}

func (c *Controller) handleEvent(ev auth.Event) {
	switch ev.Kind {
	case auth.EventSuccess:
		// Optimistic transition: the client cache is guaranteed fresh at
		// emission, so authentication flips true immediately. The full
		// profile is refined asynchronously afterwards.
		user := ev.User
		if user == nil {
			user = c.client.CurrentUser()
		}
		c.update(func(s *State) {
			s.Challenge = nil
			s.User = user
		})
		go c.refineProfile()

	case auth.EventChallenge:
		c.update(func(s *State) {
			s.Challenge = ev.Challenge
		})

	case auth.EventLogout, auth.EventSessionExpired:
		c.update(func(s *State) {
			s.User = nil
			s.Challenge = nil
		})
	}
}

// refineProfile replaces the optimistic user with a freshly fetched profile.
// It only enriches: a fetch failure keeps the cached value, and the result
// is discarded if the session ended while the fetch was in flight.
func (c *Controller) refineProfile() {
	fresh, err := c.client.GetProfile(context.Background())
	if err != nil {
		c.log.Debug().Err(err).Msg("background profile refresh failed, keeping cached user")
		return
	}
	c.update(func(s *State) {
		if s.User != nil {
			s.User = fresh
		}
	})
}

// update applies fn to the state and notifies observers with the resulting
// snapshot. Mutation and snapshot happen under one lock hold, so observers
// never see a torn update.
func (c *Controller) update(fn func(*State)) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	fn(&c.state)
	snapshot := c.state
	observers := make([]observerEntry, len(c.observers))
	copy(observers, c.observers)
	c.lock.Unlock()

	for _, o := range observers {
		o.fn(snapshot)
	}
}
