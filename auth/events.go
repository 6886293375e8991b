package auth

import "sync"

// EventKind names the four session-state transitions the client emits. No
// other code path mutates the authenticated-user cache.
type EventKind string

const (
	// EventSuccess fires after login/signup/challenge-response resolves with
	// no further challenge. The user cache is updated before emission, so a
	// synchronous CurrentUser call from a handler is guaranteed fresh.
	EventSuccess EventKind = "auth:success"
	// EventChallenge fires whenever an operation resolves with a pending
	// challenge; the payload is that AuthResponse.
	EventChallenge EventKind = "auth:challenge"
	// EventLogout fires on explicit logout completion.
	EventLogout EventKind = "auth:logout"
	// EventSessionExpired fires when a refresh attempt fails irrecoverably.
	EventSessionExpired EventKind = "auth:session_expired"
)

// Event is delivered to subscribers. User is set for EventSuccess and
// Challenge for EventChallenge; logout and expiry carry no payload.
type Event struct {
	Kind      EventKind
	User      *User
	Challenge *AuthResponse
}

// Handler receives events. Handlers run synchronously on the goroutine that
// triggered the transition, in subscription order.
type Handler func(Event)

// emitter is a minimal observer registry. Subscribe returns an unsubscribe
// func. Handlers run on the goroutine that emits; delivery order is only
// meaningful for operations issued from a single goroutine, which is how the
// client is driven.
type emitter struct {
	lock     sync.Mutex
	nextID   int
	handlers []subscription
}

type subscription struct {
	id      int
	handler Handler
}

func (e *emitter) subscribe(h Handler) func() {
	e.lock.Lock()
	defer e.lock.Unlock()
	id := e.nextID
	e.nextID++
	e.handlers = append(e.handlers, subscription{id: id, handler: h})
	return func() { e.unsubscribe(id) }
}

func (e *emitter) unsubscribe(id int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	for i, s := range e.handlers {
		if s.id == id {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return
		}
	}
}

func (e *emitter) emit(ev Event) {
	e.lock.Lock()
	snapshot := make([]subscription, len(e.handlers))
	copy(snapshot, e.handlers)
	e.lock.Unlock()

	for _, s := range snapshot {
		s.handler(ev)
	}
}
