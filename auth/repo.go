package auth

import "golang.org/x/oauth2"

// SessionStore persists the client state that must survive a process
// restart: the last-known user snapshot, the credential material needed to
// re-authenticate silently, any pending challenge, and the per-install
// client ID. Implementations live under store/; absent values are returned
// as (nil, nil) / ("", nil), and storing nil deletes.
type SessionStore interface {
	User() (*User, error)
	SetUser(u *User) error

	Tokens() (*oauth2.Token, error)
	SetTokens(t *oauth2.Token) error

	Challenge() (*AuthResponse, error)
	SetChallenge(c *AuthResponse) error

	ClientID() (string, error)
	SetClientID(id string) error

	// Clear removes user, tokens, and challenge. The client ID survives: it
	// identifies the install, not the session.
	Clear() error
}
