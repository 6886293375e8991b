// Package memory provides an in-memory auth.SessionStore for tests and for
// sessions that should not outlive the process.
package memory

import (
	"github.com/jrsteele09/go-auth-client/auth"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

const (
	keyUser      = "user"
	keyTokens    = "tokens"
	keyChallenge = "challenge"
	keyClientID  = "client_id"
)

// Store implements auth.SessionStore on top of an in-process cache. Values
// never expire; they live exactly as long as the process.
type Store struct {
	cache *gocache.Cache
}

var _ auth.SessionStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (s *Store) User() (*auth.User, error) {
	if v, ok := s.cache.Get(keyUser); ok {
		return v.(*auth.User), nil
	}
	return nil, nil
}

func (s *Store) SetUser(u *auth.User) error {
	if u == nil {
		s.cache.Delete(keyUser)
		return nil
	}
	s.cache.SetDefault(keyUser, u)
	return nil
}

func (s *Store) Tokens() (*oauth2.Token, error) {
	if v, ok := s.cache.Get(keyTokens); ok {
		return v.(*oauth2.Token), nil
	}
	return nil, nil
}

func (s *Store) SetTokens(t *oauth2.Token) error {
	if t == nil {
		s.cache.Delete(keyTokens)
		return nil
	}
	s.cache.SetDefault(keyTokens, t)
	return nil
}

func (s *Store) Challenge() (*auth.AuthResponse, error) {
	if v, ok := s.cache.Get(keyChallenge); ok {
		return v.(*auth.AuthResponse), nil
	}
	return nil, nil
}

func (s *Store) SetChallenge(c *auth.AuthResponse) error {
	if c == nil {
		s.cache.Delete(keyChallenge)
		return nil
	}
	s.cache.SetDefault(keyChallenge, c)
	return nil
}

func (s *Store) ClientID() (string, error) {
	if v, ok := s.cache.Get(keyClientID); ok {
		return v.(string), nil
	}
	return "", nil
}

func (s *Store) SetClientID(id string) error {
	s.cache.SetDefault(keyClientID, id)
	return nil
}

func (s *Store) Clear() error {
	s.cache.Delete(keyUser)
	s.cache.Delete(keyTokens)
	s.cache.Delete(keyChallenge)
	return nil
}
