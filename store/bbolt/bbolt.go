// Package bbolt persists the client session state in a local BBolt file so
// it survives process restarts.
package bbolt

import (
	"encoding/json"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/oauth2"
)

var bucketSession = []byte("session")

// Record keys within the session bucket.
const (
	keyUser      = "user"
	keyTokens    = "tokens"
	keyChallenge = "challenge"
	keyClientID  = "client_id"
)

// Store implements auth.SessionStore backed by a BBolt database.
type Store struct {
	db *bolt.DB
}

var _ auth.SessionStore = (*Store)(nil)

// NewStore wraps an already-opened BBolt database.
func NewStore(db *bolt.DB) *Store {
	return &Store{db: db}
}

// NewStoreFromFile opens (or creates) a BBolt database at path.
func NewStoreFromFile(path string, options *bolt.Options) (*Store, error) {
	db, err := bolt.Open(path, 0600, options)
	if err != nil {
		return nil, errors.Wrap(err, "[bbolt.NewStoreFromFile] open db")
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) User() (*auth.User, error) {
	var user *auth.User
	err := s.get(keyUser, &user)
	return user, err
}

func (s *Store) SetUser(u *auth.User) error {
	return s.put(keyUser, u)
}

func (s *Store) Tokens() (*oauth2.Token, error) {
	var tokens *oauth2.Token
	err := s.get(keyTokens, &tokens)
	return tokens, err
}

func (s *Store) SetTokens(t *oauth2.Token) error {
	return s.put(keyTokens, t)
}

func (s *Store) Challenge() (*auth.AuthResponse, error) {
	var challenge *auth.AuthResponse
	err := s.get(keyChallenge, &challenge)
	return challenge, err
}

func (s *Store) SetChallenge(c *auth.AuthResponse) error {
	return s.put(keyChallenge, c)
}

func (s *Store) ClientID() (string, error) {
	var id string
	err := s.get(keyClientID, &id)
	return id, err
}

func (s *Store) SetClientID(id string) error {
	return s.put(keyClientID, id)
}

// Clear removes the session records but keeps the client ID: it identifies
// the install, not the session.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		for _, key := range []string{keyUser, keyTokens, keyChallenge} {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// put stores v as JSON; a nil (or nil-pointer) value deletes the key.
func (s *Store) put(key string, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSession)
		if err != nil {
			return err
		}
		if isNil(v) {
			return b.Delete([]byte(key))
		}
		data, err := json.Marshal(v)
		if err != nil {
			return errors.Wrapf(err, "[bbolt.Store] marshal %s", key)
		}
		return b.Put([]byte(key), data)
	})
}

// get loads JSON into v; a missing key leaves v untouched and returns nil.
func (s *Store) get(key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		return errors.Wrapf(json.Unmarshal(data, v), "[bbolt.Store] unmarshal %s", key)
	})
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *auth.User:
		return t == nil
	case *oauth2.Token:
		return t == nil
	case *auth.AuthResponse:
		return t == nil
	}
	return false
}
