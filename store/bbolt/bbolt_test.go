package bbolt_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/store/bbolt"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func openStore(t *testing.T, path string) *bbolt.Store {
	t.Helper()
	store, err := bbolt.NewStoreFromFile(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	t.Run("user", func(t *testing.T) {
		user, err := store.User()
		require.NoError(t, err)
		require.Nil(t, user)

		require.NoError(t, store.SetUser(&auth.User{ID: "user-1", Email: "a@b.c", EmailVerified: true}))
		user, err = store.User()
		require.NoError(t, err)
		require.Equal(t, "user-1", user.ID)
		require.True(t, user.EmailVerified)

		require.NoError(t, store.SetUser(nil))
		user, err = store.User()
		require.NoError(t, err)
		require.Nil(t, user)
	})

	t.Run("tokens", func(t *testing.T) {
		expiry := time.Now().Add(15 * time.Minute).Truncate(time.Second)
		require.NoError(t, store.SetTokens(&oauth2.Token{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenType:    "bearer",
			Expiry:       expiry,
		}))

		tokens, err := store.Tokens()
		require.NoError(t, err)
		require.Equal(t, "access-1", tokens.AccessToken)
		require.Equal(t, "refresh-1", tokens.RefreshToken)
		require.True(t, tokens.Expiry.Equal(expiry))
	})

	t.Run("challenge", func(t *testing.T) {
		require.NoError(t, store.SetChallenge(&auth.AuthResponse{
			ChallengeName:       auth.ChallengeMFARequired,
			Session:             "s1",
			ChallengeParameters: map[string]string{"allowedMethods": "totp"},
		}))

		challenge, err := store.Challenge()
		require.NoError(t, err)
		require.Equal(t, auth.ChallengeMFARequired, challenge.ChallengeName)
		require.Equal(t, "s1", challenge.Session)

		require.NoError(t, store.SetChallenge(nil))
		challenge, err = store.Challenge()
		require.NoError(t, err)
		require.Nil(t, challenge)
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := bbolt.NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetUser(&auth.User{ID: "user-1", Email: "a@b.c"}))
	require.NoError(t, store.SetClientID("install-1"))
	require.NoError(t, store.Close())

	reopened := openStore(t, path)
	user, err := reopened.User()
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)

	id, err := reopened.ClientID()
	require.NoError(t, err)
	require.Equal(t, "install-1", id)
}

func TestStore_Clear(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "session.db"))

	require.NoError(t, store.SetUser(&auth.User{ID: "user-1"}))
	require.NoError(t, store.SetTokens(&oauth2.Token{AccessToken: "access-1"}))
	require.NoError(t, store.SetChallenge(&auth.AuthResponse{ChallengeName: auth.ChallengeVerifyEmail, Session: "s1"}))
	require.NoError(t, store.SetClientID("install-1"))

	require.NoError(t, store.Clear())

	user, err := store.User()
	require.NoError(t, err)
	require.Nil(t, user)

	tokens, err := store.Tokens()
	require.NoError(t, err)
	require.Nil(t, tokens)

	challenge, err := store.Challenge()
	require.NoError(t, err)
	require.Nil(t, challenge)

	// The install ID is not session state and survives.
	id, err := store.ClientID()
	require.NoError(t, err)
	require.Equal(t, "install-1", id)
}
