package memory_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/store/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestStore(t *testing.T) {
	store := memory.NewStore()

	t.Run("empty store returns nil values", func(t *testing.T) {
		user, err := store.User()
		require.NoError(t, err)
		require.Nil(t, user)

		tokens, err := store.Tokens()
		require.NoError(t, err)
		require.Nil(t, tokens)

		id, err := store.ClientID()
		require.NoError(t, err)
		require.Empty(t, id)
	})

	t.Run("round trips", func(t *testing.T) {
		require.NoError(t, store.SetUser(&auth.User{ID: "user-1"}))
		require.NoError(t, store.SetTokens(&oauth2.Token{AccessToken: "access-1"}))
		require.NoError(t, store.SetChallenge(&auth.AuthResponse{ChallengeName: auth.ChallengeVerifyPhone, Session: "s1"}))
		require.NoError(t, store.SetClientID("install-1"))

		user, err := store.User()
		require.NoError(t, err)
		require.Equal(t, "user-1", user.ID)

		challenge, err := store.Challenge()
		require.NoError(t, err)
		require.Equal(t, "s1", challenge.Session)
	})

	t.Run("nil deletes", func(t *testing.T) {
		require.NoError(t, store.SetChallenge(nil))
		challenge, err := store.Challenge()
		require.NoError(t, err)
		require.Nil(t, challenge)
	})

	t.Run("clear keeps the client id", func(t *testing.T) {
		require.NoError(t, store.Clear())

		user, err := store.User()
		require.NoError(t, err)
		require.Nil(t, user)

		id, err := store.ClientID()
		require.NoError(t, err)
		require.Equal(t, "install-1", id)
	})
}
