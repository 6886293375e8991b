package auth_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/stretchr/testify/require"
)

func pendingChallenge(kind auth.ChallengeKind, session string, params map[string]string) *auth.AuthResponse {
	return &auth.AuthResponse{
		ChallengeName:       kind,
		Session:             session,
		ChallengeParameters: params,
	}
}

func TestStepFor(t *testing.T) {
	t.Run("verification challenges need a code only", func(t *testing.T) {
		for _, kind := range []auth.ChallengeKind{auth.ChallengeVerifyEmail, auth.ChallengeVerifyPhone} {
			step, err := auth.StepFor(pendingChallenge(kind, "s1", nil))
			require.NoError(t, err)
			require.True(t, step.NeedsCode)
			require.False(t, step.NeedsMethod)
			require.False(t, step.NeedsNewPassword)
			require.False(t, step.DedicatedFlow)
		}
	})

	t.Run("MFA needs method and code", func(t *testing.T) {
		step, err := auth.StepFor(pendingChallenge(auth.ChallengeMFARequired, "s1", nil))
		require.NoError(t, err)
		require.True(t, step.NeedsCode)
		require.True(t, step.NeedsMethod)
		require.False(t, step.DedicatedFlow)
	})

	t.Run("MFA setup is a dedicated two-phase flow", func(t *testing.T) {
		step, err := auth.StepFor(pendingChallenge(auth.ChallengeMFASetupRequired, "s1", nil))
		require.NoError(t, err)
		require.True(t, step.NeedsMethod)
		require.True(t, step.NeedsSetupData)
		require.True(t, step.DedicatedFlow)
		require.False(t, step.NeedsCode)
	})

	t.Run("forced password change needs only the new password", func(t *testing.T) {
		step, err := auth.StepFor(pendingChallenge(auth.ChallengeChangePassword, "s1", nil))
		require.NoError(t, err)
		require.True(t, step.NeedsNewPassword)
		require.False(t, step.NeedsCode)
	})

	t.Run("terminal response has no step", func(t *testing.T) {
		_, err := auth.StepFor(&auth.AuthResponse{})
		require.ErrorIs(t, err, auth.ErrNoPendingChallenge)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		_, err := auth.StepFor(pendingChallenge("CAPTCHA", "s1", nil))
		require.ErrorIs(t, err, auth.ErrUnknownChallenge)
	})
}

func TestSupportsResend(t *testing.T) {
	require.True(t, auth.SupportsResend(auth.ChallengeVerifyEmail, ""))
	require.True(t, auth.SupportsResend(auth.ChallengeVerifyPhone, ""))
	require.True(t, auth.SupportsResend(auth.ChallengeMFARequired, auth.MethodSMS))
	require.True(t, auth.SupportsResend(auth.ChallengeMFARequired, auth.MethodEmail))
	require.False(t, auth.SupportsResend(auth.ChallengeMFARequired, auth.MethodTOTP))
	require.False(t, auth.SupportsResend(auth.ChallengeMFASetupRequired, auth.MethodTOTP))
	require.False(t, auth.SupportsResend(auth.ChallengeChangePassword, ""))
}

func TestAllowedMethods(t *testing.T) {
	t.Run("parses the comma-separated list", func(t *testing.T) {
		resp := pendingChallenge(auth.ChallengeMFARequired, "s1", map[string]string{
			"allowedMethods": "totp, sms",
		})
		require.Equal(t, []string{"totp", "sms"}, auth.AllowedMethods(resp))
	})

	t.Run("absent parameters yield nil", func(t *testing.T) {
		require.Nil(t, auth.AllowedMethods(pendingChallenge(auth.ChallengeMFARequired, "s1", nil)))
		require.Nil(t, auth.AllowedMethods(nil))
	})
}

func TestValidateResponse(t *testing.T) {
	pending := pendingChallenge(auth.ChallengeMFARequired, "s1", nil)

	t.Run("accepts a complete matching response", func(t *testing.T) {
		err := auth.ValidateResponse(pending, auth.ChallengeResponse{
			Type:    auth.ChallengeMFARequired,
			Session: "s1",
			Method:  auth.MethodTOTP,
			Code:    "123456",
		})
		require.NoError(t, err)
	})

	t.Run("rejects a type mismatch", func(t *testing.T) {
		err := auth.ValidateResponse(pending, auth.ChallengeResponse{
			Type:    auth.ChallengeVerifyEmail,
			Session: "s1",
			Code:    "123456",
		})
		require.ErrorIs(t, err, auth.ErrChallengeMismatch)
	})

	t.Run("rejects an unthreaded session token", func(t *testing.T) {
		err := auth.ValidateResponse(pending, auth.ChallengeResponse{
			Type:    auth.ChallengeMFARequired,
			Session: "something-else",
			Method:  auth.MethodTOTP,
			Code:    "123456",
		})
		require.ErrorIs(t, err, auth.ErrChallengeMismatch)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		err := auth.ValidateResponse(pending, auth.ChallengeResponse{
			Type:    auth.ChallengeMFARequired,
			Session: "s1",
			Method:  auth.MethodTOTP,
		})
		require.ErrorIs(t, err, auth.ErrMissingField)

		err = auth.ValidateResponse(
			pendingChallenge(auth.ChallengeChangePassword, "s2", nil),
			auth.ChallengeResponse{Type: auth.ChallengeChangePassword, Session: "s2"},
		)
		require.ErrorIs(t, err, auth.ErrMissingField)
	})

	t.Run("setup data accepts either device id or code", func(t *testing.T) {
		setupPending := pendingChallenge(auth.ChallengeMFASetupRequired, "s3", nil)

		err := auth.ValidateResponse(setupPending, auth.ChallengeResponse{
			Type:      auth.ChallengeMFASetupRequired,
			Session:   "s3",
			Method:    auth.MethodSMS,
			SetupData: &auth.SetupData{DeviceID: "device-1"},
		})
		require.NoError(t, err)

		err = auth.ValidateResponse(setupPending, auth.ChallengeResponse{
			Type:      auth.ChallengeMFASetupRequired,
			Session:   "s3",
			Method:    auth.MethodSMS,
			SetupData: &auth.SetupData{Code: "654321"},
		})
		require.NoError(t, err)

		err = auth.ValidateResponse(setupPending, auth.ChallengeResponse{
			Type:    auth.ChallengeMFASetupRequired,
			Session: "s3",
			Method:  auth.MethodSMS,
		})
		require.ErrorIs(t, err, auth.ErrMissingField)
	})

	t.Run("no pending challenge", func(t *testing.T) {
		err := auth.ValidateResponse(nil, auth.ChallengeResponse{Type: auth.ChallengeMFARequired})
		require.ErrorIs(t, err, auth.ErrNoPendingChallenge)
	})
}
