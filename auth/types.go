// Package auth contains the wire types exchanged with the remote
// authentication service, the challenge decision table, and the session
// client that drives login, signup, challenge and refresh flows over a
// transport.Doer.
package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// User is the identity snapshot returned by the profile endpoint. It is
// replaced wholesale on every fetch, never partially mutated.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Phone           *string   `json:"phone,omitempty"`
	EmailVerified   bool      `json:"emailVerified"`
	PhoneVerified   bool      `json:"phoneVerified"`
	MFAEnabled      bool      `json:"mfaEnabled"`
	SocialProviders []string  `json:"socialProviders,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// HasProvider reports whether the account is linked to the given social
// login provider.
func (u *User) HasProvider(provider string) bool {
	for _, p := range u.SocialProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// AuthResponse is the result of any auth operation. It is either terminal
// (no ChallengeName, credentials issued) or pending (ChallengeName set,
// Session carrying the opaque continuation token that must be threaded into
// the challenge response).
type AuthResponse struct {
	ChallengeName       ChallengeKind     `json:"challengeName,omitempty"`
	Session             string            `json:"session,omitempty"`
	ChallengeParameters map[string]string `json:"challengeParameters,omitempty"`
	Tokens              *TokenPayload     `json:"tokens,omitempty"`
	User                *User             `json:"user,omitempty"`
}

// Pending reports whether the response still requires a challenge round.
func (r *AuthResponse) Pending() bool {
	return r != nil && r.ChallengeName != ""
}

// TokenPayload is the credential material issued on a terminal auth
// response, in the standard OAuth2 token endpoint shape.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// OAuth2Token converts the payload into the x/oauth2 token container used
// for persistence and expiry checks.
func (t *TokenPayload) OAuth2Token(now time.Time) *oauth2.Token {
	if t == nil {
		return nil
	}
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if tok.TokenType == "" {
		tok.TokenType = "bearer"
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// Credentials are the inputs to a password login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupParams are the inputs to account creation. Phone is optional.
type SignupParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

// SetupData carries the second phase of MFA enrollment: either the device
// that was auto-completed because its destination was already verified, or
// the code from the OTP round trip.
type SetupData struct {
	DeviceID string `json:"deviceId,omitempty"`
	Code     string `json:"code,omitempty"`
}

// ChallengeResponse is the client's answer to a pending challenge. Type must
// equal the pending challenge kind and Session must equal the continuation
// token from the triggering AuthResponse; a stale Session is only ever
// detected remotely.
type ChallengeResponse struct {
	Type        ChallengeKind `json:"type"`
	Session     string        `json:"session"`
	Code        string        `json:"code,omitempty"`
	Method      string        `json:"method,omitempty"`
	SetupData   *SetupData    `json:"setupData,omitempty"`
	NewPassword string        `json:"newPassword,omitempty"`
}

// SetupChallengeData is returned by the challenge setup endpoint for
// MFA_SETUP_REQUIRED flows.
type SetupChallengeData struct {
	// DeviceID is set when the destination was already verified and
	// enrollment auto-completed server-side.
	DeviceID string `json:"deviceId,omitempty"`
	// Secret and OTPAuthURL are present for TOTP enrollment.
	Secret     string `json:"secret,omitempty"`
	OTPAuthURL string `json:"otpauthUrl,omitempty"`
	// Destination is the masked destination a code was sent to.
	Destination string `json:"destination,omitempty"`
}

// AutoCompleted reports whether enrollment finished during setup, in which
// case the challenge response carries the device ID instead of a code.
func (s *SetupChallengeData) AutoCompleted() bool {
	return s != nil && s.DeviceID != ""
}

// SocialRedirect is returned by the start-social-login endpoint.
type SocialRedirect struct {
	URL string `json:"url"`
}
