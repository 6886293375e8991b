package auth

import (
	"strings"

	"github.com/pkg/errors"
)

// ChallengeKind is the closed set of verification steps the remote service
// can route a user through. An AuthResponse carries at most one.
type ChallengeKind string

const (
	ChallengeVerifyEmail      ChallengeKind = "VERIFY_EMAIL"
	ChallengeVerifyPhone      ChallengeKind = "VERIFY_PHONE"
	ChallengeMFARequired      ChallengeKind = "MFA_REQUIRED"
	ChallengeMFASetupRequired ChallengeKind = "MFA_SETUP_REQUIRED"
	ChallengeChangePassword   ChallengeKind = "FORCE_CHANGE_PASSWORD"
)

// MFA method names as they appear in challengeParameters and challenge
// responses.
const (
	MethodTOTP  = "totp"
	MethodSMS   = "sms"
	MethodEmail = "email"
)

// challengeParameters keys set by the remote service.
const (
	paramAllowedMethods = "allowedMethods"
	paramDestination    = "destination"
)

// Valid reports whether k is one of the known challenge kinds.
func (k ChallengeKind) Valid() bool {
	switch k {
	case ChallengeVerifyEmail, ChallengeVerifyPhone, ChallengeMFARequired,
		ChallengeMFASetupRequired, ChallengeChangePassword:
		return true
	}
	return false
}

// Step is one row of the challenge decision table: which fields a response
// to the challenge must carry and how the flow around it behaves.
type Step struct {
	Kind             ChallengeKind
	NeedsCode        bool
	NeedsMethod      bool
	NeedsNewPassword bool
	NeedsSetupData   bool
	// DedicatedFlow marks challenges that cannot go through the generic
	// code-entry flow. MFA_SETUP_REQUIRED needs a setup-data round trip
	// before any code exists to enter.
	DedicatedFlow bool
}

// steps is the decision table itself. MFA_REQUIRED always needs a code: for
// TOTP the code comes from the user's authenticator rather than a sent
// message, which is why nothing is delivered (and nothing can be resent),
// but the response still carries it.
var steps = map[ChallengeKind]Step{
	ChallengeVerifyEmail: {
		Kind:      ChallengeVerifyEmail,
		NeedsCode: true,
	},
	ChallengeVerifyPhone: {
		Kind:      ChallengeVerifyPhone,
		NeedsCode: true,
	},
	ChallengeMFARequired: {
		Kind:        ChallengeMFARequired,
		NeedsCode:   true,
		NeedsMethod: true,
	},
	ChallengeMFASetupRequired: {
		Kind:           ChallengeMFASetupRequired,
		NeedsMethod:    true,
		NeedsSetupData: true,
		DedicatedFlow:  true,
	},
	ChallengeChangePassword: {
		Kind:             ChallengeChangePassword,
		NeedsNewPassword: true,
	},
}

// StepFor resolves the decision-table row for a pending response.
func StepFor(resp *AuthResponse) (Step, error) {
	if !resp.Pending() {
		return Step{}, ErrNoPendingChallenge
	}
	step, ok := steps[resp.ChallengeName]
	if !ok {
		return Step{}, errors.Wrapf(ErrUnknownChallenge, "%q", resp.ChallengeName)
	}
	return step, nil
}

// SupportsResend reports whether a new code can be requested for the given
// challenge kind and method. TOTP codes are generated offline, so there is
// nothing to resend; password changes have no code at all.
func SupportsResend(kind ChallengeKind, method string) bool {
	switch kind {
	case ChallengeVerifyEmail, ChallengeVerifyPhone:
		return true
	case ChallengeMFARequired, ChallengeMFASetupRequired:
		return method != MethodTOTP
	}
	return false
}

// AllowedMethods extracts the MFA methods the remote service offered in
// challengeParameters (comma-separated).
func AllowedMethods(resp *AuthResponse) []string {
	if resp == nil || resp.ChallengeParameters == nil {
		return nil
	}
	raw := resp.ChallengeParameters[paramAllowedMethods]
	if raw == "" {
		return nil
	}
	var methods []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, m)
		}
	}
	return methods
}

// MaskedDestination returns the masked delivery destination hint, if the
// remote service provided one.
func MaskedDestination(resp *AuthResponse) string {
	if resp == nil || resp.ChallengeParameters == nil {
		return ""
	}
	return resp.ChallengeParameters[paramDestination]
}

// ValidateResponse checks the shape of a challenge response against the
// pending challenge: matching type, threaded session token, and the fields
// the decision table requires. It never second-guesses the remote service on
// whether the session token is still live.
func ValidateResponse(pending *AuthResponse, cr ChallengeResponse) error {
	step, err := StepFor(pending)
	if err != nil {
		return err
	}
	if cr.Type != pending.ChallengeName {
		return errors.Wrapf(ErrChallengeMismatch, "response type %q does not match pending challenge %q", cr.Type, pending.ChallengeName)
	}
	if cr.Session != pending.Session {
		return errors.Wrap(ErrChallengeMismatch, "response session does not match pending challenge")
	}
	if step.NeedsCode && cr.Code == "" {
		return errors.Wrapf(ErrMissingField, "challenge %q requires a code", cr.Type)
	}
	if step.NeedsMethod && cr.Method == "" {
		return errors.Wrapf(ErrMissingField, "challenge %q requires a method", cr.Type)
	}
	if step.NeedsNewPassword && cr.NewPassword == "" {
		return errors.Wrapf(ErrMissingField, "challenge %q requires a new password", cr.Type)
	}
	if step.NeedsSetupData {
		if cr.SetupData == nil || (cr.SetupData.DeviceID == "" && cr.SetupData.Code == "") {
			return errors.Wrapf(ErrMissingField, "challenge %q requires setup data with a device id or code", cr.Type)
		}
	}
	return nil
}
