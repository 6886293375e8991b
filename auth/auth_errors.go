package auth

import "errors"

var (
	ErrSessionExpired     = errors.New("session expired")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrUnknownChallenge   = errors.New("unknown challenge kind")
	ErrChallengeMismatch  = errors.New("challenge mismatch")
	ErrMissingField       = errors.New("missing required field")
	ErrResendNotSupported = errors.New("resend not supported for this challenge")
)
