package session

import (
	"errors"
	"fmt"
	"time"
)

// InvalidCredentialsError is returned when the primary login is
// rejected. Fatal: retrying with the same credentials would only
// trip the directory service's lockout counters.
type InvalidCredentialsError struct {
	Username string
}

func (e *InvalidCredentialsError) Error() string {
	return fmt.Sprintf("login rejected for %q: invalid credentials", e.Username)
}

// IsInvalidCredentials returns true if the error is an
// InvalidCredentialsError. Uses errors.As to handle wrapped errors.
func IsInvalidCredentials(err error) bool {
	var ie *InvalidCredentialsError
	return errors.As(err, &ie)
}

// RejectedError is returned when the operator (or the service) denies
// the MFA challenge. Fatal - a denied push must never be re-sent
// automatically.
type RejectedError struct {
	ChallengeID string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mfa challenge %s was rejected", e.ChallengeID)
}

// IsRejected returns true if the error is a RejectedError.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// TimeoutError is returned when no MFA approval arrived within the
// configured wait. Fatal without operator intervention.
type TimeoutError struct {
	ChallengeID string
	Waited      time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mfa challenge %s not approved after %s", e.ChallengeID, e.Waited)
}

// IsTimeout returns true if the error is a TimeoutError.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
