package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the authenticated context handed to the directory
// searcher and the notifier. It decorates their requests with the
// bearer token obtained through MFA.
type Session struct {
	base      *url.URL
	token     string
	expiresAt time.Time // zero when the token carries no expiry
	httpc     *http.Client
}

// NewWithToken builds a session from a pre-issued bearer token,
// skipping the login and MFA exchange. Used when an operator already
// holds a valid token and by tests that fake the directory service.
func NewWithToken(baseURL, token string, httpc *http.Client) (*Session, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return newSession(base, token, httpc), nil
}

func newSession(base *url.URL, token string, httpc *http.Client) *Session {
	s := &Session{base: base, token: token, httpc: httpc}

	// The token is issued by the service we just authenticated to, so
	// no signature check is needed here - the expiry claim is parsed
	// only so a long run can notice a revoked session before a send
	// fails with a 401.
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			s.expiresAt = exp.Time
		}
	} else {
		slog.Debug("session token is not a JWT, expiry unknown")
	}

	return s
}

// BaseURL returns the directory service root for building request URLs.
func (s *Session) BaseURL() *url.URL {
	return s.base
}

// Valid reports whether the session token is still usable at now.
// Tokens without an expiry claim are treated as non-expiring.
func (s *Session) Valid(now time.Time) bool {
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || now.Before(s.expiresAt)
}

// ExpiresAt returns the token expiry, zero if unknown.
func (s *Session) ExpiresAt() time.Time {
	return s.expiresAt
}

// Do sends the request with the session's bearer token attached.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.httpc.Do(req)
}
