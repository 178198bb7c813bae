package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authServer is a scripted directory auth endpoint. statuses is the
// sequence of MFA states returned by successive status polls; the last
// entry repeats.
type authServer struct {
	statuses []string
	token    string
	polls    atomic.Int32
	srv      *httptest.Server
}

func newAuthServer(t *testing.T, token string, statuses ...string) *authServer {
	t.Helper()
	a := &authServer{statuses: statuses, token: token}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"challenge_id": "ch-1"})
	})
	mux.HandleFunc("POST /api/mfa/verify", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /api/mfa/status", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ch-1", r.URL.Query().Get("challenge_id"))
		n := int(a.polls.Add(1)) - 1
		if n >= len(a.statuses) {
			n = len(a.statuses) - 1
		}
		resp := map[string]string{"status": a.statuses[n]}
		if a.statuses[n] == "approved" {
			resp["token"] = a.token
		}
		json.NewEncoder(w).Encode(resp)
	})

	a.srv = httptest.NewTLSServer(mux)
	t.Cleanup(a.srv.Close)
	return a
}

func (a *authServer) manager(t *testing.T, timeout time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		BaseURL:      a.srv.URL,
		MFATimeout:   timeout,
		PollInterval: 5 * time.Millisecond,
		HTTPClient:   a.srv.Client(),
	})
	require.NoError(t, err)
	return m
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

// TestAuthenticate_ApprovedAfterPolls tests the happy path: pending
// polls followed by approval yield a usable session.
func TestAuthenticate_ApprovedAfterPolls(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	a := newAuthServer(t, signedToken(t, exp), "pending", "pending", "approved")
	m := a.manager(t, time.Minute)

	sess, err := m.Authenticate(context.Background(), Credentials{Username: "op", Password: "hunter2"})
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.GreaterOrEqual(t, a.polls.Load(), int32(3))
	assert.True(t, sess.Valid(time.Now()))
	assert.False(t, sess.Valid(exp.Add(time.Second)), "session expires with the token")
	assert.WithinDuration(t, exp, sess.ExpiresAt(), time.Second)
}

// TestAuthenticate_InvalidCredentials tests the fatal login rejection.
func TestAuthenticate_InvalidCredentials(t *testing.T) {
	a := newAuthServer(t, "", "approved")
	m := a.manager(t, time.Minute)

	sess, err := m.Authenticate(context.Background(), Credentials{Username: "op", Password: "wrong"})
	require.Error(t, err)
	assert.Nil(t, sess)

	var ie *InvalidCredentialsError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "op", ie.Username)
	assert.True(t, IsInvalidCredentials(err))
	assert.Equal(t, int32(0), a.polls.Load(), "no MFA traffic after a rejected login")
}

// TestAuthenticate_Rejected tests the fatal MFA denial.
func TestAuthenticate_Rejected(t *testing.T) {
	a := newAuthServer(t, "", "pending", "rejected")
	m := a.manager(t, time.Minute)

	_, err := m.Authenticate(context.Background(), Credentials{Username: "op", Password: "hunter2"})
	require.Error(t, err)
	assert.True(t, IsRejected(err))
}

// TestAuthenticate_Timeout tests the operator-configurable approval
// timeout.
func TestAuthenticate_Timeout(t *testing.T) {
	a := newAuthServer(t, "", "pending")
	m := a.manager(t, 25*time.Millisecond)

	_, err := m.Authenticate(context.Background(), Credentials{Username: "op", Password: "hunter2"})
	require.Error(t, err)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "ch-1", te.ChallengeID)
	assert.True(t, IsTimeout(err))
}

// TestAuthenticate_ContextCancelled tests that the approval wait honors
// cancellation between polls.
func TestAuthenticate_ContextCancelled(t *testing.T) {
	a := newAuthServer(t, "", "pending")
	m := a.manager(t, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	_, err := m.Authenticate(ctx, Credentials{Username: "op", Password: "hunter2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestAuthenticate_OpaqueToken tests that a non-JWT token still yields
// a session, just without expiry bookkeeping.
func TestAuthenticate_OpaqueToken(t *testing.T) {
	a := newAuthServer(t, "opaque-bearer-token", "approved")
	m := a.manager(t, time.Minute)

	sess, err := m.Authenticate(context.Background(), Credentials{Username: "op", Password: "hunter2"})
	require.NoError(t, err)

	assert.True(t, sess.Valid(time.Now()))
	assert.True(t, sess.ExpiresAt().IsZero())
}

// TestNewManager_RequiresHTTPS tests the secure-endpoint requirement.
func TestNewManager_RequiresHTTPS(t *testing.T) {
	_, err := NewManager(Config{BaseURL: "http://directory.example.edu"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https")
}

// TestSession_DoAttachesBearer tests request decoration.
func TestSession_DoAttachesBearer(t *testing.T) {
	var gotAuth string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	sess := newSession(mustParseURL(t, srv.URL), "tok-123", srv.Client())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/anything", nil)
	require.NoError(t, err)
	resp, err := sess.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
