package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Default timings for the MFA approval wait. The approval is a human
// tapping a push notification, so the poll is slow and the default
// patience generous.
const (
	DefaultMFATimeout   = 5 * time.Minute
	DefaultPollInterval = 2 * time.Second
)

// Credentials carries the primary login secret pair.
type Credentials struct {
	Username string
	Password string
}

// Config configures a Manager.
type Config struct {
	// BaseURL is the directory service root. Must be https.
	BaseURL string

	// MFATimeout bounds the approval wait. Zero means DefaultMFATimeout;
	// negative means wait forever.
	MFATimeout time.Duration

	// PollInterval is the gap between MFA status checks.
	// Zero means DefaultPollInterval.
	PollInterval time.Duration

	// HTTPClient overrides the transport. Nil means a fresh client with
	// a per-request timeout suited to interactive auth endpoints.
	HTTPClient *http.Client
}

// Manager performs the two-phase authentication against the directory
// service: primary login followed by an out-of-band MFA approval.
type Manager struct {
	base     *url.URL
	timeout  time.Duration
	interval time.Duration
	httpc    *http.Client
}

// NewManager validates the config and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be https: credentials travel on this connection", cfg.BaseURL)
	}

	timeout := cfg.MFATimeout
	switch {
	case timeout == 0:
		timeout = DefaultMFATimeout
	case timeout < 0:
		timeout = 0 // wait forever
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}

	return &Manager{base: base, timeout: timeout, interval: interval, httpc: httpc}, nil
}

type loginResponse struct {
	ChallengeID string `json:"challenge_id"`
}

type mfaStatusResponse struct {
	Status string `json:"status"` // "pending" | "approved" | "rejected"
	Token  string `json:"token"`  // present once approved
}

// Authenticate performs the primary login, triggers the MFA push, and
// blocks polling for approval. It returns an authenticated Session, or
// one of the fatal auth errors: InvalidCredentialsError, RejectedError,
// TimeoutError.
//
// The approval wait honors ctx cancellation between polls.
func (m *Manager) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("authenticate: username and password are required")
	}

	challengeID, err := m.login(ctx, creds)
	if err != nil {
		return nil, err
	}
	slog.Info("login accepted, awaiting multi-factor approval", "challenge", challengeID)

	if err := m.sendPush(ctx, challengeID); err != nil {
		return nil, err
	}
	slog.Info("mfa push sent, approve on your device")

	token, err := m.awaitApproval(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	slog.Info("multi-factor approval received")

	return newSession(m.base, token, m.httpc), nil
}

// login posts the credentials and returns the MFA challenge ID.
func (m *Manager) login(ctx context.Context, creds Credentials) (string, error) {
	body := map[string]string{"username": creds.Username, "password": creds.Password}

	var resp loginResponse
	status, err := m.postJSON(ctx, "api/login", body, &resp)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", &InvalidCredentialsError{Username: creds.Username}
	}
	if status/100 != 2 {
		return "", fmt.Errorf("login: unexpected status %d", status)
	}
	if resp.ChallengeID == "" {
		return "", fmt.Errorf("login: response missing challenge_id")
	}
	return resp.ChallengeID, nil
}

// sendPush asks the service to push the MFA prompt to the operator's
// enrolled device.
func (m *Manager) sendPush(ctx context.Context, challengeID string) error {
	body := map[string]string{"challenge_id": challengeID}
	status, err := m.postJSON(ctx, "api/mfa/verify", body, nil)
	if err != nil {
		return fmt.Errorf("mfa push: %w", err)
	}
	if status/100 != 2 {
		return fmt.Errorf("mfa push: unexpected status %d", status)
	}
	return nil
}

// awaitApproval polls the challenge status until approved, rejected,
// timed out, or ctx is cancelled. Returns the bearer token on approval.
func (m *Manager) awaitApproval(ctx context.Context, challengeID string) (string, error) {
	var deadline <-chan time.Time
	start := time.Now()
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		status, err := m.pollStatus(ctx, challengeID)
		if err != nil {
			return "", err
		}
		switch status.Status {
		case "approved":
			if status.Token == "" {
				return "", fmt.Errorf("mfa status: approved without token")
			}
			return status.Token, nil
		case "rejected":
			return "", &RejectedError{ChallengeID: challengeID}
		case "pending":
			// keep polling
		default:
			return "", fmt.Errorf("mfa status: unknown state %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", &TimeoutError{ChallengeID: challengeID, Waited: time.Since(start).Round(time.Second)}
		case <-ticker.C:
		}
	}
}

func (m *Manager) pollStatus(ctx context.Context, challengeID string) (mfaStatusResponse, error) {
	u := m.resolve("api/mfa/status")
	q := u.Query()
	q.Set("challenge_id", challengeID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return mfaStatusResponse{}, fmt.Errorf("mfa status: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return mfaStatusResponse{}, fmt.Errorf("mfa status: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return mfaStatusResponse{}, fmt.Errorf("mfa status: read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return mfaStatusResponse{}, fmt.Errorf("mfa status: unexpected status %d", resp.StatusCode)
	}

	var out mfaStatusResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return mfaStatusResponse{}, fmt.Errorf("mfa status: parse response: %w", err)
	}
	return out, nil
}

// postJSON posts v to the path and decodes the body into out when out
// is non-nil and the status is 2xx. The status code is always returned
// so callers can map auth-specific codes to typed errors.
func (m *Manager) postJSON(ctx context.Context, path string, v, out any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.resolve(path).String(), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}

	if out != nil && resp.StatusCode/100 == 2 {
		if err := json.Unmarshal(b, out); err != nil {
			return resp.StatusCode, fmt.Errorf("parse response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (m *Manager) resolve(path string) *url.URL {
	return m.base.JoinPath(path)
}
