package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dirmail/dirmail/internal/directory"
	"github.com/dirmail/dirmail/internal/session"
)

// SendError describes a failed delivery attempt. It carries a reason
// for logging and the ledger; the outreach core does not classify it
// further.
type SendError struct {
	Identity   string
	StatusCode int // 0 when the request never completed
	Reason     string
}

func (e *SendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("send to %s failed: status %d: %s", e.Identity, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("send to %s failed: %s", e.Identity, e.Reason)
}

// IsSendError returns true if the error is a SendError.
// Uses errors.As to handle wrapped errors.
func IsSendError(err error) bool {
	var se *SendError
	return errors.As(err, &se)
}

// Client is the HTTP implementation of the notifier collaborator.
type Client struct {
	// SendCopy asks the service to mail a copy to the sender, the
	// service's own audit convenience.
	SendCopy bool
}

// NewClient returns a notifier. sendCopy mirrors the service's
// "send me a copy" option.
func NewClient(sendCopy bool) *Client {
	return &Client{SendCopy: sendCopy}
}

// messageRequest is the wire form of one send.
type messageRequest struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	CopySender bool   `json:"copy_sender"`
}

// Send delivers one message to one contact through the directory
// service's messaging endpoint. Any transport or status failure comes
// back as a SendError.
func (c *Client) Send(ctx context.Context, sess *session.Session, contact directory.Contact, subject, body string) error {
	if contact.Identity == "" {
		return &SendError{Reason: "contact has no identity"}
	}

	payload, err := json.Marshal(messageRequest{
		Subject:    subject,
		Body:       body,
		CopySender: c.SendCopy,
	})
	if err != nil {
		return &SendError{Identity: contact.Identity, Reason: fmt.Sprintf("marshal message: %v", err)}
	}

	u := sess.BaseURL().JoinPath("api", "people", contact.Identity, "messages")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return &SendError{Identity: contact.Identity, Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sess.Do(req)
	if err != nil {
		return &SendError{Identity: contact.Identity, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Read a little of the body for the reason; services return
		// short JSON or plain-text error messages here.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &SendError{
			Identity:   contact.Identity,
			StatusCode: resp.StatusCode,
			Reason:     string(bytes.TrimSpace(b)),
		}
	}

	return nil
}
