package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dirmail/dirmail/internal/session"
)

// Client is the HTTP implementation of the directory search
// collaborator.
type Client struct{}

// NewClient returns a directory search client.
func NewClient() *Client {
	return &Client{}
}

// searchPage is the wire form of one result page.
type searchPage struct {
	Results []searchEntry `json:"results"`
	HasMore bool          `json:"has_more"`
}

// Search starts a directory search and returns the lazy result stream.
// The first page is fetched eagerly so that an unreachable service or a
// bad query fails the run before any dispatch starts; later pages are
// fetched as the stream drains.
func (c *Client) Search(ctx context.Context, sess *session.Session, q Query) (*Results, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("search: query text is required")
	}

	r := &Results{sess: sess, query: q.normalized(), page: 1}
	if err := r.fetch(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Results is a forward-only iterator over search candidates, in the
// order the service ranked them. Not safe for concurrent use.
type Results struct {
	sess  *session.Session
	query Query

	page int // next page to fetch (1-based)
	buf  []searchEntry
	done bool
}

// Next returns the next candidate. It returns io.EOF once the stream is
// exhausted and a non-EOF error if a page fetch fails; fetch errors are
// fatal to the enumeration and the stream cannot be resumed.
func (r *Results) Next(ctx context.Context) (Contact, error) {
	for {
		for len(r.buf) > 0 {
			entry := r.buf[0]
			r.buf = r.buf[1:]

			c, ok := entry.contact()
			if !ok {
				slog.Debug("skipping directory entry with no stable identity", "name", entry.Name)
				continue
			}
			return c, nil
		}

		if r.done {
			return Contact{}, io.EOF
		}
		if err := r.fetch(ctx); err != nil {
			r.done = true
			return Contact{}, err
		}
	}
}

// fetch loads the next page into the buffer.
func (r *Results) fetch(ctx context.Context) error {
	u := r.sess.BaseURL().JoinPath("api", "directory", "search")
	q := u.Query()
	q.Set("q", r.query.Text)
	q.Set("limit", strconv.Itoa(r.query.PageSize))
	q.Set("sortBy", r.query.SortBy)
	q.Set("page", strconv.Itoa(r.page))
	if r.query.ExcludeDeceased {
		q.Set("excludeDeceased", "true")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("search page %d: %w", r.page, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.sess.Do(req)
	if err != nil {
		return fmt.Errorf("search page %d: %w", r.page, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("search page %d: read body: %w", r.page, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("search page %d: unexpected status %d", r.page, resp.StatusCode)
	}

	var page searchPage
	if err := json.Unmarshal(b, &page); err != nil {
		return fmt.Errorf("search page %d: parse response: %w", r.page, err)
	}

	slog.Debug("fetched search page", "page", r.page, "results", len(page.Results), "has_more", page.HasMore)

	r.buf = page.Results
	r.page++
	if !page.HasMore {
		r.done = true
	}
	return nil
}
