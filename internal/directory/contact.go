package directory

import (
	"strconv"

	"github.com/dirmail/dirmail/internal/ledger"
)

// Contact identifies one directory entry for a single run.
//
// Contacts are never persisted; only the identity and the outreach
// outcome reach the ledger. Descriptive attributes change only when the
// directory is searched again, never inside the outreach core.
type Contact struct {
	// Identity is the stable unique key used for deduplication:
	// the directory-assigned person ID when present, otherwise the
	// normalized email address.
	Identity string

	DisplayName   string
	Email         string
	ProfileURL    string
	ProfileFields map[string]string
}

// searchEntry is the wire form of one search result.
type searchEntry struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	ProfileURL string            `json:"profile_url"`
	Fields     map[string]string `json:"fields"`
}

// contact converts a wire entry to a Contact, deriving the identity.
// Entries with neither a person ID nor an email have no stable key and
// yield ok=false; they cannot be deduplicated and are skipped.
func (e searchEntry) contact() (Contact, bool) {
	c := Contact{
		DisplayName:   e.Name,
		Email:         e.Email,
		ProfileURL:    e.ProfileURL,
		ProfileFields: e.Fields,
	}

	switch {
	case e.ID > 0:
		c.Identity = strconv.FormatInt(e.ID, 10)
	case e.Email != "":
		c.Identity = ledger.NormalizeIdentity(e.Email)
	default:
		return Contact{}, false
	}
	return c, true
}
