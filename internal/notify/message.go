package notify

import (
	"fmt"

	"github.com/dirmail/dirmail/internal/directory"
)

// Personalize prefixes the message body with a greeting for the
// contact. Falls back to a plain greeting when the directory entry has
// no display name.
func Personalize(c directory.Contact, body string) string {
	if c.DisplayName == "" {
		return "Hi,\n\n" + body
	}
	return fmt.Sprintf("Hi %s,\n\n%s", c.DisplayName, body)
}
