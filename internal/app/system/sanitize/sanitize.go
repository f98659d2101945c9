// Package sanitize strips markup from user-supplied chat content before it
// is written to the store. Message bodies are plain text; anything that
// survives bluemonday's strict policy is what other participants will see.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxMessageLen caps message bodies. Longer bodies are rejected, not
// truncated, so the sender can see what happened.
const MaxMessageLen = 4000

var strict = bluemonday.StrictPolicy()

// MessageBody normalizes a chat message body: strips all HTML, collapses
// surrounding whitespace.
func MessageBody(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

// DisplayName sanitizes a user-supplied display name.
func DisplayName(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}
