package session

import (
	"strings"

	"github.com/google/uuid"
)

// footerPrefix is the fixed format carrying the interaction id inside
// outward messages. It is the only correlation between a UI event and
// a stored snapshot, so the format is a stable contract.
const footerPrefix = "Persistent Session ID: "

// EmbedID appends the identifier footer to a message body.
func EmbedID(body, id string) string {
	if body == "" {
		return footerPrefix + id
	}
	return body + "\n\n" + footerPrefix + id
}

// ExtractID recovers the interaction id from message text. It is an
// exact-format parse: the footer line must start with the prefix and
// carry a valid UUID. ok is false on any deviation; callers treat that
// as unrecoverable rather than erroring.
func ExtractID(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, footerPrefix) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, footerPrefix))
		id, err := uuid.Parse(raw)
		if err != nil {
			return "", false
		}
		return id.String(), true
	}
	return "", false
}
