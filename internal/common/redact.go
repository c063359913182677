package common

import (
	"net/url"
	"strings"
)

const redacted = "REDACTED"

// Keys travel in the query string or, for some mirrors, in the path.
// Keep them out of logs and errors
func redact(raw string, secret string) string {
	if secret != "" {
		raw = strings.ReplaceAll(raw, secret, redacted)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	query := u.Query()
	if query.Has("key") {
		query.Set("key", redacted)
		u.RawQuery = query.Encode()
	}
	return u.String()
}
