// Package privacy redacts credentials from URLs before they are logged or
// reported. Notification, MQTT broker and training service URLs may all
// carry tokens or passwords.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces every secret. It needs no URL escaping.
const Redacted = "REDACTED"

var (
	// trailing punctuation belongs to the surrounding sentence
	urlPattern = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]*[^\s"'<>.,;:)]`)

	sensitiveParams = map[string]struct{}{
		"token":        {},
		"access_token": {},
		"apikey":       {},
		"api_key":      {},
		"key":          {},
		"password":     {},
		"pass":         {},
		"secret":       {},
		"auth":         {},
		"webhook":      {},
	}
)

// RedactURL removes the user info and the values of sensitive query
// parameters from rawURL. Scheme, host, port and path are kept. A string that
// does not parse as a URL is replaced entirely.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "[" + Redacted + " URL]"
	}

	// shoutrrr services put tokens in the user name, so drop it as well
	if u.User != nil {
		u.User = url.User(Redacted)
	}

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if _, ok := sensitiveParams[strings.ToLower(k)]; ok {
				q.Set(k, Redacted)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ScrubMessage redacts every URL found in message.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, RedactURL)
}
