package util

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>" (JWTs and opaque tokens). Tokens reach error strings
	// through HTTP clients and the Google API libraries.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// key=value and key: value forms for the credentials this service handles.
	secretKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|x-api-key|gemini[_-]?api[_-]?key|openai[_-]?api[_-]?key|motion[_-]?api[_-]?key|access[_-]?token|refresh[_-]?token|client[_-]?secret)\b"?\s*[:=]\s*"?[^\s"',&]+`)

	// Query-string credentials, e.g. "?key=AIza...".
	queryKeyRe = regexp.MustCompile(`([?&](?:key|token|access_token)=)[^&\s"']+`)

	// Bare Google API keys, which genai echoes in some error messages.
	googleKeyRe = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{20,}`)
)

// RedactSecrets removes obvious secret-bearing substrings from error/log strings.
//
// Safe to call on any message, including user-provided inputs and upstream error
// strings.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = secretKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = queryKeyRe.ReplaceAllString(out, "${1}<redacted>")
	out = googleKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}
