package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/longhornrumble/dealprep/internal/util"
)

// errorEnvelope covers the common JSON error shapes of the APIs this service calls:
// {"error":{"code","message"}}, {"error":"...","message":"..."} and {"code","message"}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

type nestedError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
	Status  string          `json:"status"`
}

// HTTPError is a sanitized summary of a non-2xx API response.
//
// Raw response bodies are never included; they can carry PII or tokens.
type HTTPError struct {
	Service    string
	Op         string
	StatusCode int
	Status     string
	Code       string
	Message    string

	// Snippet is a redacted, truncated hint for responses without a JSON envelope.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http api error"
	}
	svc := strings.TrimSpace(e.Service)
	if svc == "" {
		svc = "http"
	}
	parts := []string{
		fmt.Sprintf("%s api error: op=%s status=%s", svc, strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Code) != "" {
		parts = append(parts, "code="+strings.TrimSpace(e.Code))
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Retryable reports whether the status is worth retrying.
func (e *HTTPError) Retryable() bool {
	return e != nil && (e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5)
}

// NewHTTPError builds an HTTPError from a response and its already-read body.
func NewHTTPError(service, op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Service: service, Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		h.Code = rawString(env.Code)
		h.Message = strings.TrimSpace(env.Message)
		if len(env.Error) > 0 {
			var nested nestedError
			if json.Unmarshal(env.Error, &nested) == nil {
				if c := rawString(nested.Code); c != "" {
					h.Code = c
				} else if nested.Status != "" {
					h.Code = nested.Status
				}
				if nested.Message != "" {
					h.Message = strings.TrimSpace(nested.Message)
				}
			} else if s := rawString(env.Error); s != "" && h.Code == "" {
				h.Code = s
			}
		}
		if h.Code != "" || h.Message != "" {
			h.Message = truncate(util.RedactSecrets(h.Message), maxSnippet)
			return h
		}
	}

	h.Snippet = redactAndTruncate(body)
	return h
}

// rawString renders a JSON string or number as text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

const maxSnippet = 256

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	b := body
	if len(b) > maxSnippet {
		b = b[:maxSnippet]
	}
	s := util.RedactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > maxSnippet {
		return s + "..."
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
