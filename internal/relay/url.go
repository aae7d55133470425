package relay

import (
	"net/url"
	"strings"
)

func normalizeLocalhostURI(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	// Sidecar relays often bind only IPv4 loopback while "localhost" may
	// resolve to ::1 first.
	host := strings.TrimSpace(u.Hostname())
	if host == "localhost" || host == "::1" {
		port := strings.TrimSpace(u.Port())
		if port != "" {
			u.Host = "127.0.0.1:" + port
		} else {
			u.Host = "127.0.0.1"
		}
	}
	return u.String(), nil
}
