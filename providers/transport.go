package providers

import (
	"net/http"
	"time"
)

// UserAgent wird bei jeder Anfrage an die Quellen mitgeschickt.
const UserAgent = "competitor-watch/1.0"

// UserAgentTransport setzt den User-Agent-Header, falls der Aufrufer keinen gesetzt hat.
type UserAgentTransport struct {
	Transport http.RoundTripper
	UserAgent string
}

func (t *UserAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.UserAgent)
	}
	base := t.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// NewHTTPClient erstellt den Client, den alle Adapter für externe Anfragen verwenden.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &UserAgentTransport{Transport: http.DefaultTransport, UserAgent: UserAgent},
	}
}
