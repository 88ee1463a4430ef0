package domain

import "time"

// Cookie is a transport-level credential captured from the browsing session
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty"`
}

// Session is an ephemeral authentication artifact, persisted only to avoid
// repeated logins. Owned exclusively by the authenticator.
type Session struct {
	Cookies    []Cookie  `json:"cookies"`
	CapturedAt time.Time `json:"captured_at"`
	SourceURL  string    `json:"source_url"`
}

// Expired reports whether the session is older than the given TTL
func (s *Session) Expired(ttl time.Duration) bool {
	return time.Since(s.CapturedAt) > ttl
}
