package domain

import (
	"crypto/md5" //nolint:gosec // content-addressing, not cryptography
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// Article represents a discovered news article candidate
type Article struct {
	ID              int64
	ArticleID       string // content-address, stable across runs
	Title           string
	TranslatedTitle string
	URL             string
	MatchedKeyword  string
	IsUrgent        bool
	PublishedAt     string // best-effort parsed, raw string if unparseable
	Summary         string
	FullContent     string
	MemberOnly      bool
	Notified        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ArticleID derives the content-address for an article from its URL and title.
// The same (url, title) pair always yields the same id, across runs and
// process restarts, so re-extracting a page never creates a second identity.
func ArticleID(rawURL, title string) string {
	key := CanonicalURL(rawURL) + "|" + normalizeTitle(title)
	sum := md5.Sum([]byte(key)) //nolint:gosec // identity hash, collisions are the only concern
	return hex.EncodeToString(sum[:])
}

// CanonicalURL normalizes a URL for identity purposes: scheme and host are
// lowercased, the fragment is dropped and a trailing slash is removed.
// Unparseable input is returned trimmed as-is.
func CanonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
