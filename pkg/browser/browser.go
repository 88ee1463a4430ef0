// Package browser defines the contract for the page transport and ships an
// HTTP implementation of it. The monitoring core talks to the interfaces
// only, so a real browser driver can be substituted without touching it.
package browser

import (
	"context"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// Browser is a single browsing session. One instance is owned by the
// orchestrator for the duration of one monitoring cycle.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// Find returns elements matching the CSS selector, possibly none
	Find(ctx context.Context, selector string) ([]Element, error)
	PageSource(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	Cookies(ctx context.Context) ([]domain.Cookie, error)
	AddCookie(ctx context.Context, c domain.Cookie) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Element is a located page element
type Element interface {
	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, bool, error)
	OuterHTML(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// Factory produces a fresh browsing session for one cycle
type Factory func(ctx context.Context) (Browser, error)
