package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// max page body accepted, keeps a hostile or broken page from ballooning memory
const maxBodySize = 10 << 20 // 10MB

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// HTTPBrowser implements Browser over plain HTTP with a cookie jar and a
// server-side DOM. Form fields filled via SendKeys are submitted when the
// form's submit control is clicked, which covers cookie-based site logins
// without a real browser process.
type HTTPBrowser struct {
	client    *http.Client
	jar       *cookiejar.Jar
	userAgent string

	current *url.URL
	source  string
	doc     *goquery.Document
	pending map[string]string // form values typed but not yet submitted
}

// NewHTTPFactory returns a Factory producing HTTP browsing sessions
func NewHTTPFactory(timeout time.Duration) Factory {
	return func(_ context.Context) (Browser, error) {
		return NewHTTPBrowser(timeout)
	}
}

// NewHTTPBrowser creates a session with a fresh cookie jar
func NewHTTPBrowser(timeout time.Duration) (*HTTPBrowser, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBrowser{
		client:    &http.Client{Jar: jar, Timeout: timeout},
		jar:       jar,
		userAgent: defaultUserAgent,
		pending:   map[string]string{},
	}, nil
}

// Navigate loads the page at pageURL, following redirects
func (b *HTTPBrowser) Navigate(ctx context.Context, pageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	return b.do(req)
}

// do executes a prepared request and makes its response the current page
func (b *HTTPBrowser) do(req *http.Request) error {
	req.Header.Set("User-Agent", b.userAgent)
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request %s: unexpected status %s", req.URL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("parse %s: %w", req.URL, err)
	}

	b.current = resp.Request.URL // after redirects
	b.source = string(body)
	b.doc = doc
	b.pending = map[string]string{}
	lgr.Printf("[DEBUG] loaded %s (%d bytes)", b.current, len(body))
	return nil
}

// Find returns elements matching the CSS selector on the current page
func (b *HTTPBrowser) Find(_ context.Context, selector string) ([]Element, error) {
	if b.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	var elements []Element
	b.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, &httpElement{browser: b, sel: sel})
	})
	return elements, nil
}

// PageSource returns the raw markup of the current page
func (b *HTTPBrowser) PageSource(_ context.Context) (string, error) {
	if b.doc == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return b.source, nil
}

// CurrentURL returns the address of the current page after redirects
func (b *HTTPBrowser) CurrentURL(_ context.Context) (string, error) {
	if b.current == nil {
		return "", fmt.Errorf("no page loaded")
	}
	return b.current.String(), nil
}

// Cookies returns the jar's cookies for the current site
func (b *HTTPBrowser) Cookies(_ context.Context) ([]domain.Cookie, error) {
	if b.current == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	var cookies []domain.Cookie
	for _, c := range b.jar.Cookies(b.current) {
		cookies = append(cookies, domain.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: b.current.Hostname(),
			Path:   "/",
			Secure: c.Secure,
		})
	}
	return cookies, nil
}

// AddCookie injects a cookie into the jar for the current site
func (b *HTTPBrowser) AddCookie(_ context.Context, c domain.Cookie) error {
	if b.current == nil {
		return fmt.Errorf("no page loaded")
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	b.jar.SetCookies(b.current, []*http.Cookie{{
		Name: c.Name, Value: c.Value, Path: path,
		Secure: c.Secure, HttpOnly: c.HTTPOnly,
	}})
	return nil
}

// Screenshot saves the current page source for offline inspection. There is
// no rendering here, the markup dump is the closest equivalent.
func (b *HTTPBrowser) Screenshot(_ context.Context, path string) error {
	if b.doc == nil {
		return fmt.Errorf("no page loaded")
	}
	if err := os.WriteFile(path, []byte(b.source), 0o600); err != nil {
		return fmt.Errorf("save page snapshot: %w", err)
	}
	lgr.Printf("[DEBUG] page snapshot saved to %s", path)
	return nil
}

// Close releases idle connections. The cookie jar dies with the session.
func (b *HTTPBrowser) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

// resolve turns an href into an absolute URL against the current page
func (b *HTTPBrowser) resolve(href string) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("parse href %q: %w", href, err)
	}
	if b.current == nil {
		return ref, nil
	}
	return b.current.ResolveReference(ref), nil
}
