// Package auth handles the site login handshake and session reuse.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/browser"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// ErrAuthentication indicates credentials were rejected or the login form
// could not be found after all retries
var ErrAuthentication = errors.New("authentication failed")

// ValidateFunc decides whether the current browser state is authenticated.
// It is a substitutable strategy so the permissive default can be tightened
// without touching the rest of the authenticator.
type ValidateFunc func(ctx context.Context, br browser.Browser, loginURL string) bool

// fallback selector chains, tried after the configured selector
var (
	emailFieldSelectors = []string{
		"input[name=swpm_user_name]",
		"input[id=swpm_user_name]",
		"input[type=email]",
		"input[name=email]",
		"input[name=username]",
		"input[id=email]",
		"input[id=username]",
	}
	passwordFieldSelectors = []string{
		"input[name=swpm_password]",
		"input[id=swpm_password]",
		"input[type=password]",
		"input[name=password]",
		"input[id=password]",
	}
	submitSelectors = []string{
		"input[name=swpm-login]",
		".swpm-login-form-submit",
		"button[type=submit]",
		"input[type=submit]",
		"a.login-button",
		"button",
	}
	logoutSelectors = []string{
		"a[href*=logout]",
		".logout-button",
	}
	loggedInSelectors = []string{
		"a[href*=logout]",
		".user-menu",
		".profile-menu",
		"#user-profile",
	}
)

// Authenticator performs the login handshake against the transport and
// owns the persisted session artifact. No other component reads or
// writes the session.
type Authenticator struct {
	cfg      config.AuthConfig
	site     config.SiteConfig
	br       browser.Browser
	validate ValidateFunc

	settleDelay   time.Duration
	backoffBase   time.Duration
	authenticated bool
}

// New creates an authenticator bound to one browsing session
func New(cfg config.AuthConfig, site config.SiteConfig, br browser.Browser) *Authenticator {
	return &Authenticator{
		cfg:         cfg,
		site:        site,
		br:          br,
		validate:    PermissiveValidation,
		settleDelay: 3 * time.Second,
		backoffBase: 2 * time.Second,
	}
}

// WithValidator replaces the session validation strategy
func (a *Authenticator) WithValidator(v ValidateFunc) *Authenticator {
	a.validate = v
	return a
}

// Authenticated reports whether a login has been validated in this session
func (a *Authenticator) Authenticated() bool { return a.authenticated }

// Login authenticates the browsing session. Idempotent when already
// authenticated. A persisted session within its TTL is restored and
// validated first; only on miss or invalidation is a fresh login performed,
// with exponential backoff between attempts.
func (a *Authenticator) Login(ctx context.Context) error {
	if a.authenticated {
		return nil
	}

	if a.restoreSession(ctx) {
		if a.validate(ctx, a.br, a.site.LoginURL) {
			lgr.Printf("[INFO] restored session from saved cookies")
			a.authenticated = true
			return nil
		}
		lgr.Printf("[INFO] saved session invalid, performing fresh login")
	}

	attempt := 0
	retrier := repeater.NewBackoff(a.cfg.MaxRetries, a.backoffBase, repeater.WithMaxDelay(30*time.Second))
	err := retrier.Do(ctx, func() error {
		attempt++
		lgr.Printf("[INFO] login attempt %d/%d", attempt, a.cfg.MaxRetries)
		if err := a.performLogin(ctx); err != nil {
			return err
		}
		if !a.validate(ctx, a.br, a.site.LoginURL) {
			return fmt.Errorf("login validation failed")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: after %d attempts: %v", ErrAuthentication, attempt, err)
	}

	a.saveSession(ctx)
	a.authenticated = true
	lgr.Printf("[INFO] login successful")
	return nil
}

// performLogin navigates to the login page, fills credentials and submits
func (a *Authenticator) performLogin(ctx context.Context) error {
	if err := a.br.Navigate(ctx, a.site.LoginURL); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	emailField, err := a.findFirst(ctx, a.site.EmailFieldSelector, emailFieldSelectors)
	if err != nil {
		return fmt.Errorf("locate email field: %w", err)
	}
	passwordField, err := a.findFirst(ctx, a.site.PasswordFieldSelector, passwordFieldSelectors)
	if err != nil {
		return fmt.Errorf("locate password field: %w", err)
	}

	if err := emailField.Clear(ctx); err != nil {
		return fmt.Errorf("clear email field: %w", err)
	}
	if err := emailField.SendKeys(ctx, a.cfg.Email); err != nil {
		return fmt.Errorf("fill email field: %w", err)
	}
	if err := passwordField.Clear(ctx); err != nil {
		return fmt.Errorf("clear password field: %w", err)
	}
	if err := passwordField.SendKeys(ctx, a.cfg.Password); err != nil {
		return fmt.Errorf("fill password field: %w", err)
	}

	submit, err := a.findFirst(ctx, a.site.SubmitSelector, submitSelectors)
	if err != nil {
		return fmt.Errorf("locate submit button: %w", err)
	}
	if err := submit.Click(ctx); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	// let the post-login navigation settle
	select {
	case <-time.After(a.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// findFirst tries the configured selector first, then the fallback chain,
// returning the first element any strategy yields
func (a *Authenticator) findFirst(ctx context.Context, configured string, fallbacks []string) (browser.Element, error) {
	selectors := fallbacks
	if configured != "" {
		selectors = append([]string{configured}, fallbacks...)
	}
	for _, sel := range selectors {
		elems, err := a.br.Find(ctx, sel)
		if err != nil {
			continue
		}
		if len(elems) > 0 {
			lgr.Printf("[DEBUG] found element with selector: %s", sel)
			return elems[0], nil
		}
	}
	return nil, fmt.Errorf("no element matched %d selectors", len(selectors))
}

// PermissiveValidation treats the session as authenticated when the browser
// has left the login page and no explicit failure marker is present.
// Positive logged-in indicators are checked first but their absence is not
// treated as failure - an unrecognized page state passes.
func PermissiveValidation(ctx context.Context, br browser.Browser, loginURL string) bool {
	current, err := br.CurrentURL(ctx)
	if err != nil {
		return false
	}
	if strings.Contains(strings.ToLower(current), "login") {
		lgr.Printf("[DEBUG] still on login page after login attempt")
		return false
	}

	for _, sel := range loggedInSelectors {
		elems, err := br.Find(ctx, sel)
		if err == nil && len(elems) > 0 {
			lgr.Printf("[DEBUG] found logged-in indicator: %s", sel)
			return true
		}
	}

	lgr.Printf("[DEBUG] no explicit logged-in indicators found, assuming success")
	return true
}

// Logout clears the remote session best-effort and discards the persisted
// session file
func (a *Authenticator) Logout(ctx context.Context) {
	for _, sel := range logoutSelectors {
		elems, err := a.br.Find(ctx, sel)
		if err != nil || len(elems) == 0 {
			continue
		}
		if err := elems[0].Click(ctx); err == nil {
			lgr.Printf("[INFO] logged out")
			break
		}
	}

	if err := os.Remove(a.cfg.SessionFile); err == nil {
		lgr.Printf("[DEBUG] session file removed")
	}
	a.authenticated = false
}

// restoreSession loads the persisted session and replays its cookies onto
// the transport. Returns false when there is no session, it is expired or
// cannot be applied - an expired or broken session is discarded, not
// repaired.
func (a *Authenticator) restoreSession(ctx context.Context) bool {
	data, err := os.ReadFile(a.cfg.SessionFile)
	if err != nil {
		return false
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		lgr.Printf("[WARN] corrupt session file, ignoring: %v", err)
		return false
	}
	if sess.Expired(a.cfg.SessionTTL) {
		lgr.Printf("[INFO] saved session expired (%.1fh old)", time.Since(sess.CapturedAt).Hours())
		return false
	}

	// cookies can only be set for the current site
	if err := a.br.Navigate(ctx, a.site.URL); err != nil {
		return false
	}
	for _, c := range sess.Cookies {
		if err := a.br.AddCookie(ctx, c); err != nil {
			lgr.Printf("[DEBUG] could not add cookie %s: %v", c.Name, err)
		}
	}
	return true
}

// saveSession persists the current cookies for reuse by future cycles.
// Failures are logged only; a session that cannot be saved just means a
// fresh login next time.
func (a *Authenticator) saveSession(ctx context.Context) {
	cookies, err := a.br.Cookies(ctx)
	if err != nil {
		lgr.Printf("[WARN] failed to capture session cookies: %v", err)
		return
	}
	current, err := a.br.CurrentURL(ctx)
	if err != nil {
		current = a.site.URL
	}

	sess := domain.Session{Cookies: cookies, CapturedAt: time.Now(), SourceURL: current}
	data, err := json.Marshal(&sess)
	if err != nil {
		lgr.Printf("[WARN] failed to serialize session: %v", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.SessionFile), 0o750); err != nil {
		lgr.Printf("[WARN] failed to create session dir: %v", err)
		return
	}
	if err := os.WriteFile(a.cfg.SessionFile, data, 0o600); err != nil {
		lgr.Printf("[WARN] failed to save session: %v", err)
		return
	}
	lgr.Printf("[INFO] session saved to %s", a.cfg.SessionFile)
}
