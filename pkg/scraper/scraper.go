// Package scraper turns raw page structure into article candidates with a
// stable content-addressed identity and an access-tier flag.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/browser"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// ErrExtraction indicates the page was unreachable or no recognizable
// article structure was found by any fallback strategy. Fatal to the
// current cycle.
var ErrExtraction = errors.New("extraction failed")

// Scraper extracts article candidates from the monitored site via the
// browser transport. One instance serves one monitoring cycle.
type Scraper struct {
	site       config.SiteConfig
	scraping   config.ScrapingConfig
	newBrowser browser.Factory
	br         browser.Browser

	sleep func(ctx context.Context, d time.Duration) // test hook
}

// New creates a scraper; the browser session is created on Start
func New(site config.SiteConfig, scraping config.ScrapingConfig, factory browser.Factory) *Scraper {
	return &Scraper{
		site:       site,
		scraping:   scraping,
		newBrowser: factory,
		sleep:      sleepCtx,
	}
}

// Start creates the browsing session. Idempotent.
func (s *Scraper) Start(ctx context.Context) error {
	if s.br != nil {
		return nil
	}
	br, err := s.newBrowser(ctx)
	if err != nil {
		return fmt.Errorf("create browser session: %w", err)
	}
	s.br = br
	return nil
}

// Stop tears the browsing session down. Safe to call repeatedly.
func (s *Scraper) Stop() {
	if s.br == nil {
		return
	}
	if err := s.br.Close(); err != nil {
		lgr.Printf("[WARN] failed to close browser: %v", err)
	}
	s.br = nil
	lgr.Printf("[INFO] browser session closed")
}

// Browser exposes the underlying session for the authenticator, which
// shares the same transport within a cycle
func (s *Scraper) Browser() browser.Browser { return s.br }

// Scrape walks up to maxPages listing pages, extracts candidates and
// filters them by the configured keywords. Stops early when a page yields
// no articles or no next-page indicator is present.
func (s *Scraper) Scrape(ctx context.Context, maxPages int) ([]domain.Article, error) {
	if s.br == nil {
		if err := s.Start(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
		}
	}
	if maxPages <= 0 {
		maxPages = s.scraping.MaxPages
	}

	var all []domain.Article
	for page := 1; page <= maxPages; page++ {
		lgr.Printf("[INFO] scraping page %d/%d", page, maxPages)

		if err := s.br.Navigate(ctx, s.pageURL(page)); err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%w: navigate page %d: %v", ErrExtraction, page, err)
			}
			lgr.Printf("[WARN] failed to navigate to page %d, stopping pagination: %v", page, err)
			break
		}
		s.courtesyDelay(ctx)

		pageArticles, err := s.extractPage(ctx)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			lgr.Printf("[WARN] extraction failed on page %d, stopping: %v", page, err)
			break
		}
		if len(pageArticles) == 0 {
			lgr.Printf("[INFO] no more articles found on page %d", page)
			break
		}

		all = append(all, pageArticles...)
		lgr.Printf("[INFO] found %d articles on page %d", len(pageArticles), page)

		if !s.hasNextPage(ctx) {
			lgr.Printf("[INFO] reached last page")
			break
		}
	}

	matched := FilterByKeywords(all, s.site.Keywords, s.site.UrgentKeywords)
	lgr.Printf("[INFO] total: %d articles, matched: %d", len(all), len(matched))
	return matched, nil
}

// extractPage locates article containers on the current page. Selector
// strategies are tried in order and the first one yielding any matches
// wins; results from multiple strategies are never merged to avoid
// duplicate containers.
func (s *Scraper) extractPage(ctx context.Context) ([]domain.Article, error) {
	var elements []browser.Element
	for _, sel := range s.site.ArticleSelectors {
		elems, err := s.br.Find(ctx, sel)
		if err != nil {
			continue
		}
		if len(elems) > 0 {
			lgr.Printf("[DEBUG] found %d articles using selector: %s", len(elems), sel)
			elements = elems
			break
		}
	}
	if elements == nil {
		lgr.Printf("[WARN] no article elements found on page")
		return nil, nil
	}

	articles := make([]domain.Article, 0, len(elements))
	for _, el := range elements {
		html, err := el.OuterHTML(ctx)
		if err != nil {
			lgr.Printf("[DEBUG] stale element, skipping: %v", err)
			continue
		}
		article, ok := s.ParseElement(html)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func (s *Scraper) pageURL(page int) string {
	base := strings.TrimRight(s.site.URL, "/")
	if page == 1 {
		return base
	}
	return fmt.Sprintf("%s/page/%d", base, page)
}

func (s *Scraper) hasNextPage(ctx context.Context) bool {
	elems, err := s.br.Find(ctx, s.site.NextPageSelector)
	return err == nil && len(elems) > 0
}

// courtesyDelay sleeps a random duration within the configured bounds to
// avoid hammering the site and tripping anti-automation defenses
func (s *Scraper) courtesyDelay(ctx context.Context) {
	spread := s.scraping.DelayMax - s.scraping.DelayMin
	d := s.scraping.DelayMin
	if spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread))) //nolint:gosec // jitter, not crypto
	}
	s.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// resolveURL resolves an href against the site base URL
func (s *Scraper) resolveURL(href string) string {
	base, err := url.Parse(s.site.URL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
