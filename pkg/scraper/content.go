package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
)

// FetchFullContent loads an article page and extracts its body text.
// Returns empty string when the page demands a login, when no strategy
// yields text, or when the result is shorter than the configured minimum.
// An empty result is not an error, the article keeps its listing summary.
func (s *Scraper) FetchFullContent(ctx context.Context, articleURL string) (string, error) {
	if s.br == nil {
		if err := s.Start(ctx); err != nil {
			return "", fmt.Errorf("fetch content: %w", err)
		}
	}

	if err := s.br.Navigate(ctx, articleURL); err != nil {
		return "", fmt.Errorf("navigate to article %s: %w", articleURL, err)
	}
	s.courtesyDelay(ctx)

	source, err := s.br.PageSource(ctx)
	if err != nil {
		return "", fmt.Errorf("read article page %s: %w", articleURL, err)
	}

	if s.loginRequired(source) {
		lgr.Printf("[INFO] article requires login, skipping full content: %s", articleURL)
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("parse article page %s: %w", articleURL, err)
	}

	content := ""
	for _, sel := range s.site.ContentSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if text := normalizeContent(el.Text()); text != "" {
			lgr.Printf("[DEBUG] content extracted with selector: %s", sel)
			content = text
			break
		}
	}

	if content == "" {
		// last resort, collect every paragraph on the page
		var parts []string
		doc.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		content = strings.Join(parts, "\n")
	}

	if len(content) < s.scraping.MinContentLength {
		lgr.Printf("[DEBUG] content too short (%d chars), discarding: %s", len(content), articleURL)
		return "", nil
	}
	return content, nil
}

// loginRequired checks the page source for access-gate phrases
func (s *Scraper) loginRequired(source string) bool {
	lower := strings.ToLower(source)
	for _, phrase := range s.site.LoginRequiredPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// normalizeContent collapses runs of whitespace within lines and drops
// blank lines, keeping paragraph breaks
func normalizeContent(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n")
}
