package scraper

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/go-pkgz/lgr"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// ordered date layouts tried before the generic parser
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006年1月2日",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseElement parses one article container's markup into a candidate.
// Every field is best-effort: a missing optional field keeps the candidate,
// a missing title or URL discards it.
func (s *Scraper) ParseElement(html string) (domain.Article, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		lgr.Printf("[DEBUG] failed to parse article markup: %v", err)
		return domain.Article{}, false
	}

	title := firstText(doc, s.site.TitleSelectors)
	if title == "" {
		lgr.Printf("[DEBUG] article title not found")
		return domain.Article{}, false
	}

	href, ok := doc.Find("a[href]").First().Attr("href")
	if !ok || href == "" {
		lgr.Printf("[DEBUG] article URL not found")
		return domain.Article{}, false
	}
	articleURL := s.resolveURL(href)

	published := ""
	for _, sel := range s.site.DateSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		raw, okAttr := el.Attr("datetime")
		if !okAttr || raw == "" {
			raw = strings.TrimSpace(el.Text())
		}
		published = parseDate(raw)
		break
	}

	summary := firstText(doc, s.site.SummarySelectors)

	article := domain.Article{
		ArticleID:   domain.ArticleID(articleURL, title),
		Title:       title,
		URL:         articleURL,
		PublishedAt: published,
		Summary:     summary,
		MemberOnly:  s.isMemberOnly(html, title, summary),
	}
	return article, true
}

// firstText returns the first non-empty text across an ordered selector list
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// parseDate normalizes a raw date string to RFC 3339, falling back to the
// raw string when no layout matches. Never fails outright.
func parseDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	if t, err := dateparse.ParseAny(raw); err == nil {
		return t.Format(time.RFC3339)
	}
	return raw
}

// isMemberOnly detects access-gated articles heuristically: a restriction
// phrase in title+summary, a paywall class in the markup, or a lock glyph.
// Any one signal is sufficient; none of them is authoritative.
func (s *Scraper) isMemberOnly(html, title, summary string) bool {
	text := strings.ToLower(title + " " + summary)
	for _, phrase := range s.site.MemberPhrases {
		if strings.Contains(text, strings.ToLower(phrase)) {
			lgr.Printf("[DEBUG] member-only phrase found: %s", phrase)
			return true
		}
	}

	markup := strings.ToLower(html)
	for _, class := range s.site.MemberMarkup {
		if strings.Contains(markup, class) {
			lgr.Printf("[DEBUG] member-only markup found: %s", class)
			return true
		}
	}

	if strings.Contains(text, "\U0001F512") || strings.Contains(html, "&#128274;") {
		lgr.Printf("[DEBUG] lock icon found")
		return true
	}
	return false
}

// FilterByKeywords keeps articles whose title or summary contains a
// configured keyword (case-insensitive substring). Normal keywords are
// checked before urgent ones, in configured order; the first match wins and
// an article matches at most once.
func FilterByKeywords(articles []domain.Article, keywords, urgent []string) []domain.Article {
	urgentSet := make(map[string]bool, len(urgent))
	for _, k := range urgent {
		urgentSet[k] = true
	}
	combined := make([]string, 0, len(keywords)+len(urgent))
	combined = append(combined, keywords...)
	combined = append(combined, urgent...)

	var matched []domain.Article
	for _, article := range articles {
		text := strings.ToLower(article.Title + " " + article.Summary)
		for _, keyword := range combined {
			if keyword == "" || !strings.Contains(text, strings.ToLower(keyword)) {
				continue
			}
			article.MatchedKeyword = keyword
			article.IsUrgent = urgentSet[keyword]
			matched = append(matched, article)
			lgr.Printf("[DEBUG] article matched keyword %q: %s", keyword, article.Title)
			break
		}
	}
	return matched
}
