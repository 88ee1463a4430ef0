package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

func (d *Dispatcher) urgentMessage(a domain.Article) Message {
	return Message{
		Subject:    d.subject(fmt.Sprintf("🚨 urgent: %s", displayTitle(a))),
		PlainBody:  d.plainArticle(a),
		HTMLBody:   d.htmlArticles([]domain.Article{a}, "Urgent article"),
		Recipients: d.cfg.Recipients,
	}
}

func (d *Dispatcher) singleMessage(a domain.Article) Message {
	return Message{
		Subject:    d.subject(fmt.Sprintf("new article: %s", displayTitle(a))),
		PlainBody:  d.plainArticle(a),
		HTMLBody:   d.htmlArticles([]domain.Article{a}, "New article"),
		Recipients: d.cfg.Recipients,
	}
}

func (d *Dispatcher) batchMessage(articles []domain.Article) Message {
	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, displayTitle(a))
		b.WriteString(d.plainArticle(a))
		b.WriteString("\n")
	}
	return Message{
		Subject:    d.subject(fmt.Sprintf("%d new articles", len(articles))),
		PlainBody:  b.String(),
		HTMLBody:   d.htmlArticles(articles, fmt.Sprintf("%d new articles", len(articles))),
		Recipients: d.cfg.Recipients,
	}
}

// displayTitle prefers the translated title, keeping the original as a
// fallback when translation is absent
func displayTitle(a domain.Article) string {
	if a.TranslatedTitle != "" {
		return a.TranslatedTitle
	}
	return a.Title
}

func (d *Dispatcher) plainArticle(a domain.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	if a.TranslatedTitle != "" {
		fmt.Fprintf(&b, "Translated: %s\n", a.TranslatedTitle)
	}
	fmt.Fprintf(&b, "Keyword: %s\n", a.MatchedKeyword)
	if a.PublishedAt != "" {
		fmt.Fprintf(&b, "Published: %s\n", a.PublishedAt)
	}
	fmt.Fprintf(&b, "URL: %s\n", a.URL)
	if a.MemberOnly {
		b.WriteString("Access: member-only\n")
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", a.Summary)
	}
	if d.cfg.IncludeFullContent && a.FullContent != "" {
		fmt.Fprintf(&b, "\n--- full content ---\n%s\n", a.FullContent)
	}
	return b.String()
}

func (d *Dispatcher) htmlArticles(articles []domain.Article, heading string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(heading))
	for _, a := range articles {
		b.WriteString(`<div style="margin-bottom:1.5em">`)
		badge := ""
		if a.IsUrgent {
			badge = `<span style="color:#c00;font-weight:bold">[URGENT]</span> `
		}
		fmt.Fprintf(&b, `<h3>%s<a href="%s">%s</a></h3>`, badge, html.EscapeString(a.URL), html.EscapeString(displayTitle(a)))
		if a.TranslatedTitle != "" {
			fmt.Fprintf(&b, "<p><i>%s</i></p>", html.EscapeString(a.Title))
		}
		fmt.Fprintf(&b, "<p>keyword: <b>%s</b>", html.EscapeString(a.MatchedKeyword))
		if a.PublishedAt != "" {
			fmt.Fprintf(&b, " · published: %s", html.EscapeString(a.PublishedAt))
		}
		if a.MemberOnly {
			b.WriteString(" · 🔒 member-only")
		}
		b.WriteString("</p>")
		if a.Summary != "" {
			fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(a.Summary))
		}
		if d.cfg.IncludeFullContent && a.FullContent != "" {
			fmt.Fprintf(&b, "<blockquote>%s</blockquote>", strings.ReplaceAll(html.EscapeString(a.FullContent), "\n", "<br>"))
		}
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}
