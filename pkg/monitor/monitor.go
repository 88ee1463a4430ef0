// Package monitor orchestrates the monitoring cycle: authenticate, scrape,
// deduplicate, enrich, notify, record. One cycle is one RunOnce call; the
// daemon loop repeats cycles with a circuit breaker on consecutive failures.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/browser"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/notifier"
)

// Store is the persistence layer used by the orchestrator
type Store interface {
	ArticleExists(ctx context.Context, articleID string) (bool, error)
	AddArticle(ctx context.Context, article *domain.Article) (bool, error)
	GetUnnotifiedArticles(ctx context.Context, limit int) ([]domain.Article, error)
	MarkNotified(ctx context.Context, ids []int64) error
	UpdateTranslation(ctx context.Context, articleID, translatedTitle string) error
	LogRun(ctx context.Context, stats domain.RunStats)
	Stats(ctx context.Context, days int) (domain.Stats, error)
	CleanupOldRecords(ctx context.Context, days int) (int64, error)
}

// Scraper extracts keyword-matched articles from the monitored site
type Scraper interface {
	Start(ctx context.Context) error
	Stop()
	Browser() browser.Browser
	Scrape(ctx context.Context, maxPages int) ([]domain.Article, error)
	FetchFullContent(ctx context.Context, articleURL string) (string, error)
}

// Authenticator establishes a logged-in session on a browser
type Authenticator interface {
	Login(ctx context.Context) error
}

// Translator translates one title, reporting whether a translation exists
type Translator interface {
	Translate(ctx context.Context, text string) (string, bool)
}

// Dispatcher delivers notifications and reports per-article outcomes
type Dispatcher interface {
	Dispatch(ctx context.Context, articles []domain.Article) notifier.Outcome
	SendErrorNotification(ctx context.Context, errMsg string) error
}

// AuthFactory creates an authenticator bound to the cycle's browser session
type AuthFactory func(br browser.Browser) Authenticator

// Monitor runs monitoring cycles. Not safe for concurrent use, cycles are
// strictly sequential.
type Monitor struct {
	cfg        config.Config
	store      Store
	scraper    Scraper
	translator Translator // nil when translation is disabled
	dispatcher Dispatcher
	newAuth    AuthFactory

	sleep             func(ctx context.Context, d time.Duration) // test hook
	lastErrorNotified time.Time
}

// New creates a monitor from its collaborators. translator may be nil.
func New(cfg config.Config, store Store, scraper Scraper, translator Translator,
	dispatcher Dispatcher, newAuth AuthFactory) *Monitor {
	return &Monitor{
		cfg:        cfg,
		store:      store,
		scraper:    scraper,
		translator: translator,
		dispatcher: dispatcher,
		newAuth:    newAuth,
		sleep:      sleepCtx,
	}
}

// RunOnce executes one full monitoring cycle. It never returns an error,
// every failure mode is folded into the returned stats, and the run is
// always recorded and the browser session always released.
func (m *Monitor) RunOnce(ctx context.Context) domain.RunStats {
	started := time.Now()
	stats := domain.RunStats{Status: domain.RunSuccess}

	defer func() {
		stats.ExecutionTime = time.Since(started)
		m.store.LogRun(ctx, stats)
		m.scraper.Stop()
		lgr.Printf("[INFO] cycle done in %v: found %d, new %d, notified %d, status %s",
			stats.ExecutionTime.Round(time.Millisecond), stats.ArticlesFound,
			stats.NewArticles, stats.NotificationsSent, stats.Status)
	}()

	if err := m.scraper.Start(ctx); err != nil {
		stats.Status = domain.RunError
		stats.ErrorMessage = fmt.Sprintf("start browser: %v", err)
		return stats
	}

	if m.cfg.Auth.Enabled {
		if err := m.newAuth(m.scraper.Browser()).Login(ctx); err != nil {
			if !m.cfg.Auth.ContinueOnFailure {
				stats.Status = domain.RunError
				stats.ErrorMessage = fmt.Sprintf("authentication: %v", err)
				return stats
			}
			lgr.Printf("[WARN] authentication failed, continuing without session: %v", err)
		}
	}

	articles, err := m.scraper.Scrape(ctx, 0)
	if err != nil {
		stats.Status = domain.RunError
		stats.ErrorMessage = fmt.Sprintf("scrape: %v", err)
		return stats
	}
	stats.ArticlesFound = len(articles)

	newArticles := m.ingest(ctx, articles, &stats)
	stats.NewArticles = len(newArticles)
	m.translate(ctx, newArticles)

	// the dispatch set is everything still pending, which picks up rows
	// whose notification failed in earlier cycles alongside the fresh ones
	pending, err := m.store.GetUnnotifiedArticles(ctx, 0)
	if err != nil {
		lgr.Printf("[WARN] failed to load pending articles, dispatching fresh only: %v", err)
		pending = newArticles
	}
	if len(pending) > 0 {
		m.notify(ctx, pending, &stats)
	}

	if m.cfg.Database.CleanupEnabled {
		if deleted, err := m.store.CleanupOldRecords(ctx, m.cfg.Database.KeepRecordsDays); err != nil {
			lgr.Printf("[WARN] cleanup failed: %v", err)
		} else if deleted > 0 {
			lgr.Printf("[INFO] cleanup removed %d old records", deleted)
		}
	}
	return stats
}

// ingest stores scraped articles and returns the newly inserted subset, in
// scrape order. Fetches full content for unseen articles before insert so
// the stored row is complete.
func (m *Monitor) ingest(ctx context.Context, articles []domain.Article, stats *domain.RunStats) []domain.Article {
	var fresh []domain.Article
	for _, article := range articles {
		article.ArticleID = domain.ArticleID(article.URL, article.Title)

		if m.cfg.Email.IncludeFullContent && !article.MemberOnly {
			exists, err := m.store.ArticleExists(ctx, article.ArticleID)
			if err != nil {
				lgr.Printf("[WARN] existence check failed for %s: %v", article.URL, err)
			}
			if !exists {
				content, err := m.scraper.FetchFullContent(ctx, article.URL)
				if err != nil {
					lgr.Printf("[WARN] full content fetch failed for %s: %v", article.URL, err)
				}
				article.FullContent = content
			}
		}

		added, err := m.store.AddArticle(ctx, &article)
		if err != nil {
			lgr.Printf("[WARN] failed to store article %s: %v", article.URL, err)
			stats.Status = domain.RunError
			stats.ErrorMessage = fmt.Sprintf("store article: %v", err)
			continue
		}
		if added {
			fresh = append(fresh, article)
		}
	}
	return fresh
}

// translate fills in translated titles for the new articles, best effort.
// A failed translation keeps the original title.
func (m *Monitor) translate(ctx context.Context, articles []domain.Article) {
	if m.translator == nil {
		return
	}
	for i := range articles {
		translated, ok := m.translator.Translate(ctx, articles[i].Title)
		if !ok {
			continue
		}
		articles[i].TranslatedTitle = translated
		if err := m.store.UpdateTranslation(ctx, articles[i].ArticleID, translated); err != nil {
			lgr.Printf("[WARN] failed to persist translation for %s: %v", articles[i].ArticleID, err)
		}
	}
}

// notify dispatches the new articles and marks delivered ones. Partial
// delivery degrades the run status but leaves undelivered rows pending for
// the next cycle.
func (m *Monitor) notify(ctx context.Context, articles []domain.Article, stats *domain.RunStats) {
	outcome := m.dispatcher.Dispatch(ctx, articles)
	stats.NotificationsSent = len(outcome.Sent)

	if len(outcome.Sent) > 0 {
		ids := make([]int64, len(outcome.Sent))
		for i, a := range outcome.Sent {
			ids[i] = a.ID
		}
		if err := m.store.MarkNotified(ctx, ids); err != nil {
			lgr.Printf("[WARN] failed to mark notified: %v", err)
			if stats.Status == domain.RunSuccess {
				stats.Status = domain.RunPartial
			}
			stats.ErrorMessage = fmt.Sprintf("mark notified: %v", err)
		}
	}

	if len(outcome.Failed) > 0 {
		// undelivered rows count as a degraded cycle, but never mask a
		// storage error already recorded earlier in the pass
		if stats.Status == domain.RunSuccess {
			stats.Status = domain.RunPartial
		}
		if stats.ErrorMessage == "" {
			stats.ErrorMessage = fmt.Sprintf("%d notifications failed", len(outcome.Failed))
		}
	}
}

// RunDaemon runs cycles at the configured interval until the context is
// canceled or too many consecutive cycles fail. After the failure limit one
// error notification goes out and the daemon stops.
func (m *Monitor) RunDaemon(ctx context.Context) error {
	interval := m.cfg.Monitoring.CheckInterval
	maxErrors := m.cfg.Monitoring.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = 5
	}
	lgr.Printf("[INFO] daemon started, checking every %v", interval)

	consecutive := 0
	for {
		stats := m.RunOnce(ctx)
		if ctx.Err() != nil {
			lgr.Printf("[INFO] daemon stopped: %v", ctx.Err())
			return nil
		}

		if stats.Status != domain.RunSuccess {
			consecutive++
			lgr.Printf("[WARN] cycle did not succeed (%d/%d consecutive, status %s): %s",
				consecutive, maxErrors, stats.Status, stats.ErrorMessage)
			if consecutive >= maxErrors {
				msg := fmt.Sprintf("monitoring aborted after %d consecutive failed cycles, last error: %s",
					consecutive, stats.ErrorMessage)
				if err := m.dispatcher.SendErrorNotification(ctx, msg); err != nil {
					lgr.Printf("[WARN] failed to send error notification: %v", err)
				}
				return fmt.Errorf("too many consecutive errors (%d)", consecutive)
			}
			m.maybeNotifyErrorRate(ctx)
		} else {
			consecutive = 0
		}

		lgr.Printf("[INFO] next check in %v", interval)
		if !m.waitInterval(ctx, interval) {
			lgr.Printf("[INFO] daemon stopped")
			return nil
		}
	}
}

// maybeNotifyErrorRate sends a soft warning when failures over the last day
// reach the configured threshold, at most once per day
func (m *Monitor) maybeNotifyErrorRate(ctx context.Context) {
	threshold := m.cfg.Email.ErrorThreshold
	if threshold <= 0 || time.Since(m.lastErrorNotified) < 24*time.Hour {
		return
	}
	stats, err := m.store.Stats(ctx, 1)
	if err != nil {
		lgr.Printf("[WARN] failed to load run stats: %v", err)
		return
	}
	failed := stats.TotalRuns - stats.SuccessfulRuns
	if failed < threshold {
		return
	}
	msg := fmt.Sprintf("%d of %d monitoring cycles failed in the last 24h", failed, stats.TotalRuns)
	if err := m.dispatcher.SendErrorNotification(ctx, msg); err != nil {
		lgr.Printf("[WARN] failed to send error notification: %v", err)
		return
	}
	m.lastErrorNotified = time.Now()
}

// waitInterval sleeps for the check interval in short slices so shutdown is
// picked up promptly. Returns false when the context was canceled.
func (m *Monitor) waitInterval(ctx context.Context, interval time.Duration) bool {
	const slice = 10 * time.Second
	remaining := interval
	for remaining > 0 {
		d := slice
		if remaining < slice {
			d = remaining
		}
		m.sleep(ctx, d)
		if ctx.Err() != nil {
			return false
		}
		remaining -= d
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
