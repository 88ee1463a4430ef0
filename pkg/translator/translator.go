// Package translator provides cached, rate-limited title translation via an
// OpenAI-compatible chat completion endpoint.
package translator

import (
	"context"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/time/rate"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
)

// Service translates a single text. Implementations are expected to be
// stateless; caching and pacing live in Translator.
type Service interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Translator wraps a translation service with an in-memory cache and a
// minimum interval between outbound calls. Zero value is not usable, use New.
type Translator struct {
	svc     Service
	cache   map[string]string
	limiter *rate.Limiter
}

// New creates a translator around the given service. The limiter enforces
// the configured minimum interval between service calls; cache hits and
// blank inputs never touch the limiter.
func New(svc Service, cfg config.TranslationConfig) *Translator {
	minInterval := cfg.MinInterval
	if minInterval <= 0 {
		minInterval = 500 * time.Millisecond
	}
	return &Translator{
		svc:     svc,
		cache:   map[string]string{},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Translate returns the translation for text, consulting the cache first.
// Blank input and service failures both yield an empty string and a false
// ok flag; a failure is logged but never propagated, the caller keeps the
// original title.
func (t *Translator) Translate(ctx context.Context, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if cached, ok := t.cache[text]; ok {
		lgr.Printf("[DEBUG] translation cache hit: %s", text)
		return cached, true
	}

	if err := t.limiter.Wait(ctx); err != nil {
		lgr.Printf("[DEBUG] translation canceled: %v", err)
		return "", false
	}

	translated, err := t.svc.Translate(ctx, text)
	if err != nil {
		lgr.Printf("[WARN] translation failed for %q: %v", text, err)
		return "", false
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", false
	}

	t.cache[text] = translated
	return translated, true
}

// TranslateBatch translates a list of texts, returning a map of input to
// translation for the ones that succeeded and the count of failures.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string) (map[string]string, int) {
	result := make(map[string]string, len(texts))
	failed := 0
	for _, text := range texts {
		translated, ok := t.Translate(ctx, text)
		if !ok {
			if strings.TrimSpace(text) != "" {
				failed++
			}
			continue
		}
		result[text] = translated
	}
	return result, failed
}

// CacheSize reports the number of cached translations
func (t *Translator) CacheSize() int { return len(t.cache) }
