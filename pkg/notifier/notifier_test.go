package notifier

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// fakeSender records messages and fails on demand
type fakeSender struct {
	sent     []Message
	failures int   // fail this many sends before succeeding
	err      error // error returned while failing, transient by default
}

func (s *fakeSender) Send(_ context.Context, msg Message) error {
	if s.failures > 0 {
		s.failures--
		if s.err != nil {
			return s.err
		}
		return fmt.Errorf("connection reset")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testEmailCfg() config.EmailConfig {
	return config.EmailConfig{
		From:                   "monitor@example.com",
		Recipients:             []string{"ops@example.com"},
		SubjectPrefix:          "[test]",
		MaxRetries:             3,
		SendErrorNotifications: true,
	}
}

func newTestDispatcher(cfg config.EmailConfig, sender Sender) *Dispatcher {
	d := New(cfg, sender)
	d.backoffBase = time.Millisecond
	return d
}

func TestDispatcher_Dispatch(t *testing.T) {
	articles := []domain.Article{
		{ID: 1, Title: "normal one", MatchedKeyword: "chip"},
		{ID: 2, Title: "urgent one", MatchedKeyword: "recall", IsUrgent: true},
		{ID: 3, Title: "normal two", MatchedKeyword: "chip"},
	}

	t.Run("urgent first, individually", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDispatcher(testEmailCfg(), sender)

		outcome := d.Dispatch(context.Background(), articles)
		assert.Len(t, outcome.Sent, 3)
		assert.Empty(t, outcome.Failed)

		require.Len(t, sender.sent, 3)
		assert.Contains(t, sender.sent[0].Subject, "urgent")
		assert.Contains(t, sender.sent[0].Subject, "[test]")
	})

	t.Run("batched normal articles", func(t *testing.T) {
		cfg := testEmailCfg()
		cfg.BatchNotifications = true
		sender := &fakeSender{}
		d := newTestDispatcher(cfg, sender)

		outcome := d.Dispatch(context.Background(), articles)
		assert.Len(t, outcome.Sent, 3)

		require.Len(t, sender.sent, 2, "one urgent message plus one batch")
		assert.Contains(t, sender.sent[1].Subject, "2 new articles")
		assert.Contains(t, sender.sent[1].PlainBody, "normal one")
		assert.Contains(t, sender.sent[1].PlainBody, "normal two")
	})

	t.Run("partial failure fails only the carried articles", func(t *testing.T) {
		cfg := testEmailCfg()
		cfg.MaxRetries = 1
		sender := &fakeSender{failures: 1} // urgent message goes first and fails
		d := newTestDispatcher(cfg, sender)

		outcome := d.Dispatch(context.Background(), articles)
		require.Len(t, outcome.Failed, 1)
		assert.Equal(t, int64(2), outcome.Failed[0].ID, "urgent article failed")
		assert.Len(t, outcome.Sent, 2, "normal articles still delivered")
	})

	t.Run("transient failure retried until success", func(t *testing.T) {
		sender := &fakeSender{failures: 2}
		d := newTestDispatcher(testEmailCfg(), sender)

		outcome := d.Dispatch(context.Background(), articles[:1])
		assert.Len(t, outcome.Sent, 1)
		assert.Empty(t, outcome.Failed)
	})

	t.Run("auth failure not retried", func(t *testing.T) {
		sender := &fakeSender{failures: 99, err: fmt.Errorf("%w: 535 bad credentials", ErrAuth)}
		d := newTestDispatcher(testEmailCfg(), sender)

		outcome := d.Dispatch(context.Background(), articles[:1])
		assert.Empty(t, outcome.Sent)
		assert.Len(t, outcome.Failed, 1)
		assert.Equal(t, 98, sender.failures, "exactly one attempt made")
	})

	t.Run("no recipients fails everything", func(t *testing.T) {
		cfg := testEmailCfg()
		cfg.Recipients = nil
		sender := &fakeSender{}
		d := newTestDispatcher(cfg, sender)

		outcome := d.Dispatch(context.Background(), articles)
		assert.Empty(t, outcome.Sent)
		assert.Len(t, outcome.Failed, 3)
		assert.Empty(t, sender.sent)
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDispatcher(testEmailCfg(), sender)

		outcome := d.Dispatch(context.Background(), nil)
		assert.Empty(t, outcome.Sent)
		assert.Empty(t, outcome.Failed)
		assert.Empty(t, sender.sent)
	})
}

func TestDispatcher_MessageContent(t *testing.T) {
	t.Run("translated title preferred", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDispatcher(testEmailCfg(), sender)

		d.Dispatch(context.Background(), []domain.Article{{
			ID: 1, Title: "新工場", TranslatedTitle: "새 공장",
			MatchedKeyword: "공장", URL: "https://example.com/1",
			Summary: "details here", PublishedAt: "2026-08-20",
		}})

		require.Len(t, sender.sent, 1)
		msg := sender.sent[0]
		assert.Contains(t, msg.Subject, "새 공장")
		assert.Contains(t, msg.PlainBody, "新工場", "original title kept in body")
		assert.Contains(t, msg.PlainBody, "https://example.com/1")
		assert.Contains(t, msg.PlainBody, "details here")
		assert.Contains(t, msg.HTMLBody, "새 공장")
	})

	t.Run("member-only flagged", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDispatcher(testEmailCfg(), sender)

		d.Dispatch(context.Background(), []domain.Article{{ID: 1, Title: "gated", MemberOnly: true}})
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0].PlainBody, "member-only")
	})

	t.Run("full content included when configured", func(t *testing.T) {
		cfg := testEmailCfg()
		cfg.IncludeFullContent = true
		sender := &fakeSender{}
		d := newTestDispatcher(cfg, sender)

		d.Dispatch(context.Background(), []domain.Article{{ID: 1, Title: "story", FullContent: "the whole body text"}})
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0].PlainBody, "the whole body text")
	})

	t.Run("html escapes markup", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDispatcher(testEmailCfg(), sender)

		d.Dispatch(context.Background(), []domain.Article{{ID: 1, Title: "<script>alert(1)</script>"}})
		require.Len(t, sender.sent, 1)
		assert.NotContains(t, sender.sent[0].HTMLBody, "<script>")
		assert.True(t, strings.Contains(sender.sent[0].HTMLBody, "&lt;script&gt;"))
	})
}

func TestDispatcher_SendErrorNotification(t *testing.T) {
	t.Run("sends when enabled", func(t *testing.T) {
		sender := &fakeSender{}
		d := newTestDispatcher(testEmailCfg(), sender)

		require.NoError(t, d.SendErrorNotification(context.Background(), "5 cycles failed"))
		require.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0].Subject, "monitoring error")
		assert.Contains(t, sender.sent[0].PlainBody, "5 cycles failed")
	})

	t.Run("suppressed when disabled", func(t *testing.T) {
		cfg := testEmailCfg()
		cfg.SendErrorNotifications = false
		sender := &fakeSender{}
		d := newTestDispatcher(cfg, sender)

		require.NoError(t, d.SendErrorNotification(context.Background(), "ignored"))
		assert.Empty(t, sender.sent)
	})
}

func TestDispatcher_SendTestEmail(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(testEmailCfg(), sender)

	require.NoError(t, d.SendTestEmail(context.Background()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Subject, "test notification")
	assert.Equal(t, []string{"ops@example.com"}, sender.sent[0].Recipients)
}
