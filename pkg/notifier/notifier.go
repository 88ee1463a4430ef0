// Package notifier delivers article alerts over email with per-article
// delivery outcomes, so the caller marks exactly the delivered set.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// ErrAuth indicates the mail server rejected our credentials. Retrying
// with the same credentials cannot succeed, so dispatch gives up at once.
var ErrAuth = errors.New("smtp authentication failed")

// Sender delivers a single prepared message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a prepared email ready for delivery
type Message struct {
	Subject    string
	PlainBody  string
	HTMLBody   string
	Recipients []string
}

// Outcome reports which articles were delivered and which were not.
// The two slices partition the dispatched set.
type Outcome struct {
	Sent   []domain.Article
	Failed []domain.Article
}

// Dispatcher groups articles into messages and delivers them through a
// Sender with retries. Auth failures are terminal, transient failures are
// retried with exponential backoff.
type Dispatcher struct {
	cfg         config.EmailConfig
	sender      Sender
	backoffBase time.Duration
}

// New creates a dispatcher; pass a custom sender for testing
func New(cfg config.EmailConfig, sender Sender) *Dispatcher {
	return &Dispatcher{cfg: cfg, sender: sender, backoffBase: 2 * time.Second}
}

// Dispatch sends notifications for the given articles. Urgent articles go
// first, each in its own message. Normal articles follow, batched in one
// message or sent individually per configuration. A failed message fails
// only the articles it carried, delivery of the rest proceeds.
func (d *Dispatcher) Dispatch(ctx context.Context, articles []domain.Article) Outcome {
	var outcome Outcome
	if len(articles) == 0 {
		return outcome
	}
	if len(d.cfg.Recipients) == 0 {
		lgr.Printf("[WARN] no recipients configured, skipping %d notifications", len(articles))
		outcome.Failed = articles
		return outcome
	}

	var urgent, normal []domain.Article
	for _, a := range articles {
		if a.IsUrgent {
			urgent = append(urgent, a)
		} else {
			normal = append(normal, a)
		}
	}

	for _, a := range urgent {
		d.deliver(ctx, d.urgentMessage(a), []domain.Article{a}, &outcome)
	}

	switch {
	case len(normal) == 0:
	case d.cfg.BatchNotifications && len(normal) > 1:
		d.deliver(ctx, d.batchMessage(normal), normal, &outcome)
	default:
		for _, a := range normal {
			d.deliver(ctx, d.singleMessage(a), []domain.Article{a}, &outcome)
		}
	}

	lgr.Printf("[INFO] notifications dispatched: %d sent, %d failed", len(outcome.Sent), len(outcome.Failed))
	return outcome
}

// deliver sends one message with retries and files its articles under the
// matching outcome bucket
func (d *Dispatcher) deliver(ctx context.Context, msg Message, carried []domain.Article, outcome *Outcome) {
	if err := d.sendWithRetry(ctx, msg); err != nil {
		lgr.Printf("[WARN] failed to send %q: %v", msg.Subject, err)
		outcome.Failed = append(outcome.Failed, carried...)
		return
	}
	outcome.Sent = append(outcome.Sent, carried...)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, msg Message) error {
	attempts := d.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	retrier := repeater.NewBackoff(attempts, d.backoffBase, repeater.WithMaxDelay(30*time.Second))
	return retrier.Do(ctx, func() error {
		return d.sender.Send(ctx, msg)
	}, ErrAuth) // auth rejection is terminal, do not retry
}

// SendErrorNotification alerts the operators that monitoring is failing
func (d *Dispatcher) SendErrorNotification(ctx context.Context, errMsg string) error {
	if !d.cfg.SendErrorNotifications {
		lgr.Printf("[DEBUG] error notifications disabled, suppressing: %s", errMsg)
		return nil
	}
	msg := Message{
		Subject:    d.subject("⚠️ monitoring error"),
		PlainBody:  fmt.Sprintf("The news monitor hit repeated errors and needs attention.\n\n%s\n\nTime: %s\n", errMsg, time.Now().Format(time.RFC1123)),
		Recipients: d.cfg.Recipients,
	}
	return d.sendWithRetry(ctx, msg)
}

// SendTestEmail verifies SMTP settings end to end
func (d *Dispatcher) SendTestEmail(ctx context.Context) error {
	msg := Message{
		Subject:    d.subject("test notification"),
		PlainBody:  fmt.Sprintf("This is a test message from the news monitor.\nIf you can read this, email delivery works.\n\nTime: %s\n", time.Now().Format(time.RFC1123)),
		Recipients: d.cfg.Recipients,
	}
	return d.sendWithRetry(ctx, msg)
}

func (d *Dispatcher) subject(s string) string {
	if d.cfg.SubjectPrefix != "" {
		return d.cfg.SubjectPrefix + " " + s
	}
	return s
}
