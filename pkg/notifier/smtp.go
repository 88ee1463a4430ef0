package notifier

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
)

// SMTPSender delivers messages over SMTP with STARTTLS and plain auth.
// net/smtp covers everything needed here, no external mail library used.
type SMTPSender struct {
	cfg     config.EmailConfig
	timeout time.Duration
}

// NewSMTPSender creates a sender from email config
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: 30 * time.Second}
}

// Send delivers one message to all recipients. Credential rejections are
// reported as ErrAuth so the dispatcher skips retries.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.SMTPHost, fmt.Sprintf("%d", s.cfg.SMTPPort))

	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.timeout))
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("server %s does not support STARTTLS", s.cfg.SMTPHost)
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			if isAuthError(err) {
				return fmt.Errorf("%w: %v", ErrAuth, err)
			}
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range msg.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(s.encode(msg)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}

// encode builds an RFC 5322 message, multipart/alternative when an HTML
// body is present
func (s *SMTPSender) encode(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.PlainBody)
		return []byte(b.String())
	}

	boundary := newBoundary()
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.PlainBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTMLBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// newBoundary makes a random multipart boundary so a body containing a
// literal boundary string can't break the message structure
func newBoundary() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("alt-%x", buf)
}

// isAuthError recognizes permanent credential rejections (5xx auth codes)
func isAuthError(err error) bool {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code == 535 || tpErr.Code == 534 || tpErr.Code == 530
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "535") ||
		strings.Contains(errStr, "authentication failed") ||
		strings.Contains(errStr, "invalid credentials")
}
