package notifier

import (
	"fmt"
	"mime"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/config"
)

func extractBoundary(t *testing.T, raw string) string {
	t.Helper()
	for _, line := range strings.Split(raw, "\r\n") {
		if !strings.HasPrefix(line, "Content-Type: multipart/alternative") {
			continue
		}
		_, params, err := mime.ParseMediaType(strings.TrimPrefix(line, "Content-Type: "))
		require.NoError(t, err)
		require.NotEmpty(t, params["boundary"])
		return params["boundary"]
	}
	t.Fatal("no multipart content-type header found")
	return ""
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"535 code", &textproto.Error{Code: 535, Msg: "authentication credentials invalid"}, true},
		{"530 code", &textproto.Error{Code: 530, Msg: "authentication required"}, true},
		{"wrapped 535", fmt.Errorf("smtp auth: %w", &textproto.Error{Code: 535, Msg: "no"}), true},
		{"transient 421", &textproto.Error{Code: 421, Msg: "service not available"}, false},
		{"plain auth message", fmt.Errorf("authentication failed for user"), true},
		{"network error", fmt.Errorf("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAuthError(tt.err))
		})
	}
}

func TestSMTPSender_Encode(t *testing.T) {
	sender := NewSMTPSender(config.EmailConfig{From: "monitor@example.com"})

	t.Run("plain only", func(t *testing.T) {
		raw := string(sender.encode(Message{
			Subject:    "hello",
			PlainBody:  "body text",
			Recipients: []string{"a@example.com", "b@example.com"},
		}))
		assert.Contains(t, raw, "From: monitor@example.com\r\n")
		assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
		assert.Contains(t, raw, "Content-Type: text/plain")
		assert.Contains(t, raw, "body text")
		assert.NotContains(t, raw, "multipart")
	})

	t.Run("multipart alternative", func(t *testing.T) {
		raw := string(sender.encode(Message{
			Subject:    "hello",
			PlainBody:  "plain version",
			HTMLBody:   "<p>html version</p>",
			Recipients: []string{"a@example.com"},
		}))
		assert.Contains(t, raw, "multipart/alternative")
		assert.Contains(t, raw, "plain version")
		assert.Contains(t, raw, "<p>html version</p>")

		boundary := extractBoundary(t, raw)
		assert.Contains(t, raw, "--"+boundary+"\r\n", "parts delimited by the declared boundary")
		assert.Contains(t, raw, "--"+boundary+"--\r\n", "closing delimiter present")
	})

	t.Run("boundary is random per message", func(t *testing.T) {
		msg := Message{
			Subject:    "hello",
			PlainBody:  "plain",
			HTMLBody:   "<p>html</p>",
			Recipients: []string{"a@example.com"},
		}
		first := extractBoundary(t, string(sender.encode(msg)))
		second := extractBoundary(t, string(sender.encode(msg)))
		assert.NotEqual(t, first, second, "a body containing one message's boundary can't break another")
	})

	t.Run("subject with non-ascii is encoded", func(t *testing.T) {
		raw := string(sender.encode(Message{
			Subject:    "새 공장",
			PlainBody:  "x",
			Recipients: []string{"a@example.com"},
		}))
		assert.Contains(t, raw, "=?utf-8?q?")
	})
}
