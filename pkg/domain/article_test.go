package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArticleID(t *testing.T) {
	t.Run("stable across calls", func(t *testing.T) {
		id1 := ArticleID("https://example.com/news/1", "Chip plant opens")
		id2 := ArticleID("https://example.com/news/1", "Chip plant opens")
		assert.Equal(t, id1, id2)
		assert.Len(t, id1, 32, "md5 hex digest")
	})

	t.Run("distinct for different url", func(t *testing.T) {
		id1 := ArticleID("https://example.com/news/1", "Chip plant opens")
		id2 := ArticleID("https://example.com/news/2", "Chip plant opens")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("distinct for different title", func(t *testing.T) {
		id1 := ArticleID("https://example.com/news/1", "Chip plant opens")
		id2 := ArticleID("https://example.com/news/1", "Chip plant closes")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("insensitive to url cosmetics", func(t *testing.T) {
		id1 := ArticleID("https://Example.COM/news/1/", "Chip plant opens")
		id2 := ArticleID("https://example.com/news/1", "Chip plant opens")
		assert.Equal(t, id1, id2, "host case and trailing slash ignored")

		id3 := ArticleID("https://example.com/news/1#section", "Chip plant opens")
		assert.Equal(t, id1, id3, "fragment ignored")
	})

	t.Run("insensitive to title whitespace", func(t *testing.T) {
		id1 := ArticleID("https://example.com/news/1", "Chip   plant\n opens ")
		id2 := ArticleID("https://example.com/news/1", "Chip plant opens")
		assert.Equal(t, id1, id2)
	})
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already canonical", "https://example.com/news/1", "https://example.com/news/1"},
		{"uppercase host", "https://EXAMPLE.com/News/1", "https://example.com/News/1"},
		{"trailing slash", "https://example.com/news/1/", "https://example.com/news/1"},
		{"fragment dropped", "https://example.com/news/1#top", "https://example.com/news/1"},
		{"query preserved", "https://example.com/news?id=1", "https://example.com/news?id=1"},
		{"unparsable passthrough", "://bad url", "://bad url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalURL(tt.in))
		})
	}
}
