package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?cache=shared&mode=rwc&_txlock=immediate"
	database, err := New(Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, database.Close()) })
	return database
}

func testArticle(title string) *domain.Article {
	return &domain.Article{
		Title:          title,
		URL:            "https://example.com/" + title,
		MatchedKeyword: "chip",
		Summary:        "summary of " + title,
	}
}

func TestNew(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.Ping(context.Background()))

	// schema creation is idempotent
	require.NoError(t, database.initSchema(context.Background()))
}

func TestDB_AddArticle(t *testing.T) {
	ctx := context.Background()

	t.Run("insert and duplicate", func(t *testing.T) {
		database := setupTestDB(t)

		article := testArticle("one")
		added, err := database.AddArticle(ctx, article)
		require.NoError(t, err)
		assert.True(t, added)
		assert.NotEmpty(t, article.ArticleID, "content-address filled in")
		assert.NotZero(t, article.ID)

		dup := testArticle("one")
		added, err = database.AddArticle(ctx, dup)
		require.NoError(t, err)
		assert.False(t, added, "same url and title is not new")

		total, _, err := database.ArticleCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("different title is a different article", func(t *testing.T) {
		database := setupTestDB(t)

		added, err := database.AddArticle(ctx, testArticle("one"))
		require.NoError(t, err)
		assert.True(t, added)

		other := testArticle("one")
		other.Title = "one, updated"
		added, err = database.AddArticle(ctx, other)
		require.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("concurrent inserts of the same article", func(t *testing.T) {
		database := setupTestDB(t)

		const workers = 8
		inserted := make([]bool, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				added, err := database.AddArticle(ctx, testArticle("contested"))
				assert.NoError(t, err)
				inserted[n] = added
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, ok := range inserted {
			if ok {
				wins++
			}
		}
		assert.Equal(t, 1, wins, "exactly one insert reports true")

		total, _, err := database.ArticleCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestDB_ArticleExists(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	article := testArticle("one")
	_, err := database.AddArticle(ctx, article)
	require.NoError(t, err)

	exists, err := database.ArticleExists(ctx, article.ArticleID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = database.ArticleExists(ctx, "no-such-id")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDB_GetUnnotifiedArticles(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		article := testArticle(fmt.Sprintf("article-%d", i))
		added, err := database.AddArticle(ctx, article)
		require.NoError(t, err)
		require.True(t, added)
		ids = append(ids, article.ID)
	}

	pending, err := database.GetUnnotifiedArticles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "article-2", pending[0].Title, "newest first")

	t.Run("limit applied", func(t *testing.T) {
		limited, err := database.GetUnnotifiedArticles(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("notified excluded", func(t *testing.T) {
		require.NoError(t, database.MarkNotified(ctx, ids[:2]))

		pending, err := database.GetUnnotifiedArticles(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ids[2], pending[0].ID)
	})
}

func TestDB_MarkNotified(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	article := testArticle("one")
	_, err := database.AddArticle(ctx, article)
	require.NoError(t, err)

	require.NoError(t, database.MarkNotified(ctx, []int64{article.ID}))

	_, pending, err := database.ArticleCounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, database.MarkNotified(ctx, []int64{article.ID}))
	})

	t.Run("empty set is a no-op", func(t *testing.T) {
		require.NoError(t, database.MarkNotified(ctx, nil))
	})

	t.Run("unknown ids do not fail", func(t *testing.T) {
		require.NoError(t, database.MarkNotified(ctx, []int64{99999}))
	})
}

func TestDB_UpdateTranslation(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	article := testArticle("新工場")
	_, err := database.AddArticle(ctx, article)
	require.NoError(t, err)

	require.NoError(t, database.UpdateTranslation(ctx, article.ArticleID, "새 공장"))

	pending, err := database.GetUnnotifiedArticles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "새 공장", pending[0].TranslatedTitle)
}

func TestDB_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("no runs yields zeroes", func(t *testing.T) {
		database := setupTestDB(t)

		stats, err := database.Stats(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalRuns)
		assert.Zero(t, stats.SuccessRate)
		assert.True(t, stats.LastCheck.IsZero())
	})

	t.Run("aggregates recorded runs", func(t *testing.T) {
		database := setupTestDB(t)

		database.LogRun(ctx, domain.RunStats{ArticlesFound: 10, NewArticles: 3, Status: domain.RunSuccess, ExecutionTime: 2 * time.Second})
		database.LogRun(ctx, domain.RunStats{ArticlesFound: 8, NewArticles: 1, Status: domain.RunSuccess, ExecutionTime: 4 * time.Second})
		database.LogRun(ctx, domain.RunStats{Status: domain.RunError, ErrorMessage: "site down", ExecutionTime: time.Second})

		stats, err := database.Stats(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalRuns)
		assert.Equal(t, 2, stats.SuccessfulRuns)
		assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)
		assert.Equal(t, 4, stats.TotalNewArticles)
		assert.InDelta(t, 7.0/3.0, stats.AvgExecutionTime, 0.001)
		assert.False(t, stats.LastCheck.IsZero())
		assert.WithinDuration(t, time.Now().UTC(), stats.LastCheck, time.Minute)
	})
}

func TestDB_CleanupOldRecords(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	oldNotified := testArticle("old-notified")
	oldPending := testArticle("old-pending")
	recent := testArticle("recent")
	for _, a := range []*domain.Article{oldNotified, oldPending, recent} {
		added, err := database.AddArticle(ctx, a)
		require.NoError(t, err)
		require.True(t, added)
	}
	require.NoError(t, database.MarkNotified(ctx, []int64{oldNotified.ID}))

	// age two of the rows past the retention window
	aged := time.Now().UTC().AddDate(0, 0, -120).Format("2006-01-02 15:04:05")
	_, err := database.conn.ExecContext(ctx, "UPDATE articles SET created_at = ? WHERE id IN (?, ?)",
		aged, oldNotified.ID, oldPending.ID)
	require.NoError(t, err)

	database.LogRun(ctx, domain.RunStats{Status: domain.RunSuccess})
	_, err = database.conn.ExecContext(ctx, "UPDATE monitoring_runs SET check_time = ?", aged)
	require.NoError(t, err)

	deleted, err := database.CleanupOldRecords(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted, "one article and one run removed")

	pending, err := database.GetUnnotifiedArticles(ctx, 0)
	require.NoError(t, err)

	titles := make([]string, 0, len(pending))
	for _, a := range pending {
		titles = append(titles, a.Title)
	}
	assert.Contains(t, titles, "old-pending", "unnotified articles survive regardless of age")
	assert.Contains(t, titles, "recent")

	exists, err := database.ArticleExists(ctx, oldNotified.ArticleID)
	require.NoError(t, err)
	assert.False(t, exists, "old notified article removed")
}
