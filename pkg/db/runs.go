package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// LogRun appends one monitoring run to the audit log. Logging failures are
// reported but never propagated - a cycle result must not be lost over a
// bookkeeping error.
func (db *DB) LogRun(ctx context.Context, stats domain.RunStats) {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO monitoring_runs (articles_found, new_articles, status, error_message, execution_time_seconds)
		VALUES (?, ?, ?, ?, ?)
	`, stats.ArticlesFound, stats.NewArticles, string(stats.Status), stats.ErrorMessage, stats.ExecutionTime.Seconds())
	if err != nil {
		lgr.Printf("[ERROR] failed to log monitoring run: %v", err)
	}
}

// Stats aggregates monitoring runs over the trailing window of days.
// No runs in the window yields a zero-valued result, not an error.
func (db *DB) Stats(ctx context.Context, days int) (domain.Stats, error) {
	// CURRENT_TIMESTAMP stores UTC "YYYY-MM-DD HH:MM:SS"; compare as text
	since := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02 15:04:05")

	var row struct {
		TotalRuns        int             `db:"total_runs"`
		SuccessfulRuns   int             `db:"successful_runs"`
		TotalNewArticles sql.NullInt64   `db:"total_new_articles"`
		AvgExecutionTime sql.NullFloat64 `db:"avg_execution_time"`
		LastCheck        sql.NullString  `db:"last_check"` // MAX() loses the column decltype, comes back as text
	}
	err := db.conn.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS total_runs,
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) AS successful_runs,
			SUM(new_articles) AS total_new_articles,
			AVG(execution_time_seconds) AS avg_execution_time,
			MAX(check_time) AS last_check
		FROM monitoring_runs
		WHERE check_time >= ?
	`, since)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("get monitoring stats: %w", err)
	}

	stats := domain.Stats{
		TotalRuns:        row.TotalRuns,
		SuccessfulRuns:   row.SuccessfulRuns,
		TotalNewArticles: int(row.TotalNewArticles.Int64),
		AvgExecutionTime: row.AvgExecutionTime.Float64,
	}
	if row.TotalRuns > 0 {
		stats.SuccessRate = float64(row.SuccessfulRuns) / float64(row.TotalRuns)
	}
	if row.LastCheck.Valid {
		if ts, perr := time.Parse("2006-01-02 15:04:05", row.LastCheck.String); perr == nil {
			stats.LastCheck = ts.UTC()
		}
	}
	return stats, nil
}

// CleanupOldRecords deletes notified articles and monitoring runs older than
// the retention window. Unnotified articles are never deleted regardless of
// age - undelivered items must not silently disappear. Returns total rows
// removed.
func (db *DB) CleanupOldRecords(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format("2006-01-02 15:04:05")

	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM articles
		WHERE created_at < ? AND notified = TRUE
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup articles: %w", err)
	}
	articlesDeleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup articles rows affected: %w", err)
	}

	res, err = db.conn.ExecContext(ctx, `
		DELETE FROM monitoring_runs
		WHERE check_time < ?
	`, cutoff)
	if err != nil {
		return articlesDeleted, fmt.Errorf("cleanup monitoring runs: %w", err)
	}
	runsDeleted, err := res.RowsAffected()
	if err != nil {
		return articlesDeleted, fmt.Errorf("cleanup runs rows affected: %w", err)
	}

	if articlesDeleted+runsDeleted > 0 {
		lgr.Printf("[INFO] cleanup removed %d articles and %d runs", articlesDeleted, runsDeleted)
	}
	return articlesDeleted + runsDeleted, nil
}
