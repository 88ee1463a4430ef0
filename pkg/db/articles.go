package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/hyeonjeho3-star/gomu-news-monitor/pkg/domain"
)

// articleSQL represents an article row for SQL operations
type articleSQL struct {
	ID              int64     `db:"id"`
	ArticleID       string    `db:"article_id"`
	Title           string    `db:"title"`
	TranslatedTitle string    `db:"translated_title"`
	URL             string    `db:"url"`
	MatchedKeyword  string    `db:"matched_keyword"`
	IsUrgent        bool      `db:"is_urgent"`
	PublishedAt     string    `db:"published_at"`
	Summary         string    `db:"summary"`
	FullContent     string    `db:"full_content"`
	MemberOnly      bool      `db:"member_only"`
	Notified        bool      `db:"notified"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (a *articleSQL) toDomain() domain.Article {
	return domain.Article{
		ID:              a.ID,
		ArticleID:       a.ArticleID,
		Title:           a.Title,
		TranslatedTitle: a.TranslatedTitle,
		URL:             a.URL,
		MatchedKeyword:  a.MatchedKeyword,
		IsUrgent:        a.IsUrgent,
		PublishedAt:     a.PublishedAt,
		Summary:         a.Summary,
		FullContent:     a.FullContent,
		MemberOnly:      a.MemberOnly,
		Notified:        a.Notified,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// ArticleExists checks if an article with the given content-address exists
func (db *DB) ArticleExists(ctx context.Context, articleID string) (bool, error) {
	var exists bool
	err := db.conn.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM articles WHERE article_id = ?)", articleID)
	if err != nil {
		return false, fmt.Errorf("check article exists: %w", err)
	}
	return exists, nil
}

// AddArticle inserts an article if its content-address is not present yet.
// Returns true when the row was actually inserted. The uniqueness constraint,
// not a prior existence check, resolves the check-then-act race: a duplicate
// insert reports false without error.
func (db *DB) AddArticle(ctx context.Context, article *domain.Article) (bool, error) {
	if article.ArticleID == "" {
		article.ArticleID = domain.ArticleID(article.URL, article.Title)
	}

	query := `
		INSERT INTO articles (
			article_id, title, translated_title, url, matched_keyword,
			is_urgent, published_at, summary, full_content, member_only, notified
		) VALUES (
			:article_id, :title, :translated_title, :url, :matched_keyword,
			:is_urgent, :published_at, :summary, :full_content, :member_only, FALSE
		)
		ON CONFLICT(article_id) DO NOTHING
	`
	row := articleSQL{
		ArticleID:       article.ArticleID,
		Title:           article.Title,
		TranslatedTitle: article.TranslatedTitle,
		URL:             article.URL,
		MatchedKeyword:  article.MatchedKeyword,
		IsUrgent:        article.IsUrgent,
		PublishedAt:     article.PublishedAt,
		Summary:         article.Summary,
		FullContent:     article.FullContent,
		MemberOnly:      article.MemberOnly,
	}

	result, err := db.conn.NamedExecContext(ctx, query, &row)
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil // duplicate, not an error
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("get last insert id: %w", err)
	}
	article.ID = id
	return true, nil
}

// GetUnnotifiedArticles retrieves articles pending notification, newest
// first. A limit of 0 means no limit.
func (db *DB) GetUnnotifiedArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE notified = FALSE
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []articleSQL
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get unnotified articles: %w", err)
	}

	articles := make([]domain.Article, 0, len(rows))
	for i := range rows {
		articles = append(articles, rows[i].toDomain())
	}
	return articles, nil
}

// MarkNotified flips the notified flag for the given rows in one atomic
// batch update. Marking an already-notified article again is a no-op.
func (db *DB) MarkNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		return db.InTransaction(ctx, func(tx *sqlx.Tx) error {
			query, args, err := sqlx.In(`
				UPDATE articles
				SET notified = TRUE, updated_at = CURRENT_TIMESTAMP
				WHERE id IN (?)
			`, ids)
			if err != nil {
				return &criticalError{err: fmt.Errorf("build mark notified query: %w", err)}
			}
			if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
				if isLockError(err) {
					return err // repeater will retry this
				}
				return &criticalError{err: fmt.Errorf("mark notified: %w", err)}
			}
			return nil
		})
	})
}

// UpdateTranslation stores a translated title for an article
func (db *DB) UpdateTranslation(ctx context.Context, articleID, translatedTitle string) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE articles
		SET translated_title = ?, updated_at = CURRENT_TIMESTAMP
		WHERE article_id = ?
	`, translatedTitle, articleID)
	if err != nil {
		return fmt.Errorf("update translation: %w", err)
	}
	return nil
}

// ArticleCounts returns total and pending-notification article counts
func (db *DB) ArticleCounts(ctx context.Context) (total, pending int, err error) {
	if err = db.conn.GetContext(ctx, &total, "SELECT COUNT(*) FROM articles"); err != nil {
		return 0, 0, fmt.Errorf("count articles: %w", err)
	}
	if err = db.conn.GetContext(ctx, &pending, "SELECT COUNT(*) FROM articles WHERE notified = FALSE"); err != nil {
		return 0, 0, fmt.Errorf("count pending articles: %w", err)
	}
	return total, pending, nil
}
