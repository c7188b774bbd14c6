package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/6ixhq/creator/internal/model"
)

// PostgresAdSubmissionRepo はPostgreSQLを使用した広告出稿申し込みリポジトリ。
type PostgresAdSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresAdSubmissionRepo はPostgresAdSubmissionRepoを生成する。
func NewPostgresAdSubmissionRepo(db *sql.DB) *PostgresAdSubmissionRepo {
	return &PostgresAdSubmissionRepo{db: db}
}

// Create は申し込みを保存する。
func (r *PostgresAdSubmissionRepo) Create(ctx context.Context, s *model.AdSubmission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ad_submissions
		   (id, user_id, brand_name, contact_name, email, destination_url, budget, message,
		    destination_reachable, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, nullString(s.UserID), s.BrandName, s.ContactName, s.Email, s.DestinationURL,
		string(s.Budget), s.Message, nullBool(s.DestinationReachable), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ad submission: %w", err)
	}
	return nil
}

// ListPendingNotification は通知メール未送信の申し込みを古い順に取得する。
func (r *PostgresAdSubmissionRepo) ListPendingNotification(ctx context.Context, olderThan time.Time, limit int) ([]*model.AdSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, brand_name, contact_name, email, destination_url, budget, message,
		        destination_reachable, created_at
		 FROM ad_submissions
		 WHERE notified_at IS NULL AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending ad submissions: %w", err)
	}
	defer rows.Close()

	var subs []*model.AdSubmission
	for rows.Next() {
		s := &model.AdSubmission{}
		var userID sql.NullString
		var budget string
		var reachable sql.NullBool
		if err := rows.Scan(&s.ID, &userID, &s.BrandName, &s.ContactName, &s.Email, &s.DestinationURL,
			&budget, &s.Message, &reachable, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ad submission: %w", err)
		}
		s.UserID = userID.String
		s.Budget = model.AdBudget(budget)
		if reachable.Valid {
			v := reachable.Bool
			s.DestinationReachable = &v
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ad submissions: %w", err)
	}
	return subs, nil
}

// MarkNotified は通知メールの送信日時を記録する。
func (r *PostgresAdSubmissionRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	return markNotified(ctx, r.db, "ad_submissions", id, at)
}

// PostgresSongSubmissionRepo はPostgreSQLを使用した楽曲投稿リポジトリ。
type PostgresSongSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSongSubmissionRepo はPostgresSongSubmissionRepoを生成する。
func NewPostgresSongSubmissionRepo(db *sql.DB) *PostgresSongSubmissionRepo {
	return &PostgresSongSubmissionRepo{db: db}
}

// Create は楽曲投稿を保存する。
func (r *PostgresSongSubmissionRepo) Create(ctx context.Context, s *model.SongSubmission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO song_submissions
		   (id, user_id, artist_name, song_title, email, streaming_url, genre, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, nullString(s.UserID), s.ArtistName, s.SongTitle, s.Email, s.StreamingURL,
		s.Genre, s.Notes, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert song submission: %w", err)
	}
	return nil
}

// ListPendingNotification は通知メール未送信の投稿を古い順に取得する。
func (r *PostgresSongSubmissionRepo) ListPendingNotification(ctx context.Context, olderThan time.Time, limit int) ([]*model.SongSubmission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, artist_name, song_title, email, streaming_url, genre, notes, created_at
		 FROM song_submissions
		 WHERE notified_at IS NULL AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending song submissions: %w", err)
	}
	defer rows.Close()

	var subs []*model.SongSubmission
	for rows.Next() {
		s := &model.SongSubmission{}
		var userID sql.NullString
		if err := rows.Scan(&s.ID, &userID, &s.ArtistName, &s.SongTitle, &s.Email, &s.StreamingURL,
			&s.Genre, &s.Notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan song submission: %w", err)
		}
		s.UserID = userID.String
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate song submissions: %w", err)
	}
	return subs, nil
}

// MarkNotified は通知メールの送信日時を記録する。
func (r *PostgresSongSubmissionRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	return markNotified(ctx, r.db, "song_submissions", id, at)
}

// markNotified はtableの指定行にnotified_atを設定する。tableは呼び出し側の定数のみを渡す。
func markNotified(ctx context.Context, db *sql.DB, table, id string, at time.Time) error {
	result, err := db.ExecContext(ctx,
		`UPDATE `+table+` SET notified_at = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark %s notified: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// compile-time interface check
var (
	_ AdSubmissionRepository   = (*PostgresAdSubmissionRepo)(nil)
	_ SongSubmissionRepository = (*PostgresSongSubmissionRepo)(nil)
)
