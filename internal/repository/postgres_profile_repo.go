package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/6ixhq/creator/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, display_name, bio, onboarded, created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Username, &p.DisplayName, &p.Bio, &p.Onboarded, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by user ID: %w", err)
	}
	return p, nil
}

// IsOnboarded はオンボーディングが完了しているかを返す。プロフィールが無い場合はfalse。
func (r *PostgresProfileRepo) IsOnboarded(ctx context.Context, userID string) (bool, error) {
	var onboarded bool
	err := r.db.QueryRowContext(ctx,
		`SELECT onboarded FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&onboarded)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check onboarding state: %w", err)
	}
	return onboarded, nil
}

// Upsert はプロフィールを作成または更新する。
// created_atは初回作成時の値を維持する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, username, display_name, bio, onboarded, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   username = EXCLUDED.username,
		   display_name = EXCLUDED.display_name,
		   bio = EXCLUDED.bio,
		   onboarded = EXCLUDED.onboarded,
		   updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Username, p.DisplayName, p.Bio, p.Onboarded, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
