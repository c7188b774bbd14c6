// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/6ixhq/creator/internal/model"
)

// ErrUsernameTaken はユーザー名の一意制約に違反した場合に返される。
var ErrUsernameTaken = errors.New("username already taken")

// ProfileRepository はクリエイタープロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// IsOnboarded はオンボーディングが完了しているかを返す。プロフィールが無い場合はfalse。
	IsOnboarded(ctx context.Context, userID string) (bool, error)

	// Upsert はプロフィールを作成または更新する。
	// ユーザー名が他のユーザーに使われている場合はErrUsernameTakenを返す。
	Upsert(ctx context.Context, profile *model.Profile) error
}

// AdSubmissionRepository は広告出稿申し込みの永続化インターフェース。
type AdSubmissionRepository interface {
	Create(ctx context.Context, s *model.AdSubmission) error

	// ListPendingNotification は通知メール未送信のうち、olderThanより前に作成されたものを古い順に取得する。
	ListPendingNotification(ctx context.Context, olderThan time.Time, limit int) ([]*model.AdSubmission, error)

	MarkNotified(ctx context.Context, id string, at time.Time) error
}

// SongSubmissionRepository は楽曲投稿の永続化インターフェース。
type SongSubmissionRepository interface {
	Create(ctx context.Context, s *model.SongSubmission) error
	ListPendingNotification(ctx context.Context, olderThan time.Time, limit int) ([]*model.SongSubmission, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
}
