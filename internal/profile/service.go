// Package profile はオンボーディングとクリエイタープロフィールのドメインロジックを提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/6ixhq/creator/internal/model"
	"github.com/6ixhq/creator/internal/repository"
	"github.com/6ixhq/creator/internal/security"
)

const (
	maxDisplayNameLen = 60
	maxBioLen         = 280
)

// usernamePattern はユーザー名として受け付ける形式。
var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// OnboardInput はオンボーディングフォームの入力。
type OnboardInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

// Service はプロフィール管理のサービス層。
type Service struct {
	repo      repository.ProfileRepository
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ProfileRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// Onboard は入力を検証してプロフィールを保存し、オンボーディング完了状態にする。
// 既にプロフィールがある場合は作成日時を維持したまま上書きする。
// ユーザー名が他のユーザーに使われている場合はNewUsernameTakenErrorを返す。
func (s *Service) Onboard(ctx context.Context, userID string, in OnboardInput) (*model.Profile, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if !usernamePattern.MatchString(username) {
		return nil, model.NewValidationError("Username must be 3-24 characters: lowercase letters, numbers or underscores.")
	}

	displayName := s.sanitizer.Clean(in.DisplayName)
	if displayName == "" {
		return nil, model.NewValidationError("Display name is required.")
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, model.NewValidationError(fmt.Sprintf("Display name must be at most %d characters.", maxDisplayNameLen))
	}

	bio := s.sanitizer.Clean(in.Bio)
	if utf8.RuneCountInString(bio) > maxBioLen {
		return nil, model.NewValidationError(fmt.Sprintf("Bio must be at most %d characters.", maxBioLen))
	}

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	now := s.now().UTC()
	p := &model.Profile{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		Bio:         bio,
		Onboarded:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing != nil {
		p.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, model.NewUsernameTakenError(username)
		}
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	slog.Info("onboarding completed",
		slog.String("user_id", userID),
		slog.Bool("first_time", existing == nil || !existing.Onboarded),
	)
	return p, nil
}

// Get は指定ユーザーのプロフィールを返す。未作成の場合はNewProfileNotFoundErrorを返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// IsOnboarded はオンボーディングが完了しているかを返す。
func (s *Service) IsOnboarded(ctx context.Context, userID string) (bool, error) {
	return s.repo.IsOnboarded(ctx, userID)
}
