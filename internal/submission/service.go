// Package submission は広告出稿と楽曲投稿フォームのドメインロジックを提供する。
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/6ixhq/creator/internal/metrics"
	"github.com/6ixhq/creator/internal/model"
	"github.com/6ixhq/creator/internal/repository"
	"github.com/6ixhq/creator/internal/security"
)

// 入力値の最大長（文字数）
const (
	maxNameLen    = 120
	maxTitleLen   = 200
	maxGenreLen   = 60
	maxURLLen     = 2048
	maxMessageLen = 2000
)

// URLChecker は外部URLの検証と到達確認を行う。security.URLGuardが満たす。
type URLChecker interface {
	ValidateURL(rawURL string) error
	Probe(ctx context.Context, rawURL string) *bool
}

// AdInput は広告出稿フォームの入力。
type AdInput struct {
	BrandName      string `json:"brandName"`
	ContactName    string `json:"contactName"`
	Email          string `json:"email"`
	DestinationURL string `json:"destinationUrl"`
	Budget         string `json:"budget"`
	Message        string `json:"message"`
}

// SongInput は楽曲投稿フォームの入力。
type SongInput struct {
	ArtistName   string `json:"artistName"`
	SongTitle    string `json:"songTitle"`
	Email        string `json:"email"`
	StreamingURL string `json:"streamingUrl"`
	Genre        string `json:"genre"`
	Notes        string `json:"notes"`
}

// Service は投稿フォームのサービス層。
// 入力を検証・サニタイズして保存し、審査用の受信箱へ通知する。
type Service struct {
	adRepo    repository.AdSubmissionRepository
	songRepo  repository.SongSubmissionRepository
	sanitizer security.TextSanitizer
	urls      URLChecker
	notifier  *Notifier
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	adRepo repository.AdSubmissionRepository,
	songRepo repository.SongSubmissionRepository,
	sanitizer security.TextSanitizer,
	urls URLChecker,
	notifier *Notifier,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		adRepo:    adRepo,
		songRepo:  songRepo,
		sanitizer: sanitizer,
		urls:      urls,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitAd は広告出稿申し込みを受け付け、作成したIDを返す。
// userIDは未ログインの場合は空文字列。入力エラーは*model.APIErrorで返す。
// 通知メールの失敗は呼び出し元に返さず、notified_atが未設定のまま通知ワーカーが再送する。
func (s *Service) SubmitAd(ctx context.Context, userID string, in AdInput) (string, error) {
	sub := &model.AdSubmission{
		UserID:         userID,
		BrandName:      s.sanitizer.Clean(in.BrandName),
		ContactName:    s.sanitizer.Clean(in.ContactName),
		DestinationURL: strings.TrimSpace(in.DestinationURL),
		Budget:         model.AdBudget(strings.TrimSpace(in.Budget)),
		Message:        s.sanitizer.Clean(in.Message),
	}

	if err := requireText("Brand name", sub.BrandName, maxNameLen); err != nil {
		return "", err
	}
	if err := requireText("Contact name", sub.ContactName, maxNameLen); err != nil {
		return "", err
	}
	email, err := model.ParseEmail(in.Email)
	if err != nil {
		return "", err
	}
	sub.Email = email
	if len(sub.DestinationURL) > maxURLLen || s.urls.ValidateURL(sub.DestinationURL) != nil {
		return "", model.NewInvalidDestinationError()
	}
	if !validBudget(sub.Budget) {
		return "", model.NewValidationError("Please choose a budget.")
	}
	if utf8.RuneCountInString(sub.Message) > maxMessageLen {
		return "", model.NewValidationError(fmt.Sprintf("Message must be at most %d characters.", maxMessageLen))
	}

	sub.DestinationReachable = s.urls.Probe(ctx, sub.DestinationURL)
	sub.ID = uuid.NewString()
	sub.CreatedAt = s.now().UTC()

	if err := s.adRepo.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("広告出稿申し込みの保存に失敗しました: %w", err)
	}
	s.metrics.RecordSubmission(string(model.SubmissionKindAd))

	if err := s.notifier.NotifyAd(ctx, sub); err != nil {
		s.notifyFailed(model.SubmissionKindAd, sub.ID, err)
		return sub.ID, nil
	}
	if err := s.adRepo.MarkNotified(ctx, sub.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record ad notification",
			slog.String("submission_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
	return sub.ID, nil
}

// SubmitSong は楽曲投稿を受け付け、作成したIDを返す。
func (s *Service) SubmitSong(ctx context.Context, userID string, in SongInput) (string, error) {
	sub := &model.SongSubmission{
		UserID:       userID,
		ArtistName:   s.sanitizer.Clean(in.ArtistName),
		SongTitle:    s.sanitizer.Clean(in.SongTitle),
		StreamingURL: strings.TrimSpace(in.StreamingURL),
		Genre:        s.sanitizer.Clean(in.Genre),
		Notes:        s.sanitizer.Clean(in.Notes),
	}

	if err := requireText("Artist name", sub.ArtistName, maxNameLen); err != nil {
		return "", err
	}
	if err := requireText("Song title", sub.SongTitle, maxTitleLen); err != nil {
		return "", err
	}
	email, err := model.ParseEmail(in.Email)
	if err != nil {
		return "", err
	}
	sub.Email = email
	if len(sub.StreamingURL) > maxURLLen || s.urls.ValidateURL(sub.StreamingURL) != nil {
		return "", model.NewInvalidStreamingURLError()
	}
	if utf8.RuneCountInString(sub.Genre) > maxGenreLen {
		return "", model.NewValidationError(fmt.Sprintf("Genre must be at most %d characters.", maxGenreLen))
	}
	if utf8.RuneCountInString(sub.Notes) > maxMessageLen {
		return "", model.NewValidationError(fmt.Sprintf("Notes must be at most %d characters.", maxMessageLen))
	}

	sub.ID = uuid.NewString()
	sub.CreatedAt = s.now().UTC()

	if err := s.songRepo.Create(ctx, sub); err != nil {
		return "", fmt.Errorf("楽曲投稿の保存に失敗しました: %w", err)
	}
	s.metrics.RecordSubmission(string(model.SubmissionKindSong))

	if err := s.notifier.NotifySong(ctx, sub); err != nil {
		s.notifyFailed(model.SubmissionKindSong, sub.ID, err)
		return sub.ID, nil
	}
	if err := s.songRepo.MarkNotified(ctx, sub.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record song notification",
			slog.String("submission_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}
	return sub.ID, nil
}

func (s *Service) notifyFailed(kind model.SubmissionKind, id string, err error) {
	s.metrics.RecordNotificationFailed(string(kind))
	s.logger.Warn("submission notification failed, leaving it for the notify worker",
		slog.String("kind", string(kind)),
		slog.String("submission_id", id),
		slog.String("error", err.Error()),
	)
}

// requireText は必須の自由記述欄を検証する。
func requireText(field, v string, max int) error {
	if v == "" {
		return model.NewValidationError(field + " is required.")
	}
	if utf8.RuneCountInString(v) > max {
		return model.NewValidationError(fmt.Sprintf("%s must be at most %d characters.", field, max))
	}
	return nil
}

func validBudget(b model.AdBudget) bool {
	for _, v := range model.ValidAdBudgets {
		if b == v {
			return true
		}
	}
	return false
}
