// Package notify は投稿時に送れなかった審査通知メールを再送するバックグラウンドジョブを提供する。
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/6ixhq/creator/internal/metrics"
	"github.com/6ixhq/creator/internal/model"
	"github.com/6ixhq/creator/internal/repository"
)

const (
	// DefaultBatchSize は1サイクルで処理する種別ごとの最大件数。
	DefaultBatchSize = 50
	// DefaultMinAge は再送対象とする投稿の最小経過時間。
	// 投稿リクエスト内で送信中の通知と重複しないようにする。
	DefaultMinAge = time.Minute
)

// SubmissionNotifier は投稿の通知メールを送る。submission.Notifierが満たす。
type SubmissionNotifier interface {
	NotifyAd(ctx context.Context, s *model.AdSubmission) error
	NotifySong(ctx context.Context, s *model.SongSubmission) error
}

// Result は1サイクルの処理結果。
type Result struct {
	Sent   int
	Failed int
}

// Job は通知未送信の投稿を定期的に再送するジョブ。
// 1件ごとのエラーはログに記録して処理を継続する。
type Job struct {
	ads       repository.AdSubmissionRepository
	songs     repository.SongSubmissionRepository
	notifier  SubmissionNotifier
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	BatchSize int
	MinAge    time.Duration
	now       func() time.Time
}

// NewJob は新しいJobを生成する。
func NewJob(
	ads repository.AdSubmissionRepository,
	songs repository.SongSubmissionRepository,
	notifier SubmissionNotifier,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Job {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Job{
		ads:       ads,
		songs:     songs,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
		BatchSize: DefaultBatchSize,
		MinAge:    DefaultMinAge,
		now:       time.Now,
	}
}

// Start はinterval間隔でRunOnceを実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("notify worker started", slog.Duration("interval", interval))

	j.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("notify worker stopped")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.logger.Error("notify cycle failed", slog.String("error", err.Error()))
	}
}

// RunOnce は通知未送信の広告出稿と楽曲投稿を取得し、通知メールを送ってnotified_atを記録する。
// 一覧の取得に失敗した場合のみエラーを返す。
func (j *Job) RunOnce(ctx context.Context) (Result, error) {
	start := j.now()
	cutoff := start.Add(-j.MinAge)
	var res Result

	ads, err := j.ads.ListPendingNotification(ctx, cutoff, j.BatchSize)
	if err != nil {
		return res, fmt.Errorf("failed to list pending ad submissions: %w", err)
	}
	for _, s := range ads {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		j.record(&res, model.SubmissionKindAd, s.ID,
			func() error { return j.notifier.NotifyAd(ctx, s) },
			func(at time.Time) error { return j.ads.MarkNotified(ctx, s.ID, at) },
		)
	}

	songs, err := j.songs.ListPendingNotification(ctx, cutoff, j.BatchSize)
	if err != nil {
		return res, fmt.Errorf("failed to list pending song submissions: %w", err)
	}
	for _, s := range songs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		j.record(&res, model.SubmissionKindSong, s.ID,
			func() error { return j.notifier.NotifySong(ctx, s) },
			func(at time.Time) error { return j.songs.MarkNotified(ctx, s.ID, at) },
		)
	}

	if res.Sent+res.Failed > 0 {
		j.logger.Info("notify cycle completed",
			slog.Int("sent", res.Sent),
			slog.Int("failed", res.Failed),
			slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
		)
	}
	return res, nil
}

// record は1件の通知を送り、成功した場合にnotified_atを記録する。
func (j *Job) record(res *Result, kind model.SubmissionKind, id string, send func() error, mark func(time.Time) error) {
	if err := send(); err != nil {
		res.Failed++
		j.metrics.RecordNotificationFailed(string(kind))
		j.logger.Warn("submission notification failed",
			slog.String("kind", string(kind)),
			slog.String("submission_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := mark(j.now().UTC()); err != nil {
		// 送信済みだが記録できなかったため、次のサイクルで再送される
		res.Failed++
		j.logger.Error("failed to record notification",
			slog.String("kind", string(kind)),
			slog.String("submission_id", id),
			slog.String("error", err.Error()),
		)
		return
	}
	res.Sent++
}
