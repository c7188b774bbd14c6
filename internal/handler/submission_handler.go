package handler

import (
	"context"
	"net/http"

	"github.com/6ixhq/creator/internal/middleware"
	"github.com/6ixhq/creator/internal/submission"
)

// SubmissionServiceInterface は投稿フォームハンドラーが必要とするサービスインターフェース。
type SubmissionServiceInterface interface {
	SubmitAd(ctx context.Context, userID string, in submission.AdInput) (string, error)
	SubmitSong(ctx context.Context, userID string, in submission.SongInput) (string, error)
}

// SubmissionHandler は広告出稿と楽曲投稿のHTTPハンドラー。
// どちらも未ログインで利用でき、ログイン中であれば投稿にユーザーIDを記録する。
type SubmissionHandler struct {
	service SubmissionServiceInterface
}

// NewSubmissionHandler はSubmissionHandlerを生成する。
func NewSubmissionHandler(service SubmissionServiceInterface) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

type submissionResponse struct {
	ID string `json:"id"`
}

// SubmitAd は広告出稿申し込みを受け付ける。
// POST /api/ads
func (h *SubmissionHandler) SubmitAd(w http.ResponseWriter, r *http.Request) {
	var in submission.AdInput
	if !decodeJSON(w, r, &in) {
		return
	}

	id, err := h.service.SubmitAd(r.Context(), optionalUserID(r), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submissionResponse{ID: id})
}

// SubmitSong は楽曲投稿を受け付ける。
// POST /api/songs
func (h *SubmissionHandler) SubmitSong(w http.ResponseWriter, r *http.Request) {
	var in submission.SongInput
	if !decodeJSON(w, r, &in) {
		return
	}

	id, err := h.service.SubmitSong(r.Context(), optionalUserID(r), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submissionResponse{ID: id})
}

func optionalUserID(r *http.Request) string {
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		return s.UserID
	}
	return ""
}
