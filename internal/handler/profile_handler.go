package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/6ixhq/creator/internal/model"
	"github.com/6ixhq/creator/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Onboard(ctx context.Context, userID string, in profile.OnboardInput) (*model.Profile, error)
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// ProfileHandler はオンボーディングとプロフィール取得のHTTPハンドラー。
type ProfileHandler struct {
	service      ProfileServiceInterface
	cookieSecure bool
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface, cookieSecure bool) *ProfileHandler {
	return &ProfileHandler{
		service:      service,
		cookieSecure: cookieSecure,
	}
}

type profileResponse struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio"`
	Onboarded   bool      `json:"onboarded"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	return profileResponse{
		UserID:      p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		Onboarded:   p.Onboarded,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Onboard はプロフィールを保存してオンボーディングを完了させる。
// 成功時はオンボーディング完了Cookieを設定する。
// POST /api/profile/onboard
func (h *ProfileHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var in profile.OnboardInput
	if !decodeJSON(w, r, &in) {
		return
	}

	p, err := h.service.Onboard(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, onboardedCookie(h.cookieSecure))
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// Me はログインユーザーのプロフィールを返す。
// GET /api/profile/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p))
}
