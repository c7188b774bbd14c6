package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/6ixhq/creator/internal/auth"
	"github.com/6ixhq/creator/internal/middleware"
	"github.com/6ixhq/creator/internal/model"
)

const (
	mainAppPath         = "/home"
	onboardingEntryPath = "/onboarding"

	// onboardedCookieMaxAge はオンボーディング完了Cookieの有効期間（1年）。
	onboardedCookieMaxAge = 365 * 24 * 60 * 60
)

// AuthClient は認証ハンドラーが必要とする認証プロバイダーのインターフェース。
// auth.SupabaseClientが実装する。
type AuthClient interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, token string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	SessionCookies(r *http.Request, s *model.Session) ([]*http.Cookie, error)
	ClearCookies(r *http.Request) []*http.Cookie
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler はOTPログイン関連のHTTPハンドラー。
type AuthHandler struct {
	client   AuthClient
	profiles middleware.OnboardingChecker
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(client AuthClient, profiles middleware.OnboardingChecker, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		client:   client,
		profiles: profiles,
		config:   config,
	}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type verifyOTPResponse struct {
	OK        bool   `json:"ok"`
	Onboarded bool   `json:"onboarded"`
	Next      string `json:"next"`
}

type meResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Onboarded bool   `json:"onboarded"`
}

// SendOTP はメールアドレスにワンタイムコードを送信する。
// POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email, err := model.ParseEmail(req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.client.SendOTP(r.Context(), email); err != nil {
		slog.Error("failed to send otp", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway,
			model.NewOTPFailedError("Could not send code. Please try again."))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// VerifyOTP はワンタイムコードを検証し、セッションCookieを設定する。
// オンボーディング済みの場合はオンボーディング完了Cookieも設定する。
// POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	email, err := model.ParseEmail(req.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Code is required."))
		return
	}

	session, err := h.client.VerifyOTP(r.Context(), email, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidOTP) {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewOTPFailedError("Invalid or expired code."))
			return
		}
		slog.Error("failed to verify otp", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway,
			model.NewOTPFailedError("Could not verify code. Please try again."))
		return
	}

	cookies, err := h.client.SessionCookies(r, session)
	if err != nil {
		slog.Error("failed to encode session cookies", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	for _, c := range cookies {
		http.SetCookie(w, c)
	}

	onboarded := h.isOnboarded(r.Context(), session.UserID)
	next := onboardingEntryPath
	if onboarded {
		http.SetCookie(w, onboardedCookie(h.config.CookieSecure))
		next = mainAppPath
	}

	writeJSON(w, http.StatusOK, verifyOTPResponse{OK: true, Onboarded: onboarded, Next: next})
}

// SignOut はセッションを失効させ、セッションCookieとオンボーディング完了Cookieを削除する。
// プロバイダー側の失効に失敗してもCookieは削除する。
// POST /api/auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if s := middleware.SessionFromContext(r.Context()); s != nil && s.AccessToken != "" {
		if err := h.client.SignOut(r.Context(), s.AccessToken); err != nil {
			slog.Warn("failed to revoke session", slog.String("error", err.Error()))
		}
	}

	for _, c := range h.client.ClearCookies(r) {
		http.SetCookie(w, c)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.OnboardedCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	if s == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        s.UserID,
		Email:     s.Email,
		Onboarded: middleware.OnboardedFromContext(r.Context()),
	})
}

// isOnboarded はプロフィールのオンボーディング状態を返す。取得に失敗した場合はfalse。
func (h *AuthHandler) isOnboarded(ctx context.Context, userID string) bool {
	if h.profiles == nil {
		return false
	}
	ok, err := h.profiles.IsOnboarded(ctx, userID)
	if err != nil {
		slog.Warn("profile lookup failed after sign-in",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

// onboardedCookie はゲートがDBの反映を待たずにオンボーディング済みと扱うためのCookie。
// クライアントから読めるようHttpOnlyにはしない。
func onboardedCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.OnboardedCookieName,
		Value:    "1",
		Path:     "/",
		MaxAge:   onboardedCookieMaxAge,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
