// Package middleware はHTTPミドルウェアとアクセスゲートを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/6ixhq/creator/internal/auth"
	"github.com/6ixhq/creator/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey    = contextKey("session")
	onboardedContextKey  = contextKey("onboarded")
	requestLogContextKey = contextKey("request_log")
)

// SessionProvider はリクエストのCookieからセッションを復元する。
// auth.SupabaseClientが実装する。
type SessionProvider interface {
	GetSession(ctx context.Context, r *http.Request) (*auth.SessionResult, error)
}

// OnboardingChecker はユーザーのオンボーディング完了状態を返す。
// repository.ProfileRepoが実装する。
type OnboardingChecker interface {
	IsOnboarded(ctx context.Context, userID string) (bool, error)
}

// SessionFromContext はゲートが解決したセッションを返す。未認証の場合はnil。
func SessionFromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionContextKey).(*model.Session)
	return s
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// ゲートで認証済みと判定されたリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	s := SessionFromContext(ctx)
	if s == nil || s.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return s.UserID, nil
}

// OnboardedFromContext はゲートが判定したオンボーディング状態を返す。
func OnboardedFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(onboardedContextKey).(bool)
	return v
}

// ContextWithSession はコンテキストにセッションとオンボーディング状態を注入する。
// テストやゲート以外のコンテキスト生成でも使用する。
func ContextWithSession(ctx context.Context, s *model.Session, onboarded bool) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, s)
	ctx = context.WithValue(ctx, onboardedContextKey, onboarded)
	if info, ok := ctx.Value(requestLogContextKey).(*requestLogInfo); ok && s != nil {
		info.userID = s.UserID
	}
	return ctx
}
