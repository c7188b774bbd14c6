// Package model はドメインモデルを定義する。
package model

import "time"

// Session はSupabaseが発行したログインセッションを表す。
// 永続化はせず、リクエストごとにCookieから復元する。
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// Expired は指定時刻の時点でアクセストークンが期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Profile はオンボーディングで登録されるクリエイタープロフィールを表す。
type Profile struct {
	UserID      string
	Username    string
	DisplayName string
	Bio         string
	Onboarded   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
