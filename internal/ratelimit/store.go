// Package ratelimit はキー単位の固定ウィンドウ型カウンターを提供する。
// OTPエンドポイントのレート制限で使用する。
package ratelimit

import (
	"context"
	"time"
)

// Store はキーごとのリクエスト数を数え、許可するかどうかを判定する。
// 外部ストアに到達できない場合はエラーを返し、判定は呼び出し側に委ねる。
type Store interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config はウィンドウあたりの上限回数とウィンドウ長を保持する。
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig は60秒あたり5回の設定を返す。
func DefaultConfig() Config {
	return Config{
		Limit:  5,
		Window: 60 * time.Second,
	}
}
