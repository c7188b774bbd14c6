package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/6ixhq/creator/internal/model"
	"github.com/6ixhq/creator/internal/ratelimit"
)

// otpStoreTimeout は外部カウンターストアへの1回の問い合わせ上限。
const otpStoreTimeout = 2 * time.Second

// OTPLimiter はOTPエンドポイントへのリクエストを(エンドポイント, クライアントIP)単位で制限する。
// ストアに到達できない場合は許可する（fail open）。
type OTPLimiter struct {
	store  ratelimit.Store
	window time.Duration
}

// NewOTPLimiter は新しいOTPLimiterを生成する。
func NewOTPLimiter(store ratelimit.Store, window time.Duration) *OTPLimiter {
	return &OTPLimiter{store: store, window: window}
}

// Allow はリクエストを許可するかどうかを返す。
func (l *OTPLimiter) Allow(ctx context.Context, r *http.Request) bool {
	key := normalizePath(r.URL.Path) + ":" + ClientIP(r)

	ctx, cancel := context.WithTimeout(ctx, otpStoreTimeout)
	defer cancel()

	allowed, err := l.store.Allow(ctx, key)
	if err != nil {
		slog.Warn("rate limit store unavailable, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return allowed
}

// ClientIP はX-Forwarded-Forの先頭、X-Real-IP、RemoteAddrの順でクライアントIPを求める。
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterにはウィンドウ長（秒）を設定する。
func writeRateLimitResponse(w http.ResponseWriter, window time.Duration) {
	retryAfterSec := int(math.Ceil(window.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
