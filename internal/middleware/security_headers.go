package middleware

import "net/http"

// contentSecurityPolicy はすべてのページとAPIレスポンスに付与するCSP。
// Supabaseへの接続（REST/Realtime）のみ外部オリジンを許可する。
const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: blob: https:; " +
	"font-src 'self' data:; " +
	"media-src 'self' blob: https:; " +
	"connect-src 'self' https://*.supabase.co wss://*.supabase.co; " +
	"frame-ancestors 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self'"

// setSecurityHeaders はセキュリティ関連のレスポンスヘッダーを設定する。
// noStoreがfalseの場合（静的アセット）はCache-Controlを設定しない。
func setSecurityHeaders(h http.Header, noStore bool) {
	h.Set("Content-Security-Policy", contentSecurityPolicy)
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()")
	h.Set("Cross-Origin-Opener-Policy", "same-origin")
	h.Set("Cross-Origin-Resource-Policy", "same-origin")
	h.Set("X-XSS-Protection", "0")
	if noStore {
		h.Set("Cache-Control", "no-store")
	}
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// ゲートの外に置くルート（/health, /metrics）で使う。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			setSecurityHeaders(w.Header(), true)
			next.ServeHTTP(w, r)
		})
	}
}
