package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// OriginPolicy は状態変更APIリクエストのOriginを検証する。
// 許可されるのは、リクエスト自身のホスト、正規サイトURL、許可リストのいずれかに一致するOrigin。
type OriginPolicy struct {
	siteOrigin string
	allowed    map[string]bool
}

// NewOriginPolicy は新しいOriginPolicyを生成する。
func NewOriginPolicy(siteURL string, allowedOrigins []string) *OriginPolicy {
	p := &OriginPolicy{
		siteOrigin: normalizeOrigin(siteURL),
		allowed:    make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		if n := normalizeOrigin(o); n != "" {
			p.allowed[n] = true
		}
	}
	return p
}

// Allowed はOriginヘッダーの値がリクエストに対して許可されるかを返す。空のOriginは許可しない。
func (p *OriginPolicy) Allowed(r *http.Request, origin string) bool {
	if origin == "" || origin == "null" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}

	// リクエスト自身のホストはスキームを問わない（TLS終端がプロキシにあるため）
	if normalizeHost(u.Host) == normalizeHost(r.Host) {
		return true
	}

	n := normalizeOrigin(origin)
	return n != "" && (n == p.siteOrigin || p.allowed[n])
}

// AllowedForCORS はCORSレスポンスヘッダーを返してよいOriginかを返す。
func (p *OriginPolicy) AllowedForCORS(origin string) bool {
	n := normalizeOrigin(origin)
	return n != "" && (n == p.siteOrigin || p.allowed[n])
}

// normalizeOrigin は scheme://host[:port] の形に正規化する。解析できない場合は空文字を返す。
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	host := normalizeHost(u.Host)
	if (scheme == "https" && strings.HasSuffix(host, ":443")) || (scheme == "http" && strings.HasSuffix(host, ":80")) {
		host = host[:strings.LastIndex(host, ":")]
	}
	return scheme + "://" + host
}

// normalizeHost はホスト名を小文字のASCII（punycode）に変換する。ポートは保持する。
func normalizeHost(hostport string) string {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, ""
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port != "" {
		return net.JoinHostPort(host, port)
	}
	return host
}

// NewCORSMiddleware は許可されたOriginに対してCORSヘッダーを付与するミドルウェアを返す。
// credentials送信と共存するため、ワイルドカード(*)は使用せずOriginをそのまま返す。
// プリフライトへの204応答はゲートが行う。
func NewCORSMiddleware(policy *OriginPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && policy.AllowedForCORS(origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-6ix-Plan")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", "86400")
			}
			w.Header().Add("Vary", "Origin")
			next.ServeHTTP(w, r)
		})
	}
}
