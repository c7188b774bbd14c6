package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// base64Prefix は@supabase/ssrがCookie値に付与する接頭辞。
	base64Prefix = "base64-"

	// maxChunkSize はCookie1つあたりの最大バイト数。超える場合は .0, .1, ... に分割する。
	maxChunkSize = 3180

	// sessionCookieMaxAge はセッションCookieの有効期間（400日）。
	sessionCookieMaxAge = 400 * 24 * 60 * 60
)

// storedSession はCookieに保存するセッションのJSON表現。GoTrueのトークンレスポンスと同じ形。
type storedSession struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         storedUser `json:"user"`
}

type storedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CookieName はSupabaseプロジェクトURLからセッションCookie名を導出する。
// 例: https://abcd.supabase.co -> sb-abcd-auth-token
func CookieName(supabaseURL string) string {
	ref := "local"
	if u, err := url.Parse(supabaseURL); err == nil && u.Hostname() != "" {
		ref = strings.SplitN(u.Hostname(), ".", 2)[0]
	}
	return "sb-" + ref + "-auth-token"
}

// HasSessionCookies はリクエストにSupabaseのセッションCookie（分割分を含む）が存在するかを返す。
// セッションとして解決できるかどうかは問わない。
func HasSessionCookies(r *http.Request) bool {
	for _, c := range r.Cookies() {
		if strings.HasPrefix(c.Name, "sb-") && strings.Contains(c.Name, "-auth-token") && c.Value != "" {
			return true
		}
	}
	return false
}

// readCookieValue は単一または分割されたCookieを結合した値を返す。
func readCookieValue(r *http.Request, name string) (string, bool) {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value, true
	}

	var b strings.Builder
	for i := 0; ; i++ {
		c, err := r.Cookie(name + "." + strconv.Itoa(i))
		if err != nil {
			break
		}
		b.WriteString(c.Value)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// decodeSession はCookie値をstoredSessionへ復元する。
// base64-接頭辞付き（base64url）と生JSONの両方を受け付ける。
func decodeSession(value string) (*storedSession, error) {
	raw := []byte(value)
	if strings.HasPrefix(value, base64Prefix) {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimPrefix(value, base64Prefix), "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode session cookie: %w", err)
		}
		raw = decoded
	} else if unescaped, err := url.QueryUnescape(value); err == nil {
		raw = []byte(unescaped)
	}

	var s storedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session cookie: %w", err)
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("session cookie has no access token")
	}
	return &s, nil
}

// encodeSessionCookies はセッションをCookieに符号化し、必要に応じて分割する。
// rに残っている別の形のCookie（単一⇔分割、余った分割番号）は削除Cookieとして併せて返す。
// 古い単一Cookieが残ると分割Cookieより先に読まれてしまうため。rはnilでもよい。
func encodeSessionCookies(r *http.Request, name string, s *storedSession, secure bool) ([]*http.Cookie, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	value := base64Prefix + base64.RawURLEncoding.EncodeToString(raw)

	var cookies []*http.Cookie
	if len(value) <= maxChunkSize {
		cookies = append(cookies, newSessionCookie(name, value, sessionCookieMaxAge, secure))
	} else {
		for i := 0; len(value) > 0; i++ {
			n := min(maxChunkSize, len(value))
			cookies = append(cookies, newSessionCookie(name+"."+strconv.Itoa(i), value[:n], sessionCookieMaxAge, secure))
			value = value[n:]
		}
	}

	if r == nil {
		return cookies, nil
	}
	written := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		written[c.Name] = true
	}
	for _, stale := range sessionCookieNames(r, name) {
		if !written[stale] {
			cookies = append(cookies, newSessionCookie(stale, "", -1, secure))
		}
	}
	return cookies, nil
}

// sessionCookieNames はリクエストにあるセッションCookie（分割分を含む）の名前を昇順で返す。
func sessionCookieNames(r *http.Request, name string) []string {
	var names []string
	for _, c := range r.Cookies() {
		if c.Name == name || strings.HasPrefix(c.Name, name+".") {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// clearSessionCookies はリクエストに存在するセッションCookie（分割分を含む）をすべて削除するCookieを返す。
func clearSessionCookies(r *http.Request, name string, secure bool) []*http.Cookie {
	names := sessionCookieNames(r, name)
	if len(names) == 0 {
		names = []string{name}
	}

	cookies := make([]*http.Cookie, 0, len(names))
	for _, n := range names {
		cookies = append(cookies, newSessionCookie(n, "", -1, secure))
	}
	return cookies
}

func newSessionCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: false, // ブラウザ側のSupabaseクライアントが読み取る
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
