// Package auth はSupabase AuthによるOTPログインとセッション復元を提供する。
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/6ixhq/creator/internal/model"
)

// ErrInvalidOTP はOTPコードが誤っているか期限切れの場合に返される。
var ErrInvalidOTP = errors.New("invalid or expired code")

// SupabaseConfig はSupabase Authクライアントの設定。
type SupabaseConfig struct {
	URL          string // https://<ref>.supabase.co
	AnonKey      string
	JWTSecret    string // 空の場合は /auth/v1/user でトークンを検証する
	CookieSecure bool
}

// SessionResult はリクエストから復元したセッションと、レスポンスに設定すべきCookieを保持する。
// トークンを更新した場合はCookiesに新しいセッションCookieが入る。
type SessionResult struct {
	Session *model.Session // 未認証の場合はnil
	Cookies []*http.Cookie
}

// SupabaseClient はSupabase Auth(GoTrue) REST APIのクライアント。
type SupabaseClient struct {
	config     SupabaseConfig
	cookieName string
	httpClient *http.Client
	now        func() time.Time
}

// NewSupabaseClient はSupabaseClientを生成する。
func NewSupabaseClient(config SupabaseConfig, httpClient *http.Client) *SupabaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	config.URL = strings.TrimRight(config.URL, "/")
	return &SupabaseClient{
		config:     config,
		cookieName: CookieName(config.URL),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// CookieName はこのプロジェクトのセッションCookie名を返す。
func (c *SupabaseClient) CookieName() string {
	return c.cookieName
}

// tokenResponse はGoTrueの /verify と /token が返すセッション。
type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	RefreshToken string     `json:"refresh_token"`
	User         storedUser `json:"user"`
}

// gotrueError はGoTrueのエラーレスポンス。バージョンによってフィールド名が異なる。
type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

// SendOTP はメールアドレスにワンタイムコードを送信する。未登録の場合はユーザーを作成する。
func (c *SupabaseClient) SendOTP(ctx context.Context, email string) error {
	body := map[string]any{
		"email":       email,
		"create_user": true,
	}
	if _, err := c.post(ctx, "/auth/v1/otp", "", body); err != nil {
		return fmt.Errorf("failed to send otp: %w", err)
	}
	return nil
}

// VerifyOTP はワンタイムコードを検証してセッションを発行する。
func (c *SupabaseClient) VerifyOTP(ctx context.Context, email, token string) (*model.Session, error) {
	body := map[string]any{
		"type":  "email",
		"email": email,
		"token": token,
	}
	raw, err := c.post(ctx, "/auth/v1/verify", "", body)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden || se.status == http.StatusBadRequest) {
			return nil, ErrInvalidOTP
		}
		return nil, fmt.Errorf("failed to verify otp: %w", err)
	}
	return c.decodeTokenResponse(raw)
}

// Refresh はリフレッシュトークンで新しいセッションを取得する。
func (c *SupabaseClient) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	raw, err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", map[string]any{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return c.decodeTokenResponse(raw)
}

// SignOut はアクセストークンに紐づくセッションをサーバー側で失効させる。
func (c *SupabaseClient) SignOut(ctx context.Context, accessToken string) error {
	if _, err := c.post(ctx, "/auth/v1/logout", accessToken, nil); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// GetSession はリクエストのCookieからセッションを復元する。
// Cookieがない場合はエラーなしでSession=nilを返す。
// アクセストークンが期限切れでリフレッシュトークンがあれば更新し、新しいCookieをCookiesに入れる。
func (c *SupabaseClient) GetSession(ctx context.Context, r *http.Request) (*SessionResult, error) {
	value, ok := readCookieValue(r, c.cookieName)
	if !ok {
		return &SessionResult{}, nil
	}

	stored, err := decodeSession(value)
	if err != nil {
		return &SessionResult{}, err
	}

	session, err := c.verifyAccessToken(ctx, stored)
	if err == nil {
		return &SessionResult{Session: session}, nil
	}
	if !errors.Is(err, jwt.ErrTokenExpired) || stored.RefreshToken == "" {
		return &SessionResult{}, err
	}

	refreshed, err := c.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return &SessionResult{}, err
	}
	cookies, err := c.SessionCookies(r, refreshed)
	if err != nil {
		return &SessionResult{}, err
	}

	slog.Debug("supabase session refreshed", slog.String("user_id", refreshed.UserID))
	return &SessionResult{Session: refreshed, Cookies: cookies}, nil
}

// SessionCookies はセッションを保存するCookieを生成する。
func (c *SupabaseClient) SessionCookies(r *http.Request, s *model.Session) ([]*http.Cookie, error) {
	stored := &storedSession{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		User:         storedUser{ID: s.UserID, Email: s.Email},
	}
	if !s.ExpiresAt.IsZero() {
		stored.ExpiresAt = s.ExpiresAt.Unix()
		stored.ExpiresIn = int64(s.ExpiresAt.Sub(c.now()).Seconds())
	}
	return encodeSessionCookies(r, c.cookieName, stored, c.config.CookieSecure)
}

// ClearCookies はリクエストにあるセッションCookieをすべて削除するCookieを返す。
func (c *SupabaseClient) ClearCookies(r *http.Request) []*http.Cookie {
	return clearSessionCookies(r, c.cookieName, c.config.CookieSecure)
}

// verifyAccessToken はアクセストークンを検証する。
// JWTシークレットがあればローカルでHS256署名と期限を検証し、なければGoTrueに問い合わせる。
// 期限切れの場合はjwt.ErrTokenExpiredをラップしたエラーを返す。
func (c *SupabaseClient) verifyAccessToken(ctx context.Context, stored *storedSession) (*model.Session, error) {
	if c.config.JWTSecret != "" {
		return c.verifyLocal(stored)
	}

	if stored.ExpiresAt > 0 && !c.now().Before(time.Unix(stored.ExpiresAt, 0)) {
		return nil, fmt.Errorf("access token: %w", jwt.ErrTokenExpired)
	}

	user, err := c.fetchUser(ctx, stored.AccessToken)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		ExpiresAt:    unixOrZero(stored.ExpiresAt),
	}, nil
}

func (c *SupabaseClient) verifyLocal(stored *storedSession) (*model.Session, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(stored.AccessToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(c.config.JWTSecret), nil
	}, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("jwt has no subject")
	}
	email, _ := claims["email"].(string)

	s := &model.Session{
		UserID:       sub,
		Email:        email,
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

// fetchUser は GET /auth/v1/user でアクセストークンの持ち主を取得する。
func (c *SupabaseClient) fetchUser(ctx context.Context, accessToken string) (*storedUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("apikey", c.config.AnonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &statusError{status: resp.StatusCode, message: parseGotrueError(body)}
	}

	var user storedUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user response has no id")
	}
	return &user, nil
}

// statusError はGoTrueが2xx以外を返したことを表す。
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase auth returned status %d: %s", e.status, e.message)
}

// post はGoTrueへJSONをPOSTし、2xxのレスポンスボディを返す。
func (c *SupabaseClient) post(ctx context.Context, path, bearer string, body any) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.config.AnonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{status: resp.StatusCode, message: parseGotrueError(raw)}
	}
	return raw, nil
}

func (c *SupabaseClient) decodeTokenResponse(raw []byte) (*model.Session, error) {
	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, fmt.Errorf("token response is missing access token or user")
	}

	expiresAt := unixOrZero(tr.ExpiresAt)
	if expiresAt.IsZero() && tr.ExpiresIn > 0 {
		expiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return &model.Session{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    expiresAt,
	}, nil
}

func parseGotrueError(body []byte) string {
	var ge gotrueError
	if err := json.Unmarshal(body, &ge); err != nil {
		return strings.TrimSpace(string(body))
	}
	return ge.text()
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
