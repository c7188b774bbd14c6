// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回だけ読み込み、以降はイミュータブルとしてゲートやAIルーターへ参照渡しする。
type Config struct {
	// Server
	ServerPort string
	AppEnv     string
	StaticDir  string

	// Site
	SiteURL        string
	CanonicalHost  string
	AllowedOrigins []string
	CookieSecure   bool

	// Database
	DatabaseURL string

	// Supabase
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	// Rate Limit (OTP)
	RedisURL      string
	OTPRateLimit  int
	OTPRateWindow time.Duration

	// AI
	OpenRouterAPIKey    string
	AIBaseURL           string
	AIModelCore         string
	AIModelThinking     string
	AIUpstreamTimeout   time.Duration
	AIKeepAliveInterval time.Duration

	// Mail
	ResendAPIKey     string
	MailFrom         string
	SubmissionsInbox string

	// Worker
	NotifyInterval time.Duration
}

// IsProduction は正規ホストへのリダイレクトを行う本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は不足分をまとめてエラーとして返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SupabaseURL = strings.TrimRight(os.Getenv("SUPABASE_URL"), "/")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	cfg.SiteURL = strings.TrimRight(os.Getenv("SITE_URL"), "/")
	if cfg.SiteURL == "" {
		missing = append(missing, "SITE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Host == "" {
		return nil, fmt.Errorf("SITE_URL is not an absolute URL: %q", cfg.SiteURL)
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.StaticDir = getEnvString("STATIC_DIR", "./web/dist")
	cfg.CanonicalHost = getEnvString("CANONICAL_HOST", site.Host)
	cfg.AllowedOrigins = getEnvList("ALLOWED_ORIGINS")
	cfg.CookieSecure = getEnvBool("SESSION_COOKIE_SECURE", site.Scheme == "https")

	cfg.SupabaseJWTSecret = os.Getenv("SUPABASE_JWT_SECRET")

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.OTPRateLimit = getEnvInt("OTP_RATE_LIMIT", 5)
	cfg.OTPRateWindow = getEnvDuration("OTP_RATE_WINDOW", 60*time.Second)

	cfg.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.AIBaseURL = strings.TrimRight(getEnvString("AI_BASE_URL", "https://openrouter.ai/api/v1"), "/")
	cfg.AIModelCore = getEnvString("AI_MODEL_CORE", "openai/gpt-4o-mini")
	cfg.AIModelThinking = getEnvString("AI_MODEL_THINKING", "openai/o4-mini")
	cfg.AIUpstreamTimeout = getEnvDuration("AI_UPSTREAM_TIMEOUT", 45*time.Second)
	cfg.AIKeepAliveInterval = getEnvDuration("AI_KEEPALIVE_INTERVAL", 12*time.Second)

	cfg.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.MailFrom = getEnvString("MAIL_FROM", "6IX <no-reply@6ix.app>")
	cfg.SubmissionsInbox = getEnvString("SUBMISSIONS_INBOX", "submissions@6ix.app")

	cfg.NotifyInterval = getEnvDuration("NOTIFY_INTERVAL", 5*time.Minute)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimRight(strings.TrimSpace(part), "/"); s != "" {
			out = append(out, s)
		}
	}
	return out
}
