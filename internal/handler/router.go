package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/6ixhq/creator/internal/database"
	"github.com/6ixhq/creator/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger  *slog.Logger
	Origins *middleware.OriginPolicy
	Gate    *middleware.Gate

	// ゲート外のルート
	DB      database.Pinger
	Metrics http.Handler // nilの場合 /metrics は公開しない

	// 認証
	AuthClient AuthClient
	Profiles   middleware.OnboardingChecker
	AuthConfig AuthHandlerConfig

	// オンボーディング・プロフィール
	ProfileService ProfileServiceInterface

	// 投稿フォーム
	SubmissionService SubmissionServiceInterface

	// AIチャット
	Chat http.Handler

	// フロントエンド
	StaticDir string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → Gate
//
// /health と /metrics はゲートの外に配置し、セキュリティヘッダーのみ付与する。
// ルートに一致しないリクエストはゲートを通した上でフロントエンドを配信する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.Origins))

	// --- ゲート外のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Get("/health", HealthHandler(deps.DB))
		if deps.Metrics != nil {
			r.Handle("/metrics", deps.Metrics)
		}
	})

	// --- ゲート配下のルート ---
	authHandler := NewAuthHandler(deps.AuthClient, deps.Profiles, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.AuthConfig.CookieSecure)
	submissionHandler := NewSubmissionHandler(deps.SubmissionService)

	gated := chi.NewRouter()
	gated.Use(deps.Gate.Middleware)

	gated.Route("/api/auth", func(r chi.Router) {
		r.Post("/send-otp", authHandler.SendOTP)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/sign-out", authHandler.SignOut)
		r.Get("/me", authHandler.Me)
	})

	gated.Route("/api/profile", func(r chi.Router) {
		r.Post("/onboard", profileHandler.Onboard)
		r.Get("/me", profileHandler.Me)
	})

	gated.Post("/api/ads", submissionHandler.SubmitAd)
	gated.Post("/api/songs", submissionHandler.SubmitSong)

	if deps.Chat != nil {
		gated.Method(http.MethodPost, "/api/chat", deps.Chat)
	}

	static := NewStaticHandler(deps.StaticDir)
	gated.NotFound(static.ServeHTTP)

	r.Mount("/", gated)

	return r
}
