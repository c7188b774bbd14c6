package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/6ixhq/creator/internal/auth"
	"github.com/6ixhq/creator/internal/chat"
	"github.com/6ixhq/creator/internal/config"
	"github.com/6ixhq/creator/internal/database"
	"github.com/6ixhq/creator/internal/handler"
	"github.com/6ixhq/creator/internal/logger"
	"github.com/6ixhq/creator/internal/mail"
	"github.com/6ixhq/creator/internal/metrics"
	"github.com/6ixhq/creator/internal/middleware"
	"github.com/6ixhq/creator/internal/profile"
	"github.com/6ixhq/creator/internal/ratelimit"
	"github.com/6ixhq/creator/internal/repository"
	"github.com/6ixhq/creator/internal/security"
	"github.com/6ixhq/creator/internal/submission"
	"github.com/6ixhq/creator/internal/worker/notify"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば環境変数に読み込み、JSON構造化ログをセットアップしてConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	envErr := godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		slog.Warn("failed to load .env", slog.String("error", envErr.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("site_url", cfg.SiteURL),
		slog.String("env", cfg.AppEnv),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRateLimitStore はOTPレート制限用のストアを生成する。
// REDIS_URLが未設定の場合はプロセス内のストアを使う（複数インスタンス間では共有されない）。
func newRateLimitStore(cfg *config.Config) (ratelimit.Store, func(), error) {
	rlCfg := ratelimit.Config{Limit: cfg.OTPRateLimit, Window: cfg.OTPRateWindow}

	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL is not set, using in-memory otp rate limiter")
		store := ratelimit.NewMemoryStore(rlCfg)
		return store, store.Stop, nil
	}

	store, err := ratelimit.NewRedisStoreFromURL(cfg.RedisURL, rlCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}, nil
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを生成する。
func newRegistry() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// newSubmissionNotifier は投稿通知用のメールクライアントとNotifierを生成する。
func newSubmissionNotifier(cfg *config.Config) *submission.Notifier {
	if cfg.ResendAPIKey == "" {
		slog.Warn("RESEND_API_KEY is not set, submission notifications will stay pending")
	}
	client := mail.NewClient(cfg.ResendAPIKey, cfg.MailFrom, nil, slog.Default())
	return submission.NewNotifier(client, cfg.SubmissionsInbox)
}

// buildRouter は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func buildRouter(cfg *config.Config, db *sql.DB, store ratelimit.Store, reg *prometheus.Registry, m metrics.MetricsCollector) http.Handler {
	// 1. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	adRepo := repository.NewPostgresAdSubmissionRepo(db)
	songRepo := repository.NewPostgresSongSubmissionRepo(db)

	// 2. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()
	urlGuard := security.NewURLGuard(security.DefaultProbeTimeout)

	// 3. 認証クライアント
	authClient := auth.NewSupabaseClient(auth.SupabaseConfig{
		URL:          cfg.SupabaseURL,
		AnonKey:      cfg.SupabaseAnonKey,
		JWTSecret:    cfg.SupabaseJWTSecret,
		CookieSecure: cfg.CookieSecure,
	}, nil)

	// 4. ドメインサービスの初期化
	profileService := profile.NewService(profileRepo, sanitizer)
	submissionService := submission.NewService(
		adRepo, songRepo, sanitizer, urlGuard,
		newSubmissionNotifier(cfg), m, slog.Default(),
	)

	// 5. AIルーター
	if cfg.OpenRouterAPIKey == "" {
		slog.Warn("OPENROUTER_API_KEY is not set, /api/chat will answer 500")
	}
	chatHandler := chat.NewHandler(chat.Config{
		Upstream: chat.UpstreamConfig{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.OpenRouterAPIKey,
			SiteURL: cfg.SiteURL,
			Timeout: cfg.AIUpstreamTimeout,
		},
		Models: chat.UpstreamModels{
			Core:     cfg.AIModelCore,
			Thinking: cfg.AIModelThinking,
		},
		KeepAlive: cfg.AIKeepAliveInterval,
	}, chat.NoPlanVerifier{}, m, slog.Default())

	// 6. アクセスゲート
	origins := middleware.NewOriginPolicy(cfg.SiteURL, cfg.AllowedOrigins)
	gate := middleware.NewGate(middleware.GateConfig{
		Production:    cfg.IsProduction(),
		CanonicalHost: cfg.CanonicalHost,
		CookieSecure:  cfg.CookieSecure,
	}, origins, authClient, profileRepo, middleware.NewOTPLimiter(store, cfg.OTPRateWindow), m)

	// 7. ルーターの構築
	return handler.NewRouter(&handler.RouterDeps{
		Logger:  slog.Default(),
		Origins: origins,
		Gate:    gate,

		DB:      db,
		Metrics: metrics.Handler(reg),

		AuthClient: authClient,
		Profiles:   profileRepo,
		AuthConfig: handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},

		ProfileService:    profileService,
		SubmissionService: submissionService,

		Chat:      chatHandler,
		StaticDir: cfg.StaticDir,
	})
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. レート制限ストアとメトリクス
	store, closeStore, err := newRateLimitStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	reg, collector := newRegistry()

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           buildRouter(cfg, db, store, reg, collector),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// チャットのSSEストリームは長時間続くため書き込みタイムアウトは設けない
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、通知再送ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. ジョブの初期化
	job := notify.NewJob(
		repository.NewPostgresAdSubmissionRepo(db),
		repository.NewPostgresSongSubmissionRepo(db),
		newSubmissionNotifier(cfg),
		nil,
		slog.Default(),
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 通知再送ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.NotifyInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
