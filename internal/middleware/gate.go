package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/6ixhq/creator/internal/auth"
	"github.com/6ixhq/creator/internal/metrics"
	"github.com/6ixhq/creator/internal/model"
)

const (
	// OnboardedCookieName はオンボーディング完了直後にクライアントへ設定するCookie。
	// DBの反映遅延の間もオンボーディング済みとして扱うため、値"1"はDBのフラグと同等に信頼する。
	OnboardedCookieName = "6ix_onboarded"

	// hydrateCookieName はセッションCookieがあるのに復元できなかった初回リクエストの目印。
	hydrateCookieName   = "6ix_hydrate"
	hydrateCookieMaxAge = 30
)

// GateConfig はアクセスゲートの設定。
type GateConfig struct {
	Production    bool   // trueの場合のみ正規ホストへリダイレクトする
	CanonicalHost string // 例: 6ix.app
	CookieSecure  bool
}

// Gate はすべてのページ・APIリクエストの前段で、通過・リダイレクト・拒否を判定する。
type Gate struct {
	config   GateConfig
	origins  *OriginPolicy
	sessions SessionProvider
	profiles OnboardingChecker
	limiter  *OTPLimiter
	metrics  metrics.MetricsCollector
}

// NewGate は新しいGateを生成する。limiterがnilの場合、OTPのレート制限は行わない。
func NewGate(config GateConfig, origins *OriginPolicy, sessions SessionProvider, profiles OnboardingChecker, limiter *OTPLimiter, m metrics.MetricsCollector) *Gate {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Gate{
		config:   config,
		origins:  origins,
		sessions: sessions,
		profiles: profiles,
		limiter:  limiter,
		metrics:  m,
	}
}

// Middleware はゲートをchi互換のミドルウェアとして返す。
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path

		// 1. 静的アセットはヘッダーのみ付与して素通し
		if IsStaticAsset(p) {
			setSecurityHeaders(w.Header(), false)
			g.metrics.RecordGateDecision(metrics.DecisionAsset)
			next.ServeHTTP(w, r)
			return
		}
		setSecurityHeaders(w.Header(), true)

		api := IsAPI(p)
		otp := IsOTPEndpoint(p)

		// 2. OTPエンドポイントのレート制限
		if otp && g.limiter != nil && !g.limiter.Allow(r.Context(), r) {
			slog.Warn("otp rate limit exceeded",
				slog.String("path", p),
				slog.String("ip", ClientIP(r)),
			)
			g.metrics.RecordOTPRateLimited()
			g.metrics.RecordGateDecision(metrics.DecisionRateLimited)
			writeRateLimitResponse(w, g.limiter.window)
			return
		}

		// 3. CORSプリフライト
		if r.Method == http.MethodOptions && api {
			g.metrics.RecordGateDecision(metrics.DecisionPreflight)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// 4. 状態変更APIのOrigin検証
		if r.Method != http.MethodGet && api && !otp {
			if !g.origins.Allowed(r, r.Header.Get("Origin")) {
				slog.Warn("origin check failed",
					slog.String("path", p),
					slog.String("origin", r.Header.Get("Origin")),
				)
				g.deny(w, http.StatusForbidden, model.NewForbiddenOriginError(), metrics.DecisionForbidden)
				return
			}
		}

		// 5. 本番環境では正規ホスト・HTTPSへ恒久リダイレクト
		if target, ok := g.canonicalRedirect(r); ok {
			g.metrics.RecordGateDecision(metrics.DecisionCanonical)
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		// 6. セッションの復元。更新されたCookieはどの分岐でもレスポンスに載せる
		session := g.resolveSession(w, r)

		// 7. 認証状態による分岐
		if session == nil {
			g.handleAnonymous(w, r, next, api, otp)
			return
		}

		if c, err := r.Cookie(hydrateCookieName); err == nil && c.Value != "" {
			http.SetCookie(w, g.cookie(hydrateCookieName, "", -1))
		}

		onboarded := g.isOnboarded(r, session.UserID)
		r = r.WithContext(ContextWithSession(r.Context(), session, onboarded))

		if !onboarded {
			g.handleNotOnboarded(w, r, next, api)
			return
		}

		if !api && (isOnboardingPage(p) || (isEntryPage(p) && normalizePath(p) != verifyPath)) {
			g.redirect(w, r, mainAppPath)
			return
		}

		g.metrics.RecordGateDecision(metrics.DecisionPass)
		next.ServeHTTP(w, r)
	})
}

// handleAnonymous は未認証リクエストを判定する。
func (g *Gate) handleAnonymous(w http.ResponseWriter, r *http.Request, next http.Handler, api, otp bool) {
	p := r.URL.Path

	if api {
		if isPublicAPI(p) || otp {
			g.metrics.RecordGateDecision(metrics.DecisionPass)
			next.ServeHTTP(w, r)
			return
		}
		g.deny(w, http.StatusUnauthorized, model.NewUnauthorizedError(), metrics.DecisionUnauthorized)
		return
	}

	if isPublicPage(p) {
		g.metrics.RecordGateDecision(metrics.DecisionPass)
		next.ServeHTTP(w, r)
		return
	}

	// セッションCookieはあるがまだ復元できない場合、クライアント側の復元のため1回だけ通す
	if auth.HasSessionCookies(r) {
		if c, err := r.Cookie(hydrateCookieName); err != nil || c.Value == "" {
			slog.Warn("session cookies present but unresolved, passing through once",
				slog.String("path", p),
				slog.String("client_ip", ClientIP(r)),
			)
			http.SetCookie(w, g.cookie(hydrateCookieName, "1", hydrateCookieMaxAge))
			g.metrics.RecordGateDecision(metrics.DecisionHydrate)
			next.ServeHTTP(w, r)
			return
		}
	}

	g.redirect(w, r, signInPath+"?"+url.Values{"next": {p}}.Encode())
}

// handleNotOnboarded は認証済みだがオンボーディング未完了のリクエストを判定する。
func (g *Gate) handleNotOnboarded(w http.ResponseWriter, r *http.Request, next http.Handler, api bool) {
	p := r.URL.Path

	if api {
		if isOnboardingAPI(p) {
			g.metrics.RecordGateDecision(metrics.DecisionPass)
			next.ServeHTTP(w, r)
			return
		}
		g.deny(w, http.StatusPreconditionRequired, model.NewOnboardingRequiredError(), metrics.DecisionOnboarding)
		return
	}

	if isOnboardingPage(p) || normalizePath(p) == verifyPath {
		g.metrics.RecordGateDecision(metrics.DecisionPass)
		next.ServeHTTP(w, r)
		return
	}

	g.redirect(w, r, onboardingEntryPath)
}

// resolveSession はセッションプロバイダーからセッションを取得する。
// プロバイダーのエラーは未認証として扱う。
func (g *Gate) resolveSession(w http.ResponseWriter, r *http.Request) *model.Session {
	if g.sessions == nil {
		return nil
	}
	res, err := g.sessions.GetSession(r.Context(), r)
	if res != nil {
		for _, c := range res.Cookies {
			http.SetCookie(w, c)
		}
	}
	if err != nil {
		slog.Warn("session lookup failed, treating as unauthenticated",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if res == nil {
		return nil
	}
	return res.Session
}

// isOnboarded はオーバーライドCookieまたはプロフィールのフラグでオンボーディング状態を判定する。
func (g *Gate) isOnboarded(r *http.Request, userID string) bool {
	if c, err := r.Cookie(OnboardedCookieName); err == nil && c.Value == "1" {
		return true
	}
	if g.profiles == nil {
		return false
	}
	onboarded, err := g.profiles.IsOnboarded(r.Context(), userID)
	if err != nil {
		slog.Warn("profile lookup failed, treating as not onboarded",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return onboarded
}

// canonicalRedirect は本番環境で正規ホスト・HTTPSでないリクエストのリダイレクト先を返す。
func (g *Gate) canonicalRedirect(r *http.Request) (string, bool) {
	if !g.config.Production || g.config.CanonicalHost == "" {
		return "", false
	}
	canonical := normalizeHost(g.config.CanonicalHost)
	if normalizeHost(r.Host) == canonical && isHTTPS(r) {
		return "", false
	}
	u := url.URL{
		Scheme:   "https",
		Host:     canonical,
		Path:     r.URL.Path,
		RawPath:  r.URL.RawPath,
		RawQuery: r.URL.RawQuery,
	}
	return u.String(), true
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, target string) {
	g.metrics.RecordGateDecision(metrics.DecisionRedirect)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (g *Gate) deny(w http.ResponseWriter, status int, apiErr *model.APIError, decision string) {
	g.metrics.RecordGateDecision(decision)
	WriteErrorResponse(w, status, apiErr)
}

func (g *Gate) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
