package middleware

import (
	"path"
	"strings"
)

// パス分類テーブル。ゲートの判定はすべてこのテーブルに基づく。
const (
	apiPrefix = "/api/"

	signInPath          = "/auth/sign-in"
	onboardingEntryPath = "/onboarding"
	verifyPath          = "/auth/verify"
	mainAppPath         = "/home"
)

var (
	otpPaths = map[string]bool{
		"/api/auth/send-otp":   true,
		"/api/auth/verify-otp": true,
	}

	staticPrefixes = []string{"/_next/", "/assets/", "/static/"}

	staticFiles = map[string]bool{
		"/favicon.ico": true,
		"/robots.txt":  true,
		"/sitemap.xml": true,
	}

	staticExtensions = map[string]bool{
		"js": true, "css": true, "map": true,
		"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true, "webp": true, "avif": true, "ico": true,
		"woff": true, "woff2": true, "ttf": true, "otf": true,
		"txt": true, "xml": true, "json": true, "webmanifest": true,
		"mp3": true, "mp4": true, "wav": true,
	}

	publicPages = map[string]bool{
		"/":              true,
		"/about":         true,
		"/pricing":       true,
		"/privacy":       true,
		"/terms":         true,
		"/contact":       true,
		"/advertise":     true,
		"/submit-song":   true,
		"/auth/sign-in":  true,
		"/auth/sign-up":  true,
		"/auth/verify":   true,
		"/auth/callback": true,
	}

	publicPagePrefixes = []string{"/legal/"}

	publicAPIs = map[string]bool{
		"/api/ads":           true,
		"/api/songs":         true,
		"/api/auth/sign-out": true,
		"/api/auth/callback": true,
	}

	onboardingAPIs = map[string]bool{
		"/api/profile/onboard": true,
		"/api/profile/me":      true,
		"/api/auth/me":         true,
		"/api/auth/sign-out":   true,
	}

	onboardingPrefixes = []string{"/onboarding", "/profile/setup"}

	entryPages = map[string]bool{
		"/":             true,
		"/auth/sign-in": true,
		"/auth/sign-up": true,
	}
)

// normalizePath は末尾スラッシュを除いたパスを返す。ルート "/" はそのまま。
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}

// IsStaticAsset は静的アセットへのリクエストかどうかを返す。
func IsStaticAsset(p string) bool {
	for _, prefix := range staticPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	if staticFiles[p] {
		return true
	}
	if strings.HasPrefix(p, apiPrefix) {
		return false
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	return ext != "" && staticExtensions[strings.ToLower(ext)]
}

// IsAPI はAPIパスかどうかを返す。
func IsAPI(p string) bool {
	return strings.HasPrefix(p, apiPrefix) || p == "/api"
}

// IsOTPEndpoint はレート制限対象のOTPエンドポイントかどうかを返す。
func IsOTPEndpoint(p string) bool {
	return otpPaths[normalizePath(p)]
}

func isPublicPage(p string) bool {
	p = normalizePath(p)
	if publicPages[p] {
		return true
	}
	for _, prefix := range publicPagePrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func isPublicAPI(p string) bool {
	return publicAPIs[normalizePath(p)]
}

func isOnboardingAPI(p string) bool {
	return onboardingAPIs[normalizePath(p)]
}

func isOnboardingPage(p string) bool {
	p = normalizePath(p)
	for _, prefix := range onboardingPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

func isEntryPage(p string) bool {
	return entryPages[normalizePath(p)]
}
