package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieName_DerivesProjectRef(t *testing.T) {
	assert.Equal(t, "sb-abcd1234-auth-token", CookieName("https://abcd1234.supabase.co"))
	assert.Equal(t, "sb-localhost-auth-token", CookieName("http://localhost:54321"))
	assert.Equal(t, "sb-local-auth-token", CookieName(""))
}

func TestEncodeDecodeSession_SingleCookie(t *testing.T) {
	in := &storedSession{
		AccessToken:  "access",
		TokenType:    "bearer",
		ExpiresAt:    1700000000,
		RefreshToken: "refresh",
		User:         storedUser{ID: "user-1", Email: "a@example.com"},
	}

	cookies, err := encodeSessionCookies(nil, "sb-x-auth-token", in, true)
	require.NoError(t, err)
	require.Len(t, cookies, 1)

	c := cookies[0]
	assert.Equal(t, "sb-x-auth-token", c.Name)
	assert.True(t, strings.HasPrefix(c.Value, base64Prefix))
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	value, ok := readCookieValue(r, "sb-x-auth-token")
	require.True(t, ok)

	out, err := decodeSession(value)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeSessionCookies_LargeSessionIsChunked(t *testing.T) {
	in := &storedSession{
		AccessToken:  strings.Repeat("a", 5000),
		RefreshToken: "refresh",
		User:         storedUser{ID: "user-1"},
	}

	cookies, err := encodeSessionCookies(nil, "sb-x-auth-token", in, false)
	require.NoError(t, err)
	require.Len(t, cookies, 3)
	for i, c := range cookies {
		assert.Equal(t, "sb-x-auth-token."+string(rune('0'+i)), c.Name)
		assert.LessOrEqual(t, len(c.Value), maxChunkSize)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	assert.True(t, HasSessionCookies(r))

	value, ok := readCookieValue(r, "sb-x-auth-token")
	require.True(t, ok)
	out, err := decodeSession(value)
	require.NoError(t, err)
	assert.Equal(t, in.AccessToken, out.AccessToken)
}

func TestEncodeSessionCookies_ChunksReplaceSingleCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sb-x-auth-token", Value: "base64-old"})

	in := &storedSession{AccessToken: strings.Repeat("a", 5000), RefreshToken: "new"}
	cookies, err := encodeSessionCookies(r, "sb-x-auth-token", in, false)
	require.NoError(t, err)
	require.Len(t, cookies, 4)

	last := cookies[3]
	assert.Equal(t, "sb-x-auth-token", last.Name)
	assert.Equal(t, -1, last.MaxAge, "the old single cookie must be deleted")

	// ブラウザ側で削除が反映された後のリクエストでは新しいセッションが読まれる
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies[:3] {
		next.AddCookie(c)
	}
	value, ok := readCookieValue(next, "sb-x-auth-token")
	require.True(t, ok)
	out, err := decodeSession(value)
	require.NoError(t, err)
	assert.Equal(t, "new", out.RefreshToken)
}

func TestEncodeSessionCookies_SingleReplacesChunks(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sb-x-auth-token.0", Value: "a"})
	r.AddCookie(&http.Cookie{Name: "sb-x-auth-token.1", Value: "b"})
	r.AddCookie(&http.Cookie{Name: "other", Value: "keep"})

	cookies, err := encodeSessionCookies(r, "sb-x-auth-token", &storedSession{AccessToken: "small"}, false)
	require.NoError(t, err)
	require.Len(t, cookies, 3)

	assert.Equal(t, "sb-x-auth-token", cookies[0].Name)
	assert.Equal(t, sessionCookieMaxAge, cookies[0].MaxAge)
	assert.Equal(t, "sb-x-auth-token.0", cookies[1].Name)
	assert.Equal(t, -1, cookies[1].MaxAge)
	assert.Equal(t, "sb-x-auth-token.1", cookies[2].Name)
	assert.Equal(t, -1, cookies[2].MaxAge)
}

func TestEncodeSessionCookies_FewerChunksDropsLeftovers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, n := range []string{"0", "1", "2", "3"} {
		r.AddCookie(&http.Cookie{Name: "sb-x-auth-token." + n, Value: "x"})
	}

	in := &storedSession{AccessToken: strings.Repeat("a", 5000)}
	cookies, err := encodeSessionCookies(r, "sb-x-auth-token", in, false)
	require.NoError(t, err)
	require.Len(t, cookies, 4)
	assert.Equal(t, "sb-x-auth-token.3", cookies[3].Name)
	assert.Equal(t, -1, cookies[3].MaxAge)
}

func TestDecodeSession_AcceptsRawJSON(t *testing.T) {
	out, err := decodeSession(`{"access_token":"tok","refresh_token":"ref","user":{"id":"u"}}`)
	require.NoError(t, err)
	assert.Equal(t, "tok", out.AccessToken)
	assert.Equal(t, "u", out.User.ID)
}

func TestDecodeSession_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"bad base64", "base64-***"},
		{"not json", "hello"},
		{"no access token", `{"refresh_token":"r"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeSession(tt.value)
			assert.Error(t, err)
		})
	}
}

func TestHasSessionCookies_IgnoresOtherCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "6ix_onboarded", Value: "1"})
	assert.False(t, HasSessionCookies(r))

	r.AddCookie(&http.Cookie{Name: "sb-abc-auth-token", Value: "x"})
	assert.True(t, HasSessionCookies(r))
}

func TestClearSessionCookies_ExpiresEveryChunk(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sb-x-auth-token.1", Value: "b"})
	r.AddCookie(&http.Cookie{Name: "sb-x-auth-token.0", Value: "a"})
	r.AddCookie(&http.Cookie{Name: "other", Value: "keep"})

	cookies := clearSessionCookies(r, "sb-x-auth-token", false)
	require.Len(t, cookies, 2)
	assert.Equal(t, "sb-x-auth-token.0", cookies[0].Name)
	assert.Equal(t, "sb-x-auth-token.1", cookies[1].Name)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge)
		assert.Empty(t, c.Value)
	}
}

func TestClearSessionCookies_NoCookiesStillClearsBaseName(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	cookies := clearSessionCookies(r, "sb-x-auth-token", false)
	require.Len(t, cookies, 1)
	assert.Equal(t, "sb-x-auth-token", cookies[0].Name)
}
