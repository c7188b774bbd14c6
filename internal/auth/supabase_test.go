package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/6ixhq/creator/internal/model"
)

const testJWTSecret = "test-secret-test-secret-test-secret"

func signToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
		"role":  "authenticated",
	})
	s, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, url, secret string) *SupabaseClient {
	t.Helper()
	return NewSupabaseClient(SupabaseConfig{
		URL:       url,
		AnonKey:   "anon",
		JWTSecret: secret,
	}, nil)
}

func requestWithSession(t *testing.T, c *SupabaseClient, s *model.Session) *http.Request {
	t.Helper()
	cookies, err := c.SessionCookies(nil, s)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/home", nil)
	for _, ck := range cookies {
		r.AddCookie(ck)
	}
	return r
}

func TestSupabaseClient_SendOTP_PostsEmail(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/otp", r.URL.Path)
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.SendOTP(context.Background(), "a@example.com"))
	assert.Equal(t, "a@example.com", got["email"])
	assert.Equal(t, true, got["create_user"])
}

func TestSupabaseClient_SendOTP_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"msg":"For security purposes, you can only request this once every 60 seconds"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	err := c.SendOTP(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "once every 60 seconds")
}

func TestSupabaseClient_VerifyOTP_ReturnsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/verify", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "email", body["type"])
		assert.Equal(t, "123456", body["token"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token":"acc","token_type":"bearer","expires_in":3600,"expires_at":1900000000,
			"refresh_token":"ref","user":{"id":"user-1","email":"a@example.com"}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	s, err := c.VerifyOTP(context.Background(), "a@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "a@example.com", s.Email)
	assert.Equal(t, "acc", s.AccessToken)
	assert.Equal(t, "ref", s.RefreshToken)
	assert.Equal(t, int64(1900000000), s.ExpiresAt.Unix())
}

func TestSupabaseClient_VerifyOTP_WrongCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error_code":"otp_expired","msg":"Token has expired or is invalid"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	_, err := c.VerifyOTP(context.Background(), "a@example.com", "000000")
	assert.True(t, errors.Is(err, ErrInvalidOTP))
}

func TestSupabaseClient_GetSession_NoCookie(t *testing.T) {
	c := newTestClient(t, "https://abcd.supabase.co", testJWTSecret)
	res, err := c.GetSession(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	assert.Empty(t, res.Cookies)
}

func TestSupabaseClient_GetSession_ValidLocalJWT(t *testing.T) {
	c := newTestClient(t, "https://abcd.supabase.co", testJWTSecret)
	exp := time.Now().Add(time.Hour)
	r := requestWithSession(t, c, &model.Session{
		UserID:       "user-1",
		AccessToken:  signToken(t, "user-1", "a@example.com", exp),
		RefreshToken: "ref",
		ExpiresAt:    exp,
	})

	res, err := c.GetSession(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "user-1", res.Session.UserID)
	assert.Equal(t, "a@example.com", res.Session.Email)
	assert.Empty(t, res.Cookies)
}

func TestSupabaseClient_GetSession_WrongSignature(t *testing.T) {
	c := newTestClient(t, "https://abcd.supabase.co", "another-secret")
	exp := time.Now().Add(time.Hour)
	r := requestWithSession(t, c, &model.Session{
		UserID:      "user-1",
		AccessToken: signToken(t, "user-1", "a@example.com", exp),
	})

	res, err := c.GetSession(context.Background(), r)
	assert.Error(t, err)
	assert.Nil(t, res.Session)
}

func TestSupabaseClient_GetSession_ExpiredTokenIsRefreshed(t *testing.T) {
	var refreshCalls atomic.Int32
	newExp := time.Now().Add(time.Hour)
	newToken := signToken(t, "user-1", "a@example.com", newExp)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		refreshCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  newToken,
			"token_type":    "bearer",
			"expires_at":    newExp.Unix(),
			"refresh_token": "ref-2",
			"user":          map[string]string{"id": "user-1", "email": "a@example.com"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testJWTSecret)
	oldExp := time.Now().Add(-time.Minute)
	r := requestWithSession(t, c, &model.Session{
		UserID:       "user-1",
		AccessToken:  signToken(t, "user-1", "a@example.com", oldExp),
		RefreshToken: "ref-1",
		ExpiresAt:    oldExp,
	})

	res, err := c.GetSession(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, "ref-2", res.Session.RefreshToken)
	require.NotEmpty(t, res.Cookies)
	assert.Equal(t, c.CookieName(), res.Cookies[0].Name)
}

func TestSupabaseClient_GetSession_RemoteVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer opaque" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"user-9","email":"z@example.com"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	r := requestWithSession(t, c, &model.Session{
		UserID:      "user-9",
		AccessToken: "opaque",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	res, err := c.GetSession(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "user-9", res.Session.UserID)
	assert.Equal(t, "z@example.com", res.Session.Email)
}

func TestSupabaseClient_SignOut_SendsBearer(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.SignOut(context.Background(), "acc"))
	assert.Equal(t, "Bearer acc", auth)
}
