// Package mail はメール配信プロバイダー（Resend）のクライアントを提供する。
package mail

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

	"github.com/tidwall/gjson"
)

const (
	// defaultEndpoint はResendのメール送信APIのエンドポイント。
	defaultEndpoint = "https://api.resend.com/emails"
	defaultTimeout  = 10 * time.Second
	// maxErrorBody はエラーレスポンスとして読み込む最大バイト数。
	maxErrorBody = 4096
)

// ErrNotConfigured はAPIキーが未設定で送信できない場合に返される。
var ErrNotConfigured = errors.New("mail provider is not configured")

// Message は送信するプレーンテキストのメール。
type Message struct {
	To      []string
	Subject string
	Text    string
	ReplyTo string
}

// Sender はメール送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client はResend APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	from       string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。httpClientがnilの場合は10秒タイムアウトのクライアントを使う。
func NewClient(apiKey, from string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		from:       from,
		endpoint:   defaultEndpoint,
	}
}

// sendRequest はResend APIのリクエストボディ。
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// Send はメールを1通送信する。2xx以外の応答はエラーとして返す。
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("mail provider request failed",
			slog.String("error", err.Error()),
			slog.String("subject", msg.Subject),
		)
		return fmt.Errorf("failed to call mail provider: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := gjson.GetBytes(raw, "message").String()
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		c.logger.Error("mail provider returned an error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("detail", detail),
		)
		return fmt.Errorf("mail provider returned status %d: %s", resp.StatusCode, detail)
	}

	c.logger.Debug("mail sent",
		slog.String("id", gjson.GetBytes(raw, "id").String()),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// compile-time interface check
var _ Sender = (*Client)(nil)
