package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// maxDetailLen はフォールバックのmetaイベントに載せる上流エラー詳細の最大文字数。
const maxDetailLen = 300

// ErrUpstreamTimeout は応答ヘッダーが制限時間内に届かなかったことを表す。
var ErrUpstreamTimeout = errors.New("upstream timed out")

// UpstreamError は上流が2xx以外を返したことを表す。
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Detail)
}

// UpstreamConfig は上流プロバイダーの接続設定。
type UpstreamConfig struct {
	BaseURL string // 例: https://openrouter.ai/api/v1
	APIKey  string
	SiteURL string        // HTTP-Refererとして送る
	Timeout time.Duration // 応答ヘッダーが届くまでの上限
}

// Upstream はOpenAI互換のchat/completionsエンドポイントを呼び出すクライアント。
type Upstream struct {
	config     UpstreamConfig
	httpClient *http.Client
}

// NewUpstream は新しいUpstreamを生成する。
// ストリームの長さに上限を設けないため、httpClientにはTimeoutを設定しないこと。
func NewUpstream(config UpstreamConfig, httpClient *http.Client) *Upstream {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Upstream{config: config, httpClient: httpClient}
}

// Stream は上流にストリーミングリクエストを送り、ボディを読み出せる状態のレスポンスを返す。
// 制限時間は応答ヘッダーが届くまでに適用し、ストリーム本体には適用しない。
// 返されたレスポンスのBodyは呼び出し側で閉じること。
func (u *Upstream) Stream(ctx context.Context, payload Payload) (*http.Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(u.config.Timeout, cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		timer.Stop()
		cancel()
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+u.config.APIKey)
	if u.config.SiteURL != "" {
		req.Header.Set("HTTP-Referer", u.config.SiteURL)
	}
	req.Header.Set("X-Title", "6IX")

	resp, err := u.httpClient.Do(req)
	if !timer.Stop() {
		// ヘッダー受信と同時にタイマーが発火した場合もタイムアウトとして扱う
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, ErrUpstreamTimeout
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: errorDetail(body)}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: "empty response body"}
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose はBodyを閉じたときにリクエストのコンテキストも解放する。
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// errorDetail は上流エラーレスポンスから人が読める詳細を取り出し、maxDetailLen文字に切り詰める。
func errorDetail(body []byte) string {
	detail := ""
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error.metadata.raw", "message", "error"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && r.String() != "" {
				detail = r.String()
				break
			}
		}
	}
	if detail == "" {
		detail = strings.TrimSpace(string(body))
	}
	return truncateRunes(detail, maxDetailLen)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
