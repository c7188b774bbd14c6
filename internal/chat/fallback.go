package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FallbackMessage は上流に到達できなかったときにアシスタントの発言として返す文言。
const FallbackMessage = "Sorry, I couldn't reach the assistant just now. Please try again in a moment."

type fallbackChunk struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []fallbackChoice `json:"choices"`
}

type fallbackChoice struct {
	Index        int           `json:"index"`
	Delta        fallbackDelta `json:"delta"`
	FinishReason string        `json:"finish_reason"`
}

type fallbackDelta struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fallbackMeta struct {
	UpstreamStatus int    `json:"upstreamStatus"`
	Detail         string `json:"detail"`
}

// SetStreamHeaders はSSEレスポンスのヘッダーを設定する。
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteFallback は謝罪メッセージ1件と終端マーカーだけのSSEストリームを書き込む。
// upstreamStatusが0より大きい場合は、その間にmetaイベントで上流のステータスと詳細を伝える。
func WriteFallback(w io.Writer, modelID string, upstreamStatus int, detail string, now time.Time) error {
	chunk := fallbackChunk{
		ID:      fmt.Sprintf("fallback-%d", now.UnixNano()),
		Object:  "chat.completion.chunk",
		Created: now.Unix(),
		Model:   modelID,
		Choices: []fallbackChoice{{
			Index:        0,
			Delta:        fallbackDelta{Role: "assistant", Content: FallbackMessage},
			FinishReason: "stop",
		}},
	}
	raw, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", raw); err != nil {
		return err
	}

	if upstreamStatus > 0 {
		meta, err := json.Marshal(fallbackMeta{UpstreamStatus: upstreamStatus, Detail: truncateRunes(detail, maxDetailLen)})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: meta\ndata: %s\n\n", meta); err != nil {
			return err
		}
	}

	if _, err := w.Write(doneMarker); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
