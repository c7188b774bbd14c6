package chat

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	doneMarker   = []byte("data: [DONE]\n\n")
	keepAliveMsg = []byte(": ping\n\n")
)

const relayBufferSize = 32 * 1024

// sseWriter はキープアライブとストリーム本体の書き込みを直列化する。
type sseWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	tail    []byte // 中継した上流バイトの末尾。終端マーカーの重複判定とイベント境界の判定に使う
}

func newSSEWriter(w io.Writer) *sseWriter {
	f, _ := w.(http.Flusher)
	return &sseWriter{w: w, flusher: f, tail: make([]byte, 0, len(doneMarker))}
}

func (s *sseWriter) write(p []byte, upstream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(p, upstream)
}

// ping はイベント境界にいる場合だけキープアライブのコメント行を書く。
// 上流のイベントが途中で止まっている間に書くと、data行の途中にコメントが混ざるため送らない。
func (s *sseWriter) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tail) > 0 && !bytes.HasSuffix(s.tail, []byte("\n\n")) && !bytes.HasSuffix(s.tail, []byte("\r\n\r\n")) {
		return nil
	}
	return s.writeLocked(keepAliveMsg, false)
}

func (s *sseWriter) writeLocked(p []byte, upstream bool) error {
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	if upstream {
		s.tail = append(s.tail, p...)
		if over := len(s.tail) - len(doneMarker); over > 0 {
			s.tail = append(s.tail[:0], s.tail[over:]...)
		}
	}
	return nil
}

func (s *sseWriter) endsWithDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Equal(s.tail, doneMarker)
}

// Relay は上流のSSEバイト列をそのままwへ中継し、keepAlive間隔でコメント行を挟む。
// 上流の終了、読み取りエラー、クライアント切断のいずれでも静かに終わり、最後に終端マーカーを1つだけ書く。
// bodyは必ず1回だけ閉じる。中継した上流バイト数を返す。
func Relay(ctx context.Context, w io.Writer, body io.ReadCloser, keepAlive time.Duration, logger *slog.Logger) int64 {
	if logger == nil {
		logger = slog.Default()
	}
	sw := newSSEWriter(w)

	var closeOnce sync.Once
	closeBody := func() { closeOnce.Do(func() { body.Close() }) }
	defer closeBody()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var relayed int64
	clientGone := false

	g, gctx := errgroup.WithContext(ctx)

	// 読み取りループ
	g.Go(func() error {
		defer cancel()
		buf := make([]byte, relayBufferSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				if werr := sw.write(buf[:n], true); werr != nil {
					logger.Debug("client disconnected during relay", slog.String("error", werr.Error()))
					clientGone = true
					return nil
				}
				relayed += int64(n)
			}
			if err != nil {
				if err != io.EOF && gctx.Err() == nil {
					logger.Debug("upstream read ended with error", slog.String("error", err.Error()))
				}
				return nil
			}
		}
	})

	// キープアライブ
	g.Go(func() error {
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				// 読み取りループがブロックしていれば解放する
				closeBody()
				return nil
			case <-ticker.C:
				if err := sw.ping(); err != nil {
					closeBody()
					return nil
				}
			}
		}
	})

	_ = g.Wait()

	if !clientGone && !sw.endsWithDone() {
		_ = sw.write(doneMarker, false)
	}
	return relayed
}
