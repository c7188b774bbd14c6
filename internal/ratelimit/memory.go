package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyLimiter はキーごとの現在のウィンドウと最終アクセス時刻を保持する。
type keyLimiter struct {
	limiter     *rate.Limiter
	windowStart time.Time
	lastAccess  time.Time
}

// MemoryStore はプロセス内の固定ウィンドウで上限を判定するStore。
// REDIS_URL未設定の開発環境や単一インスタンス構成で使用する。
// ウィンドウごとにバースト=Limitのリミッターを作り直すため、ウィンドウ内のLimit+1回目は必ず拒否される。
type MemoryStore struct {
	config Config
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*keyLimiter

	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore はMemoryStoreを生成し、期限切れエントリのクリーンアップを開始する。
func NewMemoryStore(config Config) *MemoryStore {
	s := &MemoryStore{
		config:          config,
		now:             time.Now,
		limiters:        make(map[string]*keyLimiter),
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Allow は現在のウィンドウの残り回数を1つ消費できればtrueを返す。エラーは返さない。
func (s *MemoryStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kl, ok := s.limiters[key]
	if !ok || now.Sub(kl.windowStart) >= s.config.Window {
		kl = &keyLimiter{
			limiter:     s.newWindowLimiter(),
			windowStart: now,
		}
		s.limiters[key] = kl
	}
	kl.lastAccess = now

	return kl.limiter.AllowN(now, 1), nil
}

// newWindowLimiter はウィンドウ1つ分のリミッターを作る。
// 補充はウィンドウ長あたり1トークンなので、ウィンドウ内では満タンのLimit回を超えて補充されない。
func (s *MemoryStore) newWindowLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(s.config.Window), max(s.config.Limit, 0))
}

// Len は現在管理しているキーの数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからウィンドウの2倍以上経過したエントリを削除する。
// その時点でウィンドウは終わっているため、削除しても判定は変わらない。
func (s *MemoryStore) cleanup(now time.Time) {
	ttl := s.config.Window * 2

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
