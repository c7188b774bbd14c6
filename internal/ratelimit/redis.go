package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// RedisStore はRedisのINCRとEXPIREで固定ウィンドウを実装したStore。
// 複数インスタンス間でカウンターを共有する。
type RedisStore struct {
	client *redis.Client
	config Config
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client, config Config) *RedisStore {
	return &RedisStore{
		client: client,
		config: config,
	}
}

// NewRedisStoreFromURL はredis://形式のURLから接続してRedisStoreを生成する。
func NewRedisStoreFromURL(rawURL string, config Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), config), nil
}

// Allow はキーのカウンターを1増やし、ウィンドウ内の上限以内であればtrueを返す。
// ウィンドウの開始はそのキーの最初のINCRで決まる。
// TTLの付いていないキーには毎回EXPIREを試みるため、EXPIREが一度失敗してもキーが残り続けることはない。
func (s *RedisStore) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.TTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	// TTLなし（-1）
	if ttl.Val() < 0 {
		if err := s.client.Expire(ctx, k, s.config.Window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate window: %w", err)
		}
	}

	return incr.Val() <= int64(s.config.Limit), nil
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
