package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fl0rencess720/inkwell/pkg/content"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	keyPrefixLock = "inkwell:lock:" // 帖子锁前缀

	defaultLockTTL   = 30 * time.Second
	defaultLockRetry = 50 * time.Millisecond
	minLockTTL       = 30 * time.Millisecond
)

// 仅当 token 匹配时才删除，避免释放他人持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 仅当 token 匹配时才续期
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func NewRedis() *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		ReadTimeout:  5 * time.Second,
	})

	return rdb
}

// RedisLocker serializes post mutations across processes sharing one Redis.
// A held lock is renewed every ttl/3 until unlocked, so ttl bounds how long
// a crashed holder blocks others, not how long an operation may run.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	renew  time.Duration
}

var _ content.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl < minLockTTL {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  defaultLockRetry,
		renew:  ttl / 3,
	}
}

// Lock 阻塞直到获取锁或 ctx 结束
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefixLock + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			stop := l.keepAlive(redisKey, token)
			var once sync.Once
			return func() {
				once.Do(func() {
					stop()
					l.release(redisKey, token)
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// keepAlive extends the lease until the returned stop func is called. A lease
// that was lost is logged and no longer renewed.
func (l *RedisLocker) keepAlive(redisKey, token string) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(l.renew)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), l.renew)
			extended, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				zap.L().Warn("renew redis lock failed", zap.String("key", redisKey), zap.Error(err))
				continue
			}
			if extended == 0 {
				zap.L().Error("redis lock lost while held", zap.String("key", redisKey))
				return
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		zap.L().Warn("release redis lock failed", zap.String("key", redisKey), zap.Error(err))
		return
	}
	if deleted == 0 {
		zap.L().Warn("redis lock expired before release", zap.String("key", redisKey))
	}
}
