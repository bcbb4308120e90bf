// Package redislock implements interfaces.Locker on Redis SET NX.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/stacker/internal/common"
	"github.com/bobmcallan/stacker/internal/interfaces"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "stacker:lock:"

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker holds short-lived locks identified by a per-process token.
type Locker struct {
	client *redis.Client
	token  string
	logger *common.Logger
}

// NewLocker connects to Redis. Connectivity is verified with PING.
func NewLocker(ctx context.Context, cfg common.RedisConfig, logger *common.Logger) (*Locker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return NewLockerWithClient(client, logger), nil
}

func NewLockerWithClient(client *redis.Client, logger *common.Logger) *Locker {
	return &Locker{
		client: client,
		token:  uuid.NewString(),
		logger: logger,
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		l.logger.Debug().Str("key", key).Msg("Lock held elsewhere")
	}
	return ok, nil
}

func (l *Locker) Unlock(ctx context.Context, key string) error {
	if err := unlockScript.Run(ctx, l.client, []string{keyPrefix + key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}

var _ interfaces.Locker = (*Locker)(nil)
