package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arakviel/petcare/internal/ports/locking"
)

const (
	keyPrefix    = "petcare:lock:"
	retryBackoff = 50 * time.Millisecond
)

// Solo borra la clave si el token sigue siendo el nuestro.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implementa locking.Locker con SET NX + TTL.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFromURL acepta redis://[:pass@]host:port/db.
func NewFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*Locker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redislock: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redislock: ping: %w", err)
	}
	return New(client, ttl), nil
}

func New(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Lock reintenta hasta conseguir la clave o hasta que ctx termine.
func (l *Locker) Lock(ctx context.Context, key string) (locking.Unlock, error) {
	fullKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, locking.ErrNotAcquired
			}
			return nil, fmt.Errorf("redislock: setnx %s: %w", fullKey, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(retryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, locking.ErrNotAcquired
		case <-t.C:
		}
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}, nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}
