package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "visaintake:submit:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every replica pointed at the same Redis.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis returns a Redis-backed locker.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Acquire sets the key with NX and a PX expiry holding a random token.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submission lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, token).Err(); err != nil {
			return fmt.Errorf("release submission lock: %w", err)
		}
		return nil
	}, nil
}
