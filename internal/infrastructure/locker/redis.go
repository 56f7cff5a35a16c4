package locker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultLockRetry = 25 * time.Millisecond
	lockPrefix       = "lock:"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock shared by every API instance. TTL bounds how long a crashed
// holder can block an offering.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	if r.Client == nil {
		return nil, errors.New("redis locker: nil client")
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	retry := r.Retry
	if retry <= 0 {
		retry = defaultLockRetry
	}
	k := lockPrefix + key
	token := uuid.New().String()

	for {
		ok, err := r.Client.SetNX(ctx, k, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := releaseScript.Run(context.Background(), r.Client, []string{k}, token).Err(); err != nil {
					log.Warn().Err(err).Str("key", k).Msg("Failed to release redis lock")
				}
			}, nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
