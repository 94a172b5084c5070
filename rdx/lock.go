package rdx

import (
	"context"
	"time"

	"agromart/apperr"
	"agromart/logging"
	"agromart/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another request is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	conn *redis.Client
}

func NewLocker(conn *redis.Client) *Locker {
	return &Locker{conn: conn}
}

// Acquire takes key for ttl. A held lock is reported as a Conflict.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := utils.GetUUID()
	ok, err := l.conn.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return nil, apperr.Internal("lock unavailable", err)
	}
	if !ok {
		return nil, apperr.Conflict("another checkout is already in progress")
	}

	release := func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.conn, []string{"lock:" + key}, token).Err(); err != nil {
			logging.FromContext(ctx).Warn("lock release failed", zap.String("key", key), zap.Error(err))
		}
	}
	return release, nil
}
