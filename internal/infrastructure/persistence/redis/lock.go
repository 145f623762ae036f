package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StudentLocker serializes evaluations of the same student across workers
// and overlapping runs.
type StudentLocker struct {
	client redis.UniversalClient
	keyOf  func(string) string
	ttl    time.Duration
}

// NewStudentLocker creates a new StudentLocker.
func NewStudentLocker(cache *Cache, ttl time.Duration) *StudentLocker {
	if ttl <= 0 {
		ttl = TTLStudentLock
	}
	return &StudentLocker{client: cache.Client(), keyOf: cache.Key, ttl: ttl}
}

// Lock takes the lock for a student. It returns shared.ErrStudentLocked when
// another holder has it. The returned function releases the lock.
func (l *StudentLocker) Lock(ctx context.Context, studentID string) (func(), error) {
	key := l.keyOf(LockKey(studentID))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	if !ok {
		return nil, shared.ErrStudentLocked
	}

	return func() {
		// Release on a fresh context so a cancelled run still unlocks.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// On failure the TTL frees the key.
		_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
	}, nil
}
