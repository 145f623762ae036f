package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/course-nudge/config"
	"github.com/alem-hub/course-nudge/internal/infrastructure/persistence/redis"
)

func TestCacheConfig(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{
		URL:          "redis://cache:6379/1",
		PoolSize:     4,
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		Namespace:    "course-nudge-staging",
	}}

	rc := CacheConfig(cfg)
	assert.Equal(t, "redis://cache:6379/1", rc.URL)
	assert.Equal(t, 4, rc.PoolSize)
	assert.Equal(t, time.Second, rc.DialTimeout)
	assert.Equal(t, "course-nudge-staging", rc.Namespace)

	cfg.Redis.Namespace = ""
	assert.Equal(t, redis.DefaultNamespace, CacheConfig(cfg).Namespace)
}
