package redis

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/course-nudge/internal/domain/nudge"
)

// nameStore is the subset of Cache the course name cache needs.
type nameStore interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// CourseNameCache implements nudge.CourseCatalog as a read-through cache in
// front of another catalog. Cache failures fall through to the source.
type CourseNameCache struct {
	store nameStore
	next  nudge.CourseCatalog
	ttl   time.Duration
}

// NewCourseNameCache creates a new CourseNameCache.
func NewCourseNameCache(store nameStore, next nudge.CourseCatalog, ttl time.Duration) *CourseNameCache {
	if ttl <= 0 {
		ttl = TTLCourseName
	}
	return &CourseNameCache{store: store, next: next, ttl: ttl}
}

// DisplayName returns the cached name or loads and caches it.
func (c *CourseNameCache) DisplayName(ctx context.Context, courseID string) (string, error) {
	key := CourseKey(courseID)

	name, err := c.store.GetString(ctx, key)
	if err == nil && name != "" {
		return name, nil
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		// Redis trouble should not stop the run.
		return c.next.DisplayName(ctx, courseID)
	}

	name, err = c.next.DisplayName(ctx, courseID)
	if err != nil {
		return "", err
	}
	_ = c.store.SetString(ctx, key, name, c.ttl)
	return name, nil
}

// Invalidate drops cached names so the next lookup reads the catalog again.
// With no course IDs every cached name is dropped. It returns how many
// entries were removed.
func (c *CourseNameCache) Invalidate(ctx context.Context, courseIDs ...string) (int64, error) {
	if len(courseIDs) == 0 {
		return c.store.DeleteByPrefix(ctx, KindCourse)
	}
	keys := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		keys[i] = CourseKey(id)
	}
	return c.store.Delete(ctx, keys...)
}
