package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
)

// CourseRepository implements nudge.CourseCatalog for PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// DisplayName returns the human-readable course name.
func (r *CourseRepository) DisplayName(ctx context.Context, courseID string) (string, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var name string
	err := r.conn.QueryRow(ctx, `SELECT display_name FROM courses WHERE id = $1`, courseID).Scan(&name)
	if err != nil {
		if IsNoRows(err) {
			return "", shared.ErrCourseNotFound
		}
		return "", fmt.Errorf("failed to get course: %w", err)
	}
	return name, nil
}
