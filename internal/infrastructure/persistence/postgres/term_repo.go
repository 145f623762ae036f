package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/course-nudge/internal/domain/shared"
	"github.com/alem-hub/course-nudge/pkg/timeutil"
)

// TermRepository reads the academic terms.
type TermRepository struct {
	conn *Connection
}

// NewTermRepository creates a new TermRepository.
func NewTermRepository(conn *Connection) *TermRepository {
	return &TermRepository{conn: conn}
}

// CurrentTerm returns the id and last day of the term marked current. With no
// current term the roster is empty and a run nudges nobody, so callers get
// shared.ErrNoCurrentTerm.
func (r *TermRepository) CurrentTerm(ctx context.Context) (string, timeutil.Date, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var (
		id     string
		endsOn time.Time
	)
	err := r.conn.QueryRow(ctx, `SELECT id, ends_on FROM terms WHERE is_current`).Scan(&id, &endsOn)
	if err != nil {
		if IsNoRows(err) {
			return "", timeutil.Date{}, shared.ErrNoCurrentTerm
		}
		return "", timeutil.Date{}, fmt.Errorf("failed to get current term: %w", err)
	}
	return id, dbDate(endsOn), nil
}
