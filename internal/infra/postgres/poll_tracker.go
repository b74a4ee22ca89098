package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"neetiq-service/internal/domain"
)

// PollTracker is the database-backed tracker used when Redis is not
// configured. Entries are single-use: Resolve deletes the row it returns.
type PollTracker struct {
	db *bun.DB
}

func NewPollTracker(db *bun.DB) *PollTracker {
	return &PollTracker{db: db}
}

func (t *PollTracker) Track(ctx context.Context, pollID string, route domain.PollRoute) error {
	res, err := t.db.ExecContext(ctx, `
		INSERT INTO active_polls (poll_id, chat_id, correct_option_id)
		VALUES (?, ?, ?)
		ON CONFLICT (poll_id) DO NOTHING
	`, pollID, route.ChatID, route.CorrectOption)
	if err != nil {
		return fmt.Errorf("track poll %s: %w", pollID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("track poll %s: %w", pollID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPollAlreadyTracked, pollID)
	}
	return nil
}

func (t *PollTracker) Resolve(ctx context.Context, pollID string) (domain.PollRoute, error) {
	var route domain.PollRoute
	err := t.db.NewRaw(`
		DELETE FROM active_polls
		WHERE poll_id = ?
		RETURNING chat_id, correct_option_id
	`, pollID).Scan(ctx, &route.ChatID, &route.CorrectOption)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PollRoute{}, domain.ErrPollNotFound
	}
	if err != nil {
		return domain.PollRoute{}, fmt.Errorf("resolve poll %s: %w", pollID, err)
	}
	return route, nil
}
