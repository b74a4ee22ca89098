package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// OverviewRepo serves the admin bot-stats counters.
type OverviewRepo struct {
	db *bun.DB
}

func NewOverviewRepo(db *bun.DB) *OverviewRepo {
	return &OverviewRepo{db: db}
}

func (r *OverviewRepo) CountUsers(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().Model((*userModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *OverviewRepo) CountChats(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().Model((*chatModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count chats: %w", err)
	}
	return count, nil
}

func (r *OverviewRepo) TotalAttempts(ctx context.Context) (int, error) {
	var total int
	err := r.db.NewRaw(`SELECT COALESCE(SUM(attempted), 0) FROM stats`).Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("total attempts: %w", err)
	}
	return total, nil
}
