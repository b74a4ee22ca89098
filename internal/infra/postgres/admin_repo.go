package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// AdminRepo persists the admin roster.
type AdminRepo struct {
	db *bun.DB
}

func NewAdminRepo(db *bun.DB) *AdminRepo {
	return &AdminRepo{db: db}
}

func (r *AdminRepo) AddAdmin(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admins (user_id) VALUES (?)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("add admin %d: %w", userID, err)
	}
	return nil
}

func (r *AdminRepo) RemoveAdmin(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("remove admin %d: %w", userID, err)
	}
	return nil
}

func (r *AdminRepo) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	exists, err := r.db.NewSelect().Table("admins").Where("user_id = ?", userID).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check admin %d: %w", userID, err)
	}
	return exists, nil
}

func (r *AdminRepo) ListAdmins(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.NewRaw(`SELECT user_id FROM admins ORDER BY user_id ASC`).Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return ids, nil
}
