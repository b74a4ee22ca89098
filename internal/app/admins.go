package app

import (
	"context"
	"fmt"

	"neetiq-service/internal/domain"
)

// AdminRepository stores the user ids granted admin privileges.
type AdminRepository interface {
	AddAdmin(ctx context.Context, userID int64) error
	RemoveAdmin(ctx context.Context, userID int64) error
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	ListAdmins(ctx context.Context) ([]int64, error)
}

// AdminService answers authorization checks. The owner id from config is
// always an admin and is the only principal allowed to change the roster.
type AdminService struct {
	repo    AdminRepository
	ownerID int64
}

func NewAdminService(repo AdminRepository, ownerID int64) *AdminService {
	return &AdminService{repo: repo, ownerID: ownerID}
}

func (a *AdminService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if userID == a.ownerID {
		return true, nil
	}
	return a.repo.IsAdmin(ctx, userID)
}

// RequireAdmin rejects non-admin callers before any state mutation.
func (a *AdminService) RequireAdmin(ctx context.Context, userID int64) error {
	ok, err := a.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d is not an admin", domain.ErrUnauthorized, userID)
	}
	return nil
}

func (a *AdminService) requireOwner(userID int64) error {
	if userID != a.ownerID {
		return fmt.Errorf("%w: user %d is not the owner", domain.ErrUnauthorized, userID)
	}
	return nil
}

func (a *AdminService) AddAdmin(ctx context.Context, callerID, userID int64) error {
	if err := a.requireOwner(callerID); err != nil {
		return err
	}
	return a.repo.AddAdmin(ctx, userID)
}

func (a *AdminService) RemoveAdmin(ctx context.Context, callerID, userID int64) error {
	if err := a.requireOwner(callerID); err != nil {
		return err
	}
	return a.repo.RemoveAdmin(ctx, userID)
}

// ListAdmins returns the roster with the owner first.
func (a *AdminService) ListAdmins(ctx context.Context, callerID int64) ([]int64, error) {
	if err := a.RequireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	ids, err := a.repo.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	out := []int64{a.ownerID}
	for _, id := range ids {
		if id != a.ownerID {
			out = append(out, id)
		}
	}
	return out, nil
}
