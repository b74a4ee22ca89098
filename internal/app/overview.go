package app

import (
	"context"

	"neetiq-service/internal/domain"
)

// OverviewRepository counts the reach aggregates that do not belong to any
// single service: registered users, chats and total attempts.
type OverviewRepository interface {
	CountUsers(ctx context.Context) (int, error)
	CountChats(ctx context.Context) (int, error)
	TotalAttempts(ctx context.Context) (int, error)
}

// OverviewService assembles the admin bot-stats snapshot.
type OverviewService struct {
	repo      OverviewRepository
	questions QuestionRepository
	admins    *AdminService
}

func NewOverviewService(repo OverviewRepository, questions QuestionRepository, admins *AdminService) *OverviewService {
	return &OverviewService{repo: repo, questions: questions, admins: admins}
}

// Snapshot is admin-only and reads every counter in one pass.
func (s *OverviewService) Snapshot(ctx context.Context, callerID int64) (domain.Overview, error) {
	if err := s.admins.RequireAdmin(ctx, callerID); err != nil {
		return domain.Overview{}, err
	}

	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	chats, err := s.repo.CountChats(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	attempts, err := s.repo.TotalAttempts(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	questions, err := s.questions.Count(ctx)
	if err != nil {
		return domain.Overview{}, err
	}
	roster, err := s.admins.repo.ListAdmins(ctx)
	if err != nil {
		return domain.Overview{}, err
	}

	return domain.Overview{
		Users:     users,
		Chats:     chats,
		Admins:    len(roster) + 1, // owner is implicit
		Questions: questions,
		Attempts:  attempts,
	}, nil
}
