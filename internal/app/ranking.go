package app

import (
	"context"
	"errors"

	"neetiq-service/internal/domain"
)

// LeaderboardRepository reads aggregate rows for ranking queries. Rows come
// back joined with the owning user's profile fields so display names can be
// resolved without a second round-trip. Ordering is score descending with
// user id ascending as the tie-break.
type LeaderboardRepository interface {
	TopGlobal(ctx context.Context, limit int) ([]domain.StatRow, error)
	TopGroup(ctx context.Context, chatID int64, limit int) ([]domain.StatRow, error)
	GlobalRank(ctx context.Context, score int) (int, error)
	GroupRank(ctx context.Context, chatID int64, score int) (int, error)
	GlobalStats(ctx context.Context, userID int64) (domain.GlobalStats, error)
	DailyStats(ctx context.Context, userID int64, day string) (domain.DailyStats, error)
}

// RankingService computes ordered leaderboards and per-user rank views.
type RankingService struct {
	repo LeaderboardRepository
}

func NewRankingService(repo LeaderboardRepository) *RankingService {
	return &RankingService{repo: repo}
}

// Leaderboard returns at most limit rows for the scope, best score first,
// each with a resolved display name.
func (r *RankingService) Leaderboard(ctx context.Context, scope domain.Scope, limit int) ([]domain.LeaderboardRow, error) {
	var (
		rows []domain.StatRow
		err  error
	)
	if scope.IsGlobal() {
		rows, err = r.repo.TopGlobal(ctx, limit)
	} else {
		rows, err = r.repo.TopGroup(ctx, scope.ChatID, limit)
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.LeaderboardRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LeaderboardRow{
			DisplayName: domain.DisplayName(row.UserID, row.Username, row.FirstName),
			Attempted:   row.Attempted,
			Correct:     row.Correct,
			Score:       row.Score,
		})
	}
	return out, nil
}

// Rank returns the 1-based competition rank of a score within the scope:
// the count of strictly greater scores plus one, so ties share a rank.
func (r *RankingService) Rank(ctx context.Context, scope domain.Scope, score int) (int, error) {
	if scope.IsGlobal() {
		return r.repo.GlobalRank(ctx, score)
	}
	return r.repo.GroupRank(ctx, scope.ChatID, score)
}

// Daily returns the per-day counters for one user. A missing row is not an
// error: a user who has not answered today simply has zero counters.
func (r *RankingService) Daily(ctx context.Context, userID int64, day string) (domain.DailyStats, error) {
	stats, err := r.repo.DailyStats(ctx, userID, day)
	if errors.Is(err, domain.ErrNoStats) {
		return domain.DailyStats{UserID: userID, Day: day}, nil
	}
	return stats, err
}

// UserSummary assembles the profile stats view: lifetime stats, global rank,
// group rank when a chat scope is given, and the cosmetic XP title.
func (r *RankingService) UserSummary(ctx context.Context, userID, chatID int64) (domain.UserSummary, error) {
	stats, err := r.repo.GlobalStats(ctx, userID)
	if err != nil {
		return domain.UserSummary{}, err
	}

	globalRank, err := r.repo.GlobalRank(ctx, stats.Score)
	if err != nil {
		return domain.UserSummary{}, err
	}

	groupRank := 0
	if chatID != 0 {
		groupRank, err = r.repo.GroupRank(ctx, chatID, stats.Score)
		if err != nil {
			return domain.UserSummary{}, err
		}
	}

	xp := domain.XP(stats.Attempted, stats.Correct)
	return domain.UserSummary{
		Stats:      stats,
		GlobalRank: globalRank,
		GroupRank:  groupRank,
		XP:         xp,
		RankTitle:  domain.RankTitle(xp),
	}, nil
}
