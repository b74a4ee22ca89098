package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"neetiq-service/internal/app"
	"neetiq-service/internal/domain"
	"neetiq-service/internal/infra/memory"
)

// seedScores records enough answers per user to reach the given score on
// the global board (and the group board when chatID is non-zero). Scores
// must be multiples of 4.
func seedScores(t *testing.T, svc *app.ScoringService, chatID int64, scores map[int64]int) {
	t.Helper()
	ctx := context.Background()
	for userID, score := range scores {
		for i := 0; i < score/4; i++ {
			if err := svc.RecordAnswer(ctx, userID, chatID, true, "", ""); err != nil {
				t.Fatalf("seed user %d: %v", userID, err)
			}
		}
	}
}

func newRankingFixture() (*app.RankingService, *app.ScoringService, *memory.StatsStore) {
	store := memory.NewStatsStore()
	scoring := app.NewScoringService(store, store, memory.NewPollTracker(), zerolog.Nop()).WithClock(fixedClock)
	return app.NewRankingService(store), scoring, store
}

func TestLeaderboardOrderAndTieBreak(t *testing.T) {
	ctx := context.Background()
	ranking, scoring, _ := newRankingFixture()

	seedScores(t, scoring, 0, map[int64]int{
		1: 8,
		2: 16,
		3: 8,
		4: 4,
	})

	rows, err := ranking.Leaderboard(ctx, domain.GlobalScope(), 3)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Score != 16 {
		t.Fatalf("expected top score 16, got %+v", rows[0])
	}
	// Users 1 and 3 tie on 8; the lower id lists first.
	if rows[1].DisplayName != "Participant 1" || rows[2].DisplayName != "Participant 3" {
		t.Fatalf("tie-break order wrong: %+v", rows[1:])
	}
}

func TestCompetitionRankSharesTies(t *testing.T) {
	ctx := context.Background()
	ranking, scoring, _ := newRankingFixture()

	seedScores(t, scoring, 0, map[int64]int{1: 20, 2: 12, 3: 12, 4: 4})

	for _, tc := range []struct {
		score int
		want  int
	}{
		{20, 1},
		{12, 2}, // both 12s share rank 2
		{4, 4},  // two users above the 4, so rank 4
	} {
		rank, err := ranking.Rank(ctx, domain.GlobalScope(), tc.score)
		if err != nil {
			t.Fatalf("rank(%d): %v", tc.score, err)
		}
		if rank != tc.want {
			t.Fatalf("rank(%d) = %d, want %d", tc.score, rank, tc.want)
		}
	}
}

func TestGroupLeaderboardIsolatedFromGlobal(t *testing.T) {
	ctx := context.Background()
	ranking, scoring, _ := newRankingFixture()

	seedScores(t, scoring, -5, map[int64]int{1: 8})
	seedScores(t, scoring, -6, map[int64]int{2: 16})
	seedScores(t, scoring, 0, map[int64]int{3: 20})

	rows, err := ranking.Leaderboard(ctx, domain.GroupScope(-5), 10)
	if err != nil {
		t.Fatalf("group leaderboard: %v", err)
	}
	if len(rows) != 1 || rows[0].Score != 8 {
		t.Fatalf("group board leaked other scopes: %+v", rows)
	}
}

func TestUserSummary(t *testing.T) {
	ctx := context.Background()
	ranking, scoring, _ := newRankingFixture()

	seedScores(t, scoring, -5, map[int64]int{1: 8, 2: 16})

	summary, err := ranking.UserSummary(ctx, 1, -5)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.GlobalRank != 2 || summary.GroupRank != 2 {
		t.Fatalf("unexpected ranks: %+v", summary)
	}
	if summary.XP != 8 || summary.RankTitle != "Medical Student" {
		t.Fatalf("unexpected xp view: %+v", summary)
	}

	global, err := ranking.UserSummary(ctx, 1, 0)
	if err != nil {
		t.Fatalf("global summary: %v", err)
	}
	if global.GroupRank != 0 {
		t.Fatalf("global summary must not carry a group rank: %+v", global)
	}
}

func TestUserSummaryWithoutStats(t *testing.T) {
	ctx := context.Background()
	ranking, _, _ := newRankingFixture()

	if _, err := ranking.UserSummary(ctx, 99, 0); !errors.Is(err, domain.ErrNoStats) {
		t.Fatalf("expected ErrNoStats, got %v", err)
	}
}

func TestDailyDefaultsToZeroRow(t *testing.T) {
	ctx := context.Background()
	ranking, scoring, _ := newRankingFixture()

	day := fixedClock().Format(domain.DayFormat)
	empty, err := ranking.Daily(ctx, 1, day)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if empty.Attempted != 0 || empty.Day != day {
		t.Fatalf("expected zero row for %s, got %+v", day, empty)
	}

	seedScores(t, scoring, 0, map[int64]int{1: 4})
	today, err := ranking.Daily(ctx, 1, day)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if today.Attempted != 1 || today.Correct != 1 {
		t.Fatalf("unexpected daily row: %+v", today)
	}
}
