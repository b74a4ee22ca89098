package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"neetiq-service/internal/domain"
)

// StatsRepo persists every scoring aggregate with atomic upsert-with-
// arithmetic statements, so concurrent answers for the same user never lose
// an increment. ApplyAnswer wraps its four statements in one transaction:
// either all views commit or none does.
type StatsRepo struct {
	db *bun.DB
}

func NewStatsRepo(db *bun.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) ApplyAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (user_id, username, first_name)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
				first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name)
		`, rec.UserID, rec.Username, rec.FirstName); err != nil {
			return err
		}

		if rec.Correct {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stats (user_id, attempted, correct, score, current_streak, max_streak, last_activity_date)
				VALUES (?, 1, 1, 4, 1, 1, ?)
				ON CONFLICT (user_id) DO UPDATE SET
					attempted = stats.attempted + 1,
					correct = stats.correct + 1,
					score = stats.score + 4,
					current_streak = stats.current_streak + 1,
					max_streak = GREATEST(stats.max_streak, stats.current_streak + 1),
					last_activity_date = EXCLUDED.last_activity_date
			`, rec.UserID, rec.Day); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO stats (user_id, attempted, correct, score, current_streak, max_streak, last_activity_date)
				VALUES (?, 1, 0, -1, 0, 0, ?)
				ON CONFLICT (user_id) DO UPDATE SET
					attempted = stats.attempted + 1,
					score = stats.score - 1,
					current_streak = 0,
					last_activity_date = EXCLUDED.last_activity_date
			`, rec.UserID, rec.Day); err != nil {
				return err
			}
		}

		correctInc := 0
		if rec.Correct {
			correctInc = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stats (user_id, day, attempted, correct)
			VALUES (?, ?, 1, ?)
			ON CONFLICT (user_id, day) DO UPDATE SET
				attempted = daily_stats.attempted + 1,
				correct = daily_stats.correct + ?
		`, rec.UserID, rec.Day, correctInc, correctInc); err != nil {
			return err
		}

		if rec.ChatID == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO group_stats (chat_id, user_id, attempted, correct, score)
			VALUES (?, ?, 1, ?, ?)
			ON CONFLICT (chat_id, user_id) DO UPDATE SET
				attempted = group_stats.attempted + 1,
				correct = group_stats.correct + ?,
				score = group_stats.score + ?
		`, rec.ChatID, rec.UserID, correctInc, domain.ScoreDelta(rec.Correct), correctInc, domain.ScoreDelta(rec.Correct))
		return err
	})
	if err != nil {
		return fmt.Errorf("apply answer for user %d: %w", rec.UserID, err)
	}
	return nil
}

func (r *StatsRepo) TopGlobal(ctx context.Context, limit int) ([]domain.StatRow, error) {
	var rows []statRowModel
	err := r.db.NewRaw(`
		SELECT s.user_id, COALESCE(u.username, '') AS username, COALESCE(u.first_name, '') AS first_name,
		       s.attempted, s.correct, s.score
		FROM stats s
		LEFT JOIN users u ON u.user_id = s.user_id
		ORDER BY s.score DESC, s.user_id ASC
		LIMIT ?
	`, limit).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("global leaderboard: %w", err)
	}
	return toStatRows(rows), nil
}

func (r *StatsRepo) TopGroup(ctx context.Context, chatID int64, limit int) ([]domain.StatRow, error) {
	var rows []statRowModel
	err := r.db.NewRaw(`
		SELECT gs.user_id, COALESCE(u.username, '') AS username, COALESCE(u.first_name, '') AS first_name,
		       gs.attempted, gs.correct, gs.score
		FROM group_stats gs
		LEFT JOIN users u ON u.user_id = gs.user_id
		WHERE gs.chat_id = ?
		ORDER BY gs.score DESC, gs.user_id ASC
		LIMIT ?
	`, chatID, limit).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("group leaderboard: %w", err)
	}
	return toStatRows(rows), nil
}

func (r *StatsRepo) GlobalRank(ctx context.Context, score int) (int, error) {
	var rank int
	err := r.db.NewRaw(`SELECT COUNT(*) + 1 FROM stats WHERE score > ?`, score).Scan(ctx, &rank)
	if err != nil {
		return 0, fmt.Errorf("global rank: %w", err)
	}
	return rank, nil
}

func (r *StatsRepo) GroupRank(ctx context.Context, chatID int64, score int) (int, error) {
	var rank int
	err := r.db.NewRaw(`SELECT COUNT(*) + 1 FROM group_stats WHERE chat_id = ? AND score > ?`, chatID, score).Scan(ctx, &rank)
	if err != nil {
		return 0, fmt.Errorf("group rank: %w", err)
	}
	return rank, nil
}

func (r *StatsRepo) GlobalStats(ctx context.Context, userID int64) (domain.GlobalStats, error) {
	var model statsModel
	err := r.db.NewSelect().Model(&model).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GlobalStats{}, domain.ErrNoStats
	}
	if err != nil {
		return domain.GlobalStats{}, fmt.Errorf("load stats: %w", err)
	}
	return domain.GlobalStats{
		UserID:           model.UserID,
		Attempted:        model.Attempted,
		Correct:          model.Correct,
		Score:            model.Score,
		CurrentStreak:    model.CurrentStreak,
		MaxStreak:        model.MaxStreak,
		LastActivityDate: model.LastActivityDate,
	}, nil
}

func (r *StatsRepo) DailyStats(ctx context.Context, userID int64, day string) (domain.DailyStats, error) {
	var model dailyStatsModel
	err := r.db.NewSelect().Model(&model).Where("ds.user_id = ? AND ds.day = ?", userID, day).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyStats{}, domain.ErrNoStats
	}
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("load daily stats: %w", err)
	}
	return domain.DailyStats{
		UserID:    model.UserID,
		Day:       model.Day,
		Attempted: model.Attempted,
		Correct:   model.Correct,
	}, nil
}

func toStatRows(models []statRowModel) []domain.StatRow {
	rows := make([]domain.StatRow, 0, len(models))
	for _, m := range models {
		rows = append(rows, domain.StatRow{
			UserID:    m.UserID,
			Username:  m.Username,
			FirstName: m.FirstName,
			Attempted: m.Attempted,
			Correct:   m.Correct,
			Score:     m.Score,
		})
	}
	return rows
}
