package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"

	"neetiq-service/internal/domain"
)

// QuestionRepo stores the question bank. Draws delete the served row in the
// same statement, so a question can never be handed out twice even with
// several dispatchers racing. Bulk imports stream through pgx COPY when a
// pool is available and fall back to a bun insert otherwise.
type QuestionRepo struct {
	db   *bun.DB
	pool *pgxpool.Pool
}

func NewQuestionRepo(db *bun.DB, pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{db: db, pool: pool}
}

func (r *QuestionRepo) DrawAndRetire(ctx context.Context) (domain.Question, error) {
	var model questionModel
	err := r.db.NewRaw(`
		DELETE FROM questions
		WHERE id = (
			SELECT id FROM questions
			ORDER BY random()
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, question, a, b, c, d, correct, explanation
	`).Scan(ctx, &model)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionBankEmpty
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("draw question: %w", err)
	}
	return domain.Question{
		ID:          model.ID,
		Text:        model.Question,
		OptionA:     model.A,
		OptionB:     model.B,
		OptionC:     model.C,
		OptionD:     model.D,
		Correct:     model.Correct,
		Explanation: model.Explanation,
	}, nil
}

func (r *QuestionRepo) InsertBatch(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if r.pool != nil {
		_, err := r.pool.CopyFrom(ctx,
			pgx.Identifier{"questions"},
			[]string{"question", "a", "b", "c", "d", "correct", "explanation"},
			pgx.CopyFromSlice(len(questions), func(i int) ([]interface{}, error) {
				q := questions[i]
				return []interface{}{q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Correct, q.Explanation}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy questions: %w", err)
		}
		return nil
	}

	models := make([]questionModel, 0, len(questions))
	for _, q := range questions {
		models = append(models, questionModel{
			Question:    q.Text,
			A:           q.OptionA,
			B:           q.OptionB,
			C:           q.OptionC,
			D:           q.OptionD,
			Correct:     q.Correct,
			Explanation: q.Explanation,
		})
	}
	if _, err := r.db.NewInsert().Model(&models).Exec(ctx); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

func (r *QuestionRepo) Count(ctx context.Context) (int, error) {
	count, err := r.db.NewSelect().Model((*questionModel)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return count, nil
}

func (r *QuestionRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return nil
}
