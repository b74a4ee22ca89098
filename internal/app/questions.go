package app

import (
	"context"
	"strings"

	"neetiq-service/internal/domain"
)

// QuestionRepository holds the pool of unused questions. DrawAndRetire
// removes the served question in the same operation so the store never
// serves the same question twice.
type QuestionRepository interface {
	DrawAndRetire(ctx context.Context) (domain.Question, error)
	InsertBatch(ctx context.Context, questions []domain.Question) error
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

// QuestionService manages the question bank: bulk import from admin text,
// pool size reporting and owner-level wipes.
type QuestionService struct {
	repo   QuestionRepository
	admins *AdminService
}

func NewQuestionService(repo QuestionRepository, admins *AdminService) *QuestionService {
	return &QuestionService{repo: repo, admins: admins}
}

// ImportSummary reports how an import run went. Skipped blocks are
// malformed or carry an invalid answer marker; they never abort the run.
type ImportSummary struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Import parses raw question text and stores the valid blocks. Blocks are
// separated by blank lines; each needs at least seven non-empty lines:
// question text (possibly multi-line), options a-d, the correct marker and
// an explanation, in that order from the bottom.
func (s *QuestionService) Import(ctx context.Context, callerID int64, raw string) (ImportSummary, error) {
	if err := s.admins.RequireAdmin(ctx, callerID); err != nil {
		return ImportSummary{}, err
	}

	questions, skipped := ParseQuestionBlocks(raw)
	if len(questions) > 0 {
		if err := withRetry(ctx, func() error {
			return s.repo.InsertBatch(ctx, questions)
		}); err != nil {
			return ImportSummary{}, err
		}
	}
	return ImportSummary{Added: len(questions), Skipped: skipped}, nil
}

func (s *QuestionService) Count(ctx context.Context, callerID int64) (int, error) {
	if err := s.admins.RequireAdmin(ctx, callerID); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx)
}

func (s *QuestionService) DeleteAll(ctx context.Context, callerID int64) error {
	if err := s.admins.requireOwner(callerID); err != nil {
		return err
	}
	return s.repo.DeleteAll(ctx)
}

// ParseQuestionBlocks splits raw import text into questions. Returns the
// parsed questions and the count of skipped blocks.
func ParseQuestionBlocks(raw string) ([]domain.Question, int) {
	var (
		questions []domain.Question
		skipped   int
	)
	for _, block := range strings.Split(raw, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		q, ok := parseQuestionBlock(block)
		if !ok {
			skipped++
			continue
		}
		questions = append(questions, q)
	}
	return questions, skipped
}

func parseQuestionBlock(block string) (domain.Question, bool) {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) < 7 {
		return domain.Question{}, false
	}

	n := len(lines)
	correct := strings.ToUpper(strings.TrimSpace(lines[n-2]))
	if _, err := domain.ParseAnswerKey(correct); err != nil {
		return domain.Question{}, false
	}

	return domain.Question{
		Text:        strings.Join(lines[:n-6], "\n"),
		OptionA:     lines[n-6],
		OptionB:     lines[n-5],
		OptionC:     lines[n-4],
		OptionD:     lines[n-3],
		Correct:     correct,
		Explanation: lines[n-1],
	}, true
}
