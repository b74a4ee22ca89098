package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"neetiq-service/internal/domain"
)

// QuestionStore keeps the question pool in memory. Draws pick uniformly at
// random and retire the question in the same critical section.
type QuestionStore struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	nextID    int64
	questions []domain.Question
}

func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID: 1,
	}
}

func (s *QuestionStore) DrawAndRetire(_ context.Context) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return domain.Question{}, domain.ErrQuestionBankEmpty
	}
	idx := s.rnd.Intn(len(s.questions))
	question := s.questions[idx]
	s.questions[idx] = s.questions[len(s.questions)-1]
	s.questions = s.questions[:len(s.questions)-1]
	return question, nil
}

func (s *QuestionStore) InsertBatch(_ context.Context, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		q.ID = s.nextID
		s.nextID++
		s.questions = append(s.questions, q)
	}
	return nil
}

func (s *QuestionStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions), nil
}

func (s *QuestionStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = nil
	return nil
}
