package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"neetiq-service/internal/domain"
)

// StatsRepository applies one answer to all aggregate views as a single
// atomic unit: profile upsert, global stats (streak/score rules), daily
// stats and, when the record carries a chat id, group stats. Either every
// view commits or none does.
type StatsRepository interface {
	ApplyAnswer(ctx context.Context, rec domain.AnswerRecord) error
}

// UserRepository upserts user profiles and registers chats.
type UserRepository interface {
	UpsertProfile(ctx context.Context, profile domain.UserProfile) error
	RegisterChat(ctx context.Context, chat domain.Chat) error
}

// PollTracker maps outstanding poll ids to their scoring route. Track must
// refuse duplicate ids; Resolve consumes the entry so a poll can never be
// scored twice.
type PollTracker interface {
	Track(ctx context.Context, pollID string, route domain.PollRoute) error
	Resolve(ctx context.Context, pollID string) (domain.PollRoute, error)
}

// ScoringService converts answer events into durable aggregate state.
type ScoringService struct {
	stats   StatsRepository
	users   UserRepository
	tracker PollTracker
	clock   func() time.Time
	log     zerolog.Logger
}

func NewScoringService(stats StatsRepository, users UserRepository, tracker PollTracker, log zerolog.Logger) *ScoringService {
	return &ScoringService{
		stats:   stats,
		users:   users,
		tracker: tracker,
		clock:   time.Now,
		log:     log,
	}
}

// WithClock is test-only for deterministic calendar days.
func (s *ScoringService) WithClock(now func() time.Time) *ScoringService {
	s.clock = now
	return s
}

// AnswerOutcome reports how a poll answer was settled.
type AnswerOutcome struct {
	Scored  bool  `json:"scored"`
	Correct bool  `json:"correct"`
	ChatID  int64 `json:"chatId"`
}

// HandlePollAnswer resolves the poll route for an answer event and records
// the answer. Unknown or already-consumed polls are silently ignored; an
// answer for an untracked poll is unscoreable, not an error.
func (s *ScoringService) HandlePollAnswer(ctx context.Context, ev domain.AnswerEvent) (AnswerOutcome, error) {
	route, err := s.tracker.Resolve(ctx, ev.PollID)
	if errors.Is(err, domain.ErrPollNotFound) {
		s.log.Debug().Str("poll_id", ev.PollID).Msg("answer for untracked poll ignored")
		return AnswerOutcome{}, nil
	}
	if err != nil {
		return AnswerOutcome{}, err
	}

	correct := ev.ChosenOption == route.CorrectOption
	if err := s.RecordAnswer(ctx, ev.UserID, route.ChatID, correct, ev.Username, ev.FirstName); err != nil {
		return AnswerOutcome{}, err
	}
	return AnswerOutcome{Scored: true, Correct: correct, ChatID: route.ChatID}, nil
}

// RecordAnswer applies one answer to the aggregates. chatID zero skips the
// group view. Transient store failures are retried a bounded number of
// times before surfacing.
func (s *ScoringService) RecordAnswer(ctx context.Context, userID, chatID int64, correct bool, username, firstName string) error {
	rec := domain.AnswerRecord{
		UserID:    userID,
		ChatID:    chatID,
		Correct:   correct,
		Username:  username,
		FirstName: firstName,
		Day:       s.clock().Format(domain.DayFormat),
	}
	return withRetry(ctx, func() error {
		return s.stats.ApplyAnswer(ctx, rec)
	})
}

// RegisterUser upserts the profile on /start and registers non-private
// chats for broadcasts and digests.
func (s *ScoringService) RegisterUser(ctx context.Context, profile domain.UserProfile, chat domain.Chat) error {
	profile.JoinedAt = s.clock()
	if err := withRetry(ctx, func() error {
		return s.users.UpsertProfile(ctx, profile)
	}); err != nil {
		return err
	}
	if chat.ID == 0 || !chat.IsGroup() {
		return nil
	}
	chat.AddedAt = s.clock()
	return withRetry(ctx, func() error {
		return s.users.RegisterChat(ctx, chat)
	})
}
