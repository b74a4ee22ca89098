package memory

import (
	"context"
	"sort"
	"sync"

	"neetiq-service/internal/domain"
)

type dailyKey struct {
	userID int64
	day    string
}

type groupKey struct {
	chatID int64
	userID int64
}

// StatsStore keeps every aggregate view in process memory. One mutex guards
// all views so ApplyAnswer stays atomic under concurrent answers, matching
// the transactional contract of the postgres store.
type StatsStore struct {
	mu     sync.Mutex
	users  map[int64]domain.UserProfile
	chats  map[int64]domain.Chat
	global map[int64]*domain.GlobalStats
	daily  map[dailyKey]*domain.DailyStats
	group  map[groupKey]*domain.GroupStats
}

func NewStatsStore() *StatsStore {
	return &StatsStore{
		users:  make(map[int64]domain.UserProfile),
		chats:  make(map[int64]domain.Chat),
		global: make(map[int64]*domain.GlobalStats),
		daily:  make(map[dailyKey]*domain.DailyStats),
		group:  make(map[groupKey]*domain.GroupStats),
	}
}

func (s *StatsStore) ApplyAnswer(_ context.Context, rec domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertProfileLocked(domain.UserProfile{
		ID:        rec.UserID,
		Username:  rec.Username,
		FirstName: rec.FirstName,
	})

	stats, ok := s.global[rec.UserID]
	if !ok {
		stats = &domain.GlobalStats{UserID: rec.UserID}
		s.global[rec.UserID] = stats
	}
	stats.Attempted++
	stats.Score += domain.ScoreDelta(rec.Correct)
	if rec.Correct {
		stats.Correct++
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.MaxStreak {
			stats.MaxStreak = stats.CurrentStreak
		}
	} else {
		stats.CurrentStreak = 0
	}
	stats.LastActivityDate = rec.Day

	dk := dailyKey{userID: rec.UserID, day: rec.Day}
	day, ok := s.daily[dk]
	if !ok {
		day = &domain.DailyStats{UserID: rec.UserID, Day: rec.Day}
		s.daily[dk] = day
	}
	day.Attempted++
	if rec.Correct {
		day.Correct++
	}

	if rec.ChatID == 0 {
		return nil
	}
	gk := groupKey{chatID: rec.ChatID, userID: rec.UserID}
	grp, ok := s.group[gk]
	if !ok {
		grp = &domain.GroupStats{ChatID: rec.ChatID, UserID: rec.UserID}
		s.group[gk] = grp
	}
	grp.Attempted++
	grp.Score += domain.ScoreDelta(rec.Correct)
	if rec.Correct {
		grp.Correct++
	}
	return nil
}

func (s *StatsStore) UpsertProfile(_ context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertProfileLocked(profile)
	return nil
}

// upsertProfileLocked refreshes name fields only with non-empty incoming
// values, keeping whatever was known before.
func (s *StatsStore) upsertProfileLocked(profile domain.UserProfile) {
	existing, ok := s.users[profile.ID]
	if !ok {
		s.users[profile.ID] = profile
		return
	}
	if profile.Username != "" {
		existing.Username = profile.Username
	}
	if profile.FirstName != "" {
		existing.FirstName = profile.FirstName
	}
	s.users[profile.ID] = existing
}

func (s *StatsStore) RegisterChat(_ context.Context, chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chat.ID]; !ok {
		s.chats[chat.ID] = chat
	}
	return nil
}

func (s *StatsStore) GroupChats(_ context.Context) ([]domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chats := make([]domain.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		if chat.IsGroup() {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

func (s *StatsStore) TopGlobal(_ context.Context, limit int) ([]domain.StatRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]domain.StatRow, 0, len(s.global))
	for _, stats := range s.global {
		rows = append(rows, s.statRowLocked(stats.UserID, stats.Attempted, stats.Correct, stats.Score))
	}
	return sortAndTruncate(rows, limit), nil
}

func (s *StatsStore) TopGroup(_ context.Context, chatID int64, limit int) ([]domain.StatRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []domain.StatRow
	for key, grp := range s.group {
		if key.chatID == chatID {
			rows = append(rows, s.statRowLocked(grp.UserID, grp.Attempted, grp.Correct, grp.Score))
		}
	}
	return sortAndTruncate(rows, limit), nil
}

func (s *StatsStore) GlobalRank(_ context.Context, score int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rank := 1
	for _, stats := range s.global {
		if stats.Score > score {
			rank++
		}
	}
	return rank, nil
}

func (s *StatsStore) GroupRank(_ context.Context, chatID int64, score int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rank := 1
	for key, grp := range s.group {
		if key.chatID == chatID && grp.Score > score {
			rank++
		}
	}
	return rank, nil
}

func (s *StatsStore) GlobalStats(_ context.Context, userID int64) (domain.GlobalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.global[userID]
	if !ok {
		return domain.GlobalStats{}, domain.ErrNoStats
	}
	return *stats, nil
}

func (s *StatsStore) DailyStats(_ context.Context, userID int64, day string) (domain.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	daily, ok := s.daily[dailyKey{userID: userID, day: day}]
	if !ok {
		return domain.DailyStats{}, domain.ErrNoStats
	}
	return *daily, nil
}

func (s *StatsStore) CountUsers(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

func (s *StatsStore) CountChats(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats), nil
}

func (s *StatsStore) TotalAttempts(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, stats := range s.global {
		total += stats.Attempted
	}
	return total, nil
}

func (s *StatsStore) statRowLocked(userID int64, attempted, correct, score int) domain.StatRow {
	profile := s.users[userID]
	return domain.StatRow{
		UserID:    userID,
		Username:  profile.Username,
		FirstName: profile.FirstName,
		Attempted: attempted,
		Correct:   correct,
		Score:     score,
	}
}

// sortAndTruncate orders rows by score descending, user id ascending among
// equal scores, then applies the caller's limit.
func sortAndTruncate(rows []domain.StatRow, limit int) []domain.StatRow {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
