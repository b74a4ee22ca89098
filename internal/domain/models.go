package domain

import (
	"fmt"
	"time"
)

// DayFormat is the calendar-day key used by daily stats and last-activity stamps.
const DayFormat = "2006-01-02"

// Question is a multiple-choice question with exactly one correct option.
// Questions are immutable once imported and retired permanently on delivery.
type Question struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	OptionA     string `json:"a"`
	OptionB     string `json:"b"`
	OptionC     string `json:"c"`
	OptionD     string `json:"d"`
	Correct     string `json:"correct"` // normalized marker: "1".."4" or "A".."D"
	Explanation string `json:"explanation"`
}

// Options returns the four option texts in a-d order.
func (q Question) Options() [4]string {
	return [4]string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}

// Poll builds the dispatchable poll payload for the question.
func (q Question) Poll() (PollPayload, error) {
	idx, err := ParseAnswerKey(q.Correct)
	if err != nil {
		return PollPayload{}, fmt.Errorf("question %d: %w", q.ID, err)
	}
	return PollPayload{
		Question:      q.Text,
		Options:       q.Options(),
		CorrectOption: idx,
		Explanation:   q.Explanation,
	}, nil
}

// PollPayload is what the messaging gateway needs to send one quiz poll.
type PollPayload struct {
	Question      string    `json:"question"`
	Options       [4]string `json:"options"`
	CorrectOption int       `json:"correctOption"`
	Explanation   string    `json:"explanation"`
}

// UserProfile mirrors the platform-side identity of a participant.
// Username and FirstName use "" for unknown; refreshes never overwrite a
// known value with an empty one.
type UserProfile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Chat is a registered conversation the bot participates in.
type Chat struct {
	ID      int64     `json:"id"`
	Type    string    `json:"type"` // "private", "group", "supergroup"
	Title   string    `json:"title"`
	AddedAt time.Time `json:"addedAt"`
}

// IsGroup reports whether the chat takes part in broadcasts and digests.
func (c Chat) IsGroup() bool {
	return c.Type != "private"
}

// GlobalStats is the lifetime aggregate for one user.
type GlobalStats struct {
	UserID           int64  `json:"userId"`
	Attempted        int    `json:"attempted"`
	Correct          int    `json:"correct"`
	Score            int    `json:"score"`
	CurrentStreak    int    `json:"currentStreak"`
	MaxStreak        int    `json:"maxStreak"`
	LastActivityDate string `json:"lastActivityDate"`
}

// DailyStats tracks one user's answers on one calendar day.
type DailyStats struct {
	UserID    int64  `json:"userId"`
	Day       string `json:"day"`
	Attempted int    `json:"attempted"`
	Correct   int    `json:"correct"`
}

// GroupStats is the per-chat aggregate for one user. Streaks are global only.
type GroupStats struct {
	ChatID    int64 `json:"chatId"`
	UserID    int64 `json:"userId"`
	Attempted int   `json:"attempted"`
	Correct   int   `json:"correct"`
	Score     int   `json:"score"`
}

// PollRoute ties an outstanding poll to the chat it was sent to and the
// option index that counts as correct. Routes are single-use.
type PollRoute struct {
	ChatID        int64 `json:"chatId"`
	CorrectOption int   `json:"correctOption"`
}

// AnswerEvent is a raw poll answer as reported by the messaging gateway.
type AnswerEvent struct {
	PollID       string `json:"pollId"`
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	FirstName    string `json:"firstName"`
	ChosenOption int    `json:"chosenOption"`
}

// AnswerRecord is a resolved, scoreable answer ready for the stats stores.
// ChatID zero means the answer came from a direct chat and no group
// aggregate is touched.
type AnswerRecord struct {
	UserID    int64
	ChatID    int64
	Correct   bool
	Username  string
	FirstName string
	Day       string
}

// StatRow is one stats row joined with the owning user's profile fields.
type StatRow struct {
	UserID    int64
	Username  string
	FirstName string
	Attempted int
	Correct   int
	Score     int
}

// LeaderboardRow is a display-ready leaderboard entry.
type LeaderboardRow struct {
	DisplayName string `json:"displayName"`
	Attempted   int    `json:"attempted"`
	Correct     int    `json:"correct"`
	Score       int    `json:"score"`
}

// Scope selects which aggregate a ranking query reads from.
type Scope struct {
	ChatID int64
}

// GlobalScope ranks across all users; GroupScope ranks within one chat.
func GlobalScope() Scope            { return Scope{} }
func GroupScope(chatID int64) Scope { return Scope{ChatID: chatID} }

func (s Scope) IsGlobal() bool { return s.ChatID == 0 }

// ScoreDelta returns the score contribution of one answer: +4 for a correct
// answer, -1 for a wrong one (strict NEET marking).
func ScoreDelta(correct bool) int {
	if correct {
		return 4
	}
	return -1
}

// DisplayName resolves the leaderboard label for a user: "@username" when
// known, else the first name, else a synthetic participant label. Every row
// gets a non-empty string even if the profile was never filled in.
func DisplayName(userID int64, username, firstName string) string {
	if username != "" {
		return "@" + username
	}
	if firstName != "" {
		return firstName
	}
	return fmt.Sprintf("Participant %d", userID)
}

// XP is the display-only derived score: 4 per correct minus 1 per wrong,
// floored at zero.
func XP(attempted, correct int) int {
	wrong := attempted - correct
	xp := correct*4 - wrong
	if xp < 0 {
		return 0
	}
	return xp
}

// RankTitle maps XP to the cosmetic profile title.
func RankTitle(xp int) string {
	switch {
	case xp > 500:
		return "Legendary Surgeon"
	case xp > 300:
		return "Chief Resident"
	case xp > 150:
		return "Gold Intern"
	case xp > 50:
		return "Elite Aspirant"
	default:
		return "Medical Student"
	}
}

// Overview is the admin-facing reach snapshot of the whole deployment.
type Overview struct {
	Users     int `json:"users"`
	Chats     int `json:"chats"`
	Admins    int `json:"admins"`
	Questions int `json:"questions"`
	Attempts  int `json:"attempts"`
}

// UserSummary is the full per-user stats view served for profile requests.
type UserSummary struct {
	Stats      GlobalStats `json:"stats"`
	GlobalRank int         `json:"globalRank"`
	GroupRank  int         `json:"groupRank"` // 0 when no group scope was given
	XP         int         `json:"xp"`
	RankTitle  string      `json:"rankTitle"`
}
