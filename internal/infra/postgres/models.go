package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	UserID    int64     `bun:"user_id,pk"`
	Username  string    `bun:"username,notnull,default:''"`
	FirstName string    `bun:"first_name,notnull,default:''"`
	JoinedAt  time.Time `bun:"joined_at,nullzero,notnull,default:current_timestamp"`
}

type chatModel struct {
	bun.BaseModel `bun:"table:chats,alias:c"`

	ChatID  int64     `bun:"chat_id,pk"`
	Type    string    `bun:"type,notnull"`
	Title   string    `bun:"title,notnull,default:''"`
	AddedAt time.Time `bun:"added_at,nullzero,notnull,default:current_timestamp"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID          int64  `bun:"id,pk,autoincrement"`
	Question    string `bun:"question,notnull"`
	A           string `bun:"a,notnull"`
	B           string `bun:"b,notnull"`
	C           string `bun:"c,notnull"`
	D           string `bun:"d,notnull"`
	Correct     string `bun:"correct,notnull"`
	Explanation string `bun:"explanation,notnull,default:''"`
}

type statsModel struct {
	bun.BaseModel `bun:"table:stats,alias:s"`

	UserID           int64  `bun:"user_id,pk"`
	Attempted        int    `bun:"attempted,notnull,default:0"`
	Correct          int    `bun:"correct,notnull,default:0"`
	Score            int    `bun:"score,notnull,default:0"`
	CurrentStreak    int    `bun:"current_streak,notnull,default:0"`
	MaxStreak        int    `bun:"max_streak,notnull,default:0"`
	LastActivityDate string `bun:"last_activity_date,notnull,default:''"`
}

type dailyStatsModel struct {
	bun.BaseModel `bun:"table:daily_stats,alias:ds"`

	UserID    int64  `bun:"user_id,pk"`
	Day       string `bun:"day,pk"`
	Attempted int    `bun:"attempted,notnull,default:0"`
	Correct   int    `bun:"correct,notnull,default:0"`
}

// statRowModel is the scan target for leaderboard queries joining stats
// with user profiles.
type statRowModel struct {
	UserID    int64  `bun:"user_id"`
	Username  string `bun:"username"`
	FirstName string `bun:"first_name"`
	Attempted int    `bun:"attempted"`
	Correct   int    `bun:"correct"`
	Score     int    `bun:"score"`
}
