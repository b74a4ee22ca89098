package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"neetiq-service/internal/domain"
)

// UserRepo maintains the user profile and chat registries.
type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) UpsertProfile(ctx context.Context, profile domain.UserProfile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = COALESCE(NULLIF(EXCLUDED.username, ''), users.username),
			first_name = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name)
	`, profile.ID, profile.Username, profile.FirstName, profile.JoinedAt)
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", profile.ID, err)
	}
	return nil
}

func (r *UserRepo) RegisterChat(ctx context.Context, chat domain.Chat) error {
	model := chatModel{
		ChatID:  chat.ID,
		Type:    chat.Type,
		Title:   chat.Title,
		AddedAt: chat.AddedAt,
	}
	_, err := r.db.NewInsert().Model(&model).On("CONFLICT (chat_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("register chat %d: %w", chat.ID, err)
	}
	return nil
}

func (r *UserRepo) GroupChats(ctx context.Context) ([]domain.Chat, error) {
	var models []chatModel
	err := r.db.NewSelect().Model(&models).Where("type != ?", "private").Order("chat_id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list group chats: %w", err)
	}
	chats := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		chats = append(chats, domain.Chat{
			ID:      m.ChatID,
			Type:    m.Type,
			Title:   m.Title,
			AddedAt: m.AddedAt,
		})
	}
	return chats, nil
}
