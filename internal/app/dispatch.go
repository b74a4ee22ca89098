package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"neetiq-service/internal/domain"
)

const emptyBankNotice = "📭 Question bank is empty! All questions have been used. Upload new ones with an import."

// broadcastParallelism bounds the concurrent poll sends during a fan-out so
// a large chat list cannot flood the messaging platform.
const broadcastParallelism = 8

// Gateway is the outbound port to the messaging platform. SendPoll returns
// the platform-assigned poll id needed to track answers.
type Gateway interface {
	SendPoll(ctx context.Context, chatID int64, poll domain.PollPayload) (string, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// ChatDirectory lists the registered chats eligible for broadcasts.
type ChatDirectory interface {
	GroupChats(ctx context.Context) ([]domain.Chat, error)
}

// Dispatcher draws questions and moves them out through the gateway,
// wiring each dispatched poll into the tracker so answers can be scored.
type Dispatcher struct {
	questions QuestionRepository
	tracker   PollTracker
	gateway   Gateway
	chats     ChatDirectory
	ranking   *RankingService
	settings  *SettingsService
	log       zerolog.Logger
}

func NewDispatcher(
	questions QuestionRepository,
	tracker PollTracker,
	gateway Gateway,
	chats ChatDirectory,
	ranking *RankingService,
	settings *SettingsService,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		questions: questions,
		tracker:   tracker,
		gateway:   gateway,
		chats:     chats,
		ranking:   ranking,
		settings:  settings,
		log:       log,
	}
}

// DispatchQuiz draws one question, retires it, sends it to the chat and
// tracks the resulting poll. An exhausted bank produces a notice instead of
// a poll and never creates a tracking entry. The question is retired before
// dispatch: a failed send burns it rather than risking a duplicate serve.
func (d *Dispatcher) DispatchQuiz(ctx context.Context, chatID int64) error {
	question, err := d.drawQuestion(ctx)
	if errors.Is(err, domain.ErrQuestionBankEmpty) {
		return d.gateway.SendMessage(ctx, chatID, emptyBankNotice)
	}
	if err != nil {
		return err
	}

	payload, err := d.buildPayload(ctx, question)
	if err != nil {
		return err
	}
	return d.sendAndTrack(ctx, chatID, payload)
}

// BroadcastQuiz sends one shared question to every registered group chat.
// Triggered by the autoquiz scheduler; a disabled setting or an empty bank
// both end the run quietly.
func (d *Dispatcher) BroadcastQuiz(ctx context.Context) error {
	enabled, err := d.settings.AutoquizEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	question, err := d.drawQuestion(ctx)
	if errors.Is(err, domain.ErrQuestionBankEmpty) {
		d.log.Info().Msg("autoquiz skipped: question bank is empty")
		return nil
	}
	if err != nil {
		return err
	}

	payload, err := d.buildPayload(ctx, question)
	if err != nil {
		return err
	}

	chats, err := d.chats.GroupChats(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(broadcastParallelism)
	for _, chat := range chats {
		chatID := chat.ID
		g.Go(func() error {
			// One unreachable chat must not sink the whole round.
			if err := d.sendAndTrack(gctx, chatID, payload); err != nil {
				d.log.Warn().Err(err).Int64("chat_id", chatID).Msg("broadcast poll failed")
			}
			return nil
		})
	}
	return g.Wait()
}

// DailyDigest renders the global top ten plus each group's own top ten and
// pushes the combined report to every registered group chat.
func (d *Dispatcher) DailyDigest(ctx context.Context) error {
	globalRows, err := d.ranking.Leaderboard(ctx, domain.GlobalScope(), 10)
	if err != nil {
		return err
	}
	globalBoard := renderBoard("🌍 Global Top 10 Performers", globalRows)

	chats, err := d.chats.GroupChats(ctx)
	if err != nil {
		return err
	}

	for _, chat := range chats {
		groupRows, err := d.ranking.Leaderboard(ctx, domain.GroupScope(chat.ID), 10)
		if err != nil {
			d.log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("digest leaderboard query failed")
			continue
		}
		title := chat.Title
		if title == "" {
			title = "This Group"
		}
		report := "🌙 DAILY LEADERBOARD\n━━━━━━━━━━━━━━━━━━\n" +
			globalBoard +
			"━━━━━━━━━━━━━━━━━━\n" +
			renderBoard(fmt.Sprintf("👥 %s Top 10", title), groupRows) +
			"━━━━━━━━━━━━━━━━━━\n" +
			"Great effort today, champs! 🚀 Keep the momentum going!"
		report, err = d.settings.ApplyFooter(ctx, report)
		if err != nil {
			return err
		}
		if err := d.gateway.SendMessage(ctx, chat.ID, report); err != nil {
			d.log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("digest delivery failed")
		}
	}
	return nil
}

// buildPayload turns a drawn question into its poll payload with the
// configured footer stamped onto the explanation.
func (d *Dispatcher) buildPayload(ctx context.Context, question domain.Question) (domain.PollPayload, error) {
	payload, err := question.Poll()
	if err != nil {
		return domain.PollPayload{}, err
	}
	if payload.Explanation != "" {
		payload.Explanation, err = d.settings.ApplyFooter(ctx, payload.Explanation)
		if err != nil {
			return domain.PollPayload{}, err
		}
	}
	return payload, nil
}

func (d *Dispatcher) drawQuestion(ctx context.Context) (domain.Question, error) {
	var question domain.Question
	err := withRetry(ctx, func() error {
		var err error
		question, err = d.questions.DrawAndRetire(ctx)
		return err
	})
	return question, err
}

func (d *Dispatcher) sendAndTrack(ctx context.Context, chatID int64, payload domain.PollPayload) error {
	pollID, err := d.gateway.SendPoll(ctx, chatID, payload)
	if err != nil {
		return fmt.Errorf("send poll to chat %d: %w", chatID, err)
	}
	return d.tracker.Track(ctx, pollID, domain.PollRoute{
		ChatID:        chatID,
		CorrectOption: payload.CorrectOption,
	})
}

// renderBoard formats leaderboard rows with medals for the podium.
func renderBoard(title string, rows []domain.LeaderboardRow) string {
	text := title + "\n"
	if len(rows) == 0 {
		return text + "No participants yet.\n"
	}
	for i, row := range rows {
		text += fmt.Sprintf("%s %s - %d pts!\n", badge(i+1), row.DisplayName, row.Score)
	}
	return text
}

func badge(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("#%d", rank)
	}
}
