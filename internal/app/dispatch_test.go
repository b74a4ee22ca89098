package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"neetiq-service/internal/app"
	"neetiq-service/internal/domain"
	"neetiq-service/internal/infra/memory"
)

// fakeGateway records outbound traffic and mints sequential poll ids.
type fakeGateway struct {
	mu       sync.Mutex
	polls    []sentPoll
	messages []sentMessage
	sendErr  error
	nextID   int
}

type sentPoll struct {
	chatID  int64
	payload domain.PollPayload
}

type sentMessage struct {
	chatID int64
	text   string
}

func (g *fakeGateway) SendPoll(_ context.Context, chatID int64, poll domain.PollPayload) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.nextID++
	g.polls = append(g.polls, sentPoll{chatID: chatID, payload: poll})
	return fmt.Sprintf("poll-%d", g.nextID), nil
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

type dispatchFixture struct {
	dispatcher *app.Dispatcher
	gateway    *fakeGateway
	questions  *memory.QuestionStore
	tracker    *memory.PollTracker
	stats      *memory.StatsStore
	settings   *app.SettingsService
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	gateway := &fakeGateway{}
	questions := memory.NewQuestionStore()
	tracker := memory.NewPollTracker()
	stats := memory.NewStatsStore()
	settings := app.NewSettingsService(memory.NewSettingsStore())
	ranking := app.NewRankingService(stats)
	dispatcher := app.NewDispatcher(questions, tracker, gateway, stats, ranking, settings, zerolog.Nop())
	return &dispatchFixture{
		dispatcher: dispatcher,
		gateway:    gateway,
		questions:  questions,
		tracker:    tracker,
		stats:      stats,
		settings:   settings,
	}
}

func seedQuestions(t *testing.T, store *memory.QuestionStore, n int) {
	t.Helper()
	questions := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		questions = append(questions, domain.Question{
			Text:    fmt.Sprintf("Question %d?", i+1),
			OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
			Correct:     "3",
			Explanation: "because",
		})
	}
	if err := store.InsertBatch(context.Background(), questions); err != nil {
		t.Fatalf("seed questions: %v", err)
	}
}

func TestDispatchQuizTracksPoll(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)
	seedQuestions(t, f.questions, 1)

	if err := f.dispatcher.DispatchQuiz(ctx, -50); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.gateway.polls) != 1 || f.gateway.polls[0].chatID != -50 {
		t.Fatalf("unexpected polls: %+v", f.gateway.polls)
	}
	if !strings.HasSuffix(f.gateway.polls[0].payload.Explanation, "NEETIQBot") {
		t.Fatalf("explanation missing footer: %q", f.gateway.polls[0].payload.Explanation)
	}

	route, err := f.tracker.Resolve(ctx, "poll-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if route.ChatID != -50 || route.CorrectOption != 2 {
		t.Fatalf("unexpected route: %+v", route)
	}

	count, _ := f.questions.Count(ctx)
	if count != 0 {
		t.Fatalf("question not retired, %d left", count)
	}
}

func TestDispatchQuizEmptyBank(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)

	if err := f.dispatcher.DispatchQuiz(ctx, -50); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(f.gateway.polls) != 0 {
		t.Fatalf("no poll should go out: %+v", f.gateway.polls)
	}
	if len(f.gateway.messages) != 1 || !strings.Contains(f.gateway.messages[0].text, "empty") {
		t.Fatalf("expected empty-bank notice, got %+v", f.gateway.messages)
	}
	if _, err := f.tracker.Resolve(ctx, "poll-1"); !errors.Is(err, domain.ErrPollNotFound) {
		t.Fatalf("nothing should be tracked, got %v", err)
	}
}

func TestDispatchQuizBurnsQuestionOnFailedSend(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)
	seedQuestions(t, f.questions, 1)
	f.gateway.sendErr = errors.New("relay gone")

	if err := f.dispatcher.DispatchQuiz(ctx, -50); err == nil {
		t.Fatal("expected send failure to surface")
	}
	count, _ := f.questions.Count(ctx)
	if count != 0 {
		t.Fatalf("question must be retired before dispatch, %d left", count)
	}
}

func TestBroadcastQuizRespectsToggle(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)
	seedQuestions(t, f.questions, 1)
	if err := f.stats.RegisterChat(ctx, domain.Chat{ID: -1, Type: "group"}); err != nil {
		t.Fatalf("register chat: %v", err)
	}

	if err := f.dispatcher.BroadcastQuiz(ctx); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(f.gateway.polls) != 0 {
		t.Fatalf("disabled autoquiz must not send: %+v", f.gateway.polls)
	}

	count, _ := f.questions.Count(ctx)
	if count != 1 {
		t.Fatalf("disabled autoquiz must not burn questions, %d left", count)
	}
}

func TestBroadcastQuizSendsOneQuestionToAllGroups(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)
	seedQuestions(t, f.questions, 5)
	if err := f.settings.Set(ctx, app.SettingAutoquizEnabled, "1"); err != nil {
		t.Fatalf("enable autoquiz: %v", err)
	}
	for _, chat := range []domain.Chat{
		{ID: -1, Type: "group"},
		{ID: -2, Type: "supergroup"},
		{ID: 3, Type: "private"},
	} {
		if err := f.stats.RegisterChat(ctx, chat); err != nil {
			t.Fatalf("register chat: %v", err)
		}
	}

	if err := f.dispatcher.BroadcastQuiz(ctx); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(f.gateway.polls) != 2 {
		t.Fatalf("expected polls to the two groups only, got %+v", f.gateway.polls)
	}
	if f.gateway.polls[0].payload.Question != f.gateway.polls[1].payload.Question {
		t.Fatal("broadcast must reuse one drawn question")
	}

	// Exactly one question was drawn for the whole round.
	count, _ := f.questions.Count(ctx)
	if count != 4 {
		t.Fatalf("expected 4 questions left, got %d", count)
	}
}

func TestDailyDigestRendersBoards(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(t)
	if err := f.stats.RegisterChat(ctx, domain.Chat{ID: -1, Type: "group", Title: "NEET 2027"}); err != nil {
		t.Fatalf("register chat: %v", err)
	}
	rec := domain.AnswerRecord{UserID: 1, ChatID: -1, Correct: true, Username: "asha", Day: "2026-08-26"}
	if err := f.stats.ApplyAnswer(ctx, rec); err != nil {
		t.Fatalf("apply answer: %v", err)
	}

	if err := f.dispatcher.DailyDigest(ctx); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if len(f.gateway.messages) != 1 {
		t.Fatalf("expected one digest message, got %+v", f.gateway.messages)
	}
	text := f.gateway.messages[0].text
	for _, want := range []string{"DAILY LEADERBOARD", "@asha", "NEET 2027", "🥇"} {
		if !strings.Contains(text, want) {
			t.Fatalf("digest missing %q:\n%s", want, text)
		}
	}
}
