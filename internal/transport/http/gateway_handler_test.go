package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"neetiq-service/internal/app"
	"neetiq-service/internal/domain"
	"neetiq-service/internal/infra/memory"
)

const testOwnerID int64 = 1000

type gatewayFixture struct {
	server  *httptest.Server
	relay   *Relay
	stats   *memory.StatsStore
	handler *GatewayHandler
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	stats := memory.NewStatsStore()
	questions := memory.NewQuestionStore()
	tracker := memory.NewPollTracker()
	admins := app.NewAdminService(memory.NewAdminStore(), testOwnerID)
	settings := app.NewSettingsService(memory.NewSettingsStore())
	ranking := app.NewRankingService(stats)
	scoring := app.NewScoringService(stats, stats, tracker, zerolog.Nop())
	questionSvc := app.NewQuestionService(questions, admins)
	overview := app.NewOverviewService(stats, questions, admins)

	relay := NewRelay(2 * time.Second)
	dispatcher := app.NewDispatcher(questions, tracker, relay, stats, ranking, settings, zerolog.Nop())
	handler := NewGatewayHandler(relay, scoring, ranking, questionSvc, admins, settings, overview, dispatcher, zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/gateway", handler.ServeGateway)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	seed := []domain.Question{{
		Text:        "Largest gland in the human body?",
		OptionA:     "Pancreas",
		OptionB:     "Liver",
		OptionC:     "Thyroid",
		OptionD:     "Pituitary",
		Correct:     "2",
		Explanation: "The liver weighs about 1.5 kg.",
	}}
	if err := questions.InsertBatch(context.Background(), seed); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	return &gatewayFixture{server: server, relay: relay, stats: stats, handler: handler}
}

func (f *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + f.server.URL[len("http"):] + "/gateway"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readAnyFrame(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame.Type, frame.Payload
}

func readFrame(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	typ, payload := readAnyFrame(t, conn)
	if typ != expect {
		t.Fatalf("expected %s frame, got %s (%s)", expect, typ, payload)
	}
	return payload
}

func TestGatewayDispatchAndAnswerFlow(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	writeFrame(t, conn, "dispatch", map[string]any{"chatId": -50})

	var poll pollFrame
	if err := json.Unmarshal(readFrame(t, conn, "poll"), &poll); err != nil {
		t.Fatalf("decode poll: %v", err)
	}
	if poll.ChatID != -50 || poll.CorrectOption != 1 {
		t.Fatalf("unexpected poll: %+v", poll)
	}

	writeFrame(t, conn, "pollSent", map[string]any{"ref": poll.Ref, "pollId": "tg-poll-1"})

	// Tracking completes just after the ack lands; give the dispatch
	// goroutine a moment before answering, as a real participant would.
	time.Sleep(200 * time.Millisecond)
	writeFrame(t, conn, "answer", map[string]any{
		"pollId":       "tg-poll-1",
		"userId":       1,
		"username":     "asha",
		"chosenOption": poll.CorrectOption,
	})

	// The answer is handled asynchronously; poll the stats view until the
	// score lands. Early requests may race the answer and report no stats.
	deadline := time.Now().Add(5 * time.Second)
	for {
		writeFrame(t, conn, "stats", map[string]any{"userId": 1})
		typ, payload := readAnyFrame(t, conn)
		if typ == "stats" {
			var stats statsResponse
			if err := json.Unmarshal(payload, &stats); err != nil {
				t.Fatalf("decode stats: %v", err)
			}
			if stats.Summary.Stats.Score == 4 && stats.Summary.Stats.CurrentStreak == 1 {
				if stats.Today.Attempted != 1 {
					t.Fatalf("daily view missed the answer: %+v", stats.Today)
				}
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("score never landed: last frame %s %s", typ, payload)
		}
		time.Sleep(20 * time.Millisecond)
	}

	writeFrame(t, conn, "leaderboard", map[string]any{"chatId": -50})
	var board leaderboardResponse
	if err := json.Unmarshal(readFrame(t, conn, "leaderboard"), &board); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(board.Rows) != 1 || board.Rows[0].DisplayName != "@asha" || board.Rows[0].Score != 4 {
		t.Fatalf("unexpected board: %+v", board.Rows)
	}
}

func TestGatewayStartRegistersAndWelcomes(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	writeFrame(t, conn, "start", map[string]any{
		"user": map[string]any{"id": 1, "username": "asha", "firstName": "Asha"},
		"chat": map[string]any{"id": -9, "type": "group", "title": "NEET 2027"},
	})

	var msg messageFrame
	if err := json.Unmarshal(readFrame(t, conn, "message"), &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.ChatID != -9 {
		t.Fatalf("welcome went to chat %d", msg.ChatID)
	}

	chats, err := f.stats.GroupChats(context.Background())
	if err != nil || len(chats) != 1 || chats[0].ID != -9 {
		t.Fatalf("chat not registered: %+v %v", chats, err)
	}
}

func TestGatewayAdminGating(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	writeFrame(t, conn, "import", map[string]any{"callerId": 42, "text": "whatever"})

	var fail errorPayload
	if err := json.Unmarshal(readFrame(t, conn, "error"), &fail); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if fail.Op != "import" || fail.Message != "you are not allowed to do that" {
		t.Fatalf("unexpected error frame: %+v", fail)
	}

	block := "Which bone is the longest?\nFemur\nTibia\nHumerus\nFibula\n1\nThe femur spans hip to knee."
	writeFrame(t, conn, "import", map[string]any{"callerId": testOwnerID, "text": block})

	var summary importResponse
	if err := json.Unmarshal(readFrame(t, conn, "importResult"), &summary); err != nil {
		t.Fatalf("decode import result: %v", err)
	}
	if summary.Added != 1 || summary.Skipped != 0 {
		t.Fatalf("unexpected import summary: %+v", summary)
	}
}

func TestGatewaySetSettingRoundTrip(t *testing.T) {
	f := newGatewayFixture(t)
	conn := f.dial(t)

	writeFrame(t, conn, "setSetting", map[string]any{
		"callerId": testOwnerID,
		"key":      app.SettingAutoquizInterval,
		"value":    "nonsense",
	})
	readFrame(t, conn, "error")

	writeFrame(t, conn, "setSetting", map[string]any{
		"callerId": testOwnerID,
		"key":      app.SettingAutoquizInterval,
		"value":    "15",
	})
	var result resultPayload
	if err := json.Unmarshal(readFrame(t, conn, "result"), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.OK || result.Op != "setSetting" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRelayUnavailableWithoutConnection(t *testing.T) {
	relay := NewRelay(time.Second)
	_, err := relay.SendPoll(context.Background(), -1, domain.PollPayload{})
	if !errors.Is(err, domain.ErrRelayUnavailable) {
		t.Fatalf("expected ErrRelayUnavailable, got %v", err)
	}
	if err := relay.SendMessage(context.Background(), -1, "hi"); !errors.Is(err, domain.ErrRelayUnavailable) {
		t.Fatalf("expected ErrRelayUnavailable, got %v", err)
	}
}

func TestRelaySendPollTimesOutWithoutAck(t *testing.T) {
	relay := NewRelay(50 * time.Millisecond)
	relay.attach(make(chan outboundFrame, 1))

	start := time.Now()
	_, err := relay.SendPoll(context.Background(), -1, domain.PollPayload{})
	if !errors.Is(err, domain.ErrRelayUnavailable) {
		t.Fatalf("expected ErrRelayUnavailable, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout took too long")
	}
}
