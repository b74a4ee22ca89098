package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"neetiq-service/internal/app"
	"neetiq-service/internal/domain"
)

// GatewayHandler accepts the websocket connection from the chat-platform
// relay and translates its event frames into use-case calls. Poll answers,
// commands and delivery acks all arrive on this one connection; outbound
// polls and messages leave through the Relay attached to it.
type GatewayHandler struct {
	relay      *Relay
	scoring    *app.ScoringService
	ranking    *app.RankingService
	questions  *app.QuestionService
	admins     *app.AdminService
	settings   *app.SettingsService
	overview   *app.OverviewService
	dispatcher *app.Dispatcher
	upgrader   websocket.Upgrader
	clock      func() time.Time
	log        zerolog.Logger
}

func NewGatewayHandler(
	relay *Relay,
	scoring *app.ScoringService,
	ranking *app.RankingService,
	questions *app.QuestionService,
	admins *app.AdminService,
	settings *app.SettingsService,
	overview *app.OverviewService,
	dispatcher *app.Dispatcher,
	log zerolog.Logger,
) *GatewayHandler {
	return &GatewayHandler{
		relay:      relay,
		scoring:    scoring,
		ranking:    ranking,
		questions:  questions,
		admins:     admins,
		settings:   settings,
		overview:   overview,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clock: time.Now,
		log:   log,
	}
}

// WithClock overrides the day-boundary clock for tests.
func (h *GatewayHandler) WithClock(now func() time.Time) *GatewayHandler {
	h.clock = now
	return h
}

type inboundFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type pollSentPayload struct {
	Ref    uint64 `json:"ref"`
	PollID string `json:"pollId"`
}

type startPayload struct {
	User domain.UserProfile `json:"user"`
	Chat domain.Chat        `json:"chat"`
}

type dispatchPayload struct {
	ChatID int64 `json:"chatId"`
}

type broadcastPayload struct {
	CallerID int64 `json:"callerId"`
}

type leaderboardRequest struct {
	ChatID int64 `json:"chatId"` // 0 requests the global board
	Limit  int   `json:"limit"`
}

type leaderboardResponse struct {
	ChatID int64                   `json:"chatId"`
	Rows   []domain.LeaderboardRow `json:"rows"`
}

type statsRequest struct {
	UserID int64 `json:"userId"`
	ChatID int64 `json:"chatId"`
}

type statsResponse struct {
	UserID  int64              `json:"userId"`
	Summary domain.UserSummary `json:"summary"`
	Today   domain.DailyStats  `json:"today"`
}

type importRequest struct {
	CallerID int64  `json:"callerId"`
	Text     string `json:"text"`
}

type importResponse struct {
	CallerID int64 `json:"callerId"`
	Added    int   `json:"added"`
	Skipped  int   `json:"skipped"`
}

type overviewRequest struct {
	CallerID int64 `json:"callerId"`
}

type overviewResponse struct {
	CallerID int64           `json:"callerId"`
	Overview domain.Overview `json:"overview"`
}

type setSettingRequest struct {
	CallerID int64  `json:"callerId"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

type adminRequest struct {
	CallerID int64 `json:"callerId"`
	UserID   int64 `json:"userId"`
}

type resultPayload struct {
	Op string `json:"op"`
	OK bool   `json:"ok"`
}

type errorPayload struct {
	Op      string `json:"op"`
	Message string `json:"message"`
}

// session owns one relay connection's outbound queue. enqueue never blocks
// past connection teardown and never races the writer goroutine.
type session struct {
	send   chan outboundFrame
	closed chan struct{}
}

func (s *session) enqueue(frame outboundFrame) {
	select {
	case s.send <- frame:
	case <-s.closed:
	}
}

// ServeGateway upgrades the relay connection and pumps frames until it
// drops. Delivery acks are settled inline so SendPoll callers unblock even
// while a slow command handler is running; everything else is handled on
// its own goroutine because dispatch commands wait on those very acks.
func (h *GatewayHandler) ServeGateway(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("gateway upgrade failed")
		return
	}
	defer conn.Close()

	sess := &session{
		send:   make(chan outboundFrame, 64),
		closed: make(chan struct{}),
	}
	h.relay.attach(sess.send)
	h.log.Info().Str("remote", r.RemoteAddr).Msg("relay connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range sess.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn().Err(err).Msg("gateway write failed")
				return
			}
		}
	}()

	var handlers sync.WaitGroup
	for {
		var inbound inboundFrame
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type == "pollSent" {
			var ack pollSentPayload
			if err := json.Unmarshal(inbound.Payload, &ack); err == nil {
				h.relay.ack(ack.Ref, ack.PollID)
			}
			continue
		}
		handlers.Add(1)
		go func(frame inboundFrame) {
			defer handlers.Done()
			h.handle(r.Context(), sess, frame)
		}(inbound)
	}

	h.relay.detach(sess.send)
	close(sess.closed)
	handlers.Wait()
	close(sess.send)
	<-writerDone
	h.log.Info().Str("remote", r.RemoteAddr).Msg("relay disconnected")
}

func (h *GatewayHandler) handle(ctx context.Context, sess *session, frame inboundFrame) {
	var err error
	switch frame.Type {
	case "answer":
		err = h.onAnswer(ctx, frame.Payload)
	case "start":
		err = h.onStart(ctx, sess, frame.Payload)
	case "dispatch":
		err = h.onDispatch(ctx, frame.Payload)
	case "broadcast":
		err = h.onBroadcast(ctx, frame.Payload)
	case "leaderboard":
		err = h.onLeaderboard(ctx, sess, frame.Payload)
	case "stats":
		err = h.onStats(ctx, sess, frame.Payload)
	case "import":
		err = h.onImport(ctx, sess, frame.Payload)
	case "botstats":
		err = h.onOverview(ctx, sess, frame.Payload)
	case "setSetting":
		err = h.onSetSetting(ctx, sess, frame.Payload)
	case "addAdmin", "removeAdmin":
		err = h.onAdminChange(ctx, sess, frame.Type, frame.Payload)
	default:
		sess.enqueue(outboundFrame{Type: "error", Payload: errorPayload{
			Op:      frame.Type,
			Message: "unsupported message type",
		}})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("type", frame.Type).Msg("gateway event failed")
		sess.enqueue(outboundFrame{Type: "error", Payload: errorPayload{
			Op:      frame.Type,
			Message: friendlyError(err),
		}})
	}
}

func (h *GatewayHandler) onAnswer(ctx context.Context, payload json.RawMessage) error {
	var ev domain.AnswerEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.New("invalid answer payload")
	}
	_, err := h.scoring.HandlePollAnswer(ctx, ev)
	return err
}

func (h *GatewayHandler) onStart(ctx context.Context, sess *session, payload json.RawMessage) error {
	var p startPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid start payload")
	}
	if err := h.scoring.RegisterUser(ctx, p.User, p.Chat); err != nil {
		return err
	}

	welcome := "Welcome to NEET IQ! Answer quiz polls to earn +4 per correct answer. Wrong answers cost 1 point, so aim carefully."
	welcome, err := h.settings.ApplyFooter(ctx, welcome)
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "message", Payload: messageFrame{ChatID: p.Chat.ID, Text: welcome}})
	return nil
}

func (h *GatewayHandler) onDispatch(ctx context.Context, payload json.RawMessage) error {
	var p dispatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid dispatch payload")
	}
	return h.dispatcher.DispatchQuiz(ctx, p.ChatID)
}

func (h *GatewayHandler) onBroadcast(ctx context.Context, payload json.RawMessage) error {
	var p broadcastPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid broadcast payload")
	}
	if err := h.admins.RequireAdmin(ctx, p.CallerID); err != nil {
		return err
	}
	return h.dispatcher.BroadcastQuiz(ctx)
}

func (h *GatewayHandler) onLeaderboard(ctx context.Context, sess *session, payload json.RawMessage) error {
	var p leaderboardRequest
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid leaderboard payload")
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	scope := domain.GlobalScope()
	if p.ChatID != 0 {
		scope = domain.GroupScope(p.ChatID)
	}
	rows, err := h.ranking.Leaderboard(ctx, scope, p.Limit)
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "leaderboard", Payload: leaderboardResponse{ChatID: p.ChatID, Rows: rows}})
	return nil
}

func (h *GatewayHandler) onStats(ctx context.Context, sess *session, payload json.RawMessage) error {
	var p statsRequest
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid stats payload")
	}
	summary, err := h.ranking.UserSummary(ctx, p.UserID, p.ChatID)
	if err != nil {
		return err
	}
	today, err := h.ranking.Daily(ctx, p.UserID, h.clock().Format(domain.DayFormat))
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "stats", Payload: statsResponse{UserID: p.UserID, Summary: summary, Today: today}})
	return nil
}

func (h *GatewayHandler) onImport(ctx context.Context, sess *session, payload json.RawMessage) error {
	var p importRequest
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid import payload")
	}
	summary, err := h.questions.Import(ctx, p.CallerID, p.Text)
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "importResult", Payload: importResponse{
		CallerID: p.CallerID,
		Added:    summary.Added,
		Skipped:  summary.Skipped,
	}})
	return nil
}

func (h *GatewayHandler) onOverview(ctx context.Context, sess *session, payload json.RawMessage) error {
	var p overviewRequest
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid botstats payload")
	}
	snapshot, err := h.overview.Snapshot(ctx, p.CallerID)
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "overview", Payload: overviewResponse{CallerID: p.CallerID, Overview: snapshot}})
	return nil
}

func (h *GatewayHandler) onSetSetting(ctx context.Context, sess *session, payload json.RawMessage) error {
	var p setSettingRequest
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid setting payload")
	}
	if err := h.admins.RequireAdmin(ctx, p.CallerID); err != nil {
		return err
	}
	var err error
	if p.Key == app.SettingAutoquizInterval {
		err = h.settings.SetAutoquizInterval(ctx, p.Value)
	} else {
		err = h.settings.Set(ctx, p.Key, p.Value)
	}
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "result", Payload: resultPayload{Op: "setSetting", OK: true}})
	return nil
}

func (h *GatewayHandler) onAdminChange(ctx context.Context, sess *session, op string, payload json.RawMessage) error {
	var p adminRequest
	if err := json.Unmarshal(payload, &p); err != nil {
		return errors.New("invalid admin payload")
	}
	var err error
	if op == "addAdmin" {
		err = h.admins.AddAdmin(ctx, p.CallerID, p.UserID)
	} else {
		err = h.admins.RemoveAdmin(ctx, p.CallerID, p.UserID)
	}
	if err != nil {
		return err
	}
	sess.enqueue(outboundFrame{Type: "result", Payload: resultPayload{Op: op, OK: true}})
	return nil
}

// friendlyError maps domain sentinels to relay-facing text; anything else
// stays generic so internals never leak to chat.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "you are not allowed to do that"
	case errors.Is(err, domain.ErrNoStats):
		return "no stats recorded yet, answer a quiz first"
	case errors.Is(err, domain.ErrQuestionBankEmpty):
		return "the question bank is empty"
	case errors.Is(err, domain.ErrInvalidSetting):
		return "that setting value is not valid"
	case errors.Is(err, domain.ErrRelayUnavailable):
		return "delivery is unavailable right now"
	default:
		return "something went wrong, try again later"
	}
}

// Healthz reports readiness for load-balancer probes.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
