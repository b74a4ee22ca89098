package http

import (
	"context"
	"fmt"
	"sync"
	"time"

	"neetiq-service/internal/domain"
)

// outboundFrame is the envelope for every message pushed to the relay.
type outboundFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type pollFrame struct {
	Ref           uint64    `json:"ref"`
	ChatID        int64     `json:"chatId"`
	Question      string    `json:"question"`
	Options       [4]string `json:"options"`
	CorrectOption int       `json:"correctOption"`
	Explanation   string    `json:"explanation"`
}

type messageFrame struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

// Relay is the outbound half of the gateway: it pushes polls and messages
// to the connected chat-platform relay process. SendPoll is synchronous --
// it waits for the relay to report the platform-assigned poll id so the
// caller can track the poll before any answer can arrive.
type Relay struct {
	ackTimeout time.Duration

	mu      sync.Mutex
	send    chan outboundFrame // nil while no relay is connected
	pending map[uint64]chan string
	nextRef uint64
}

func NewRelay(ackTimeout time.Duration) *Relay {
	return &Relay{
		ackTimeout: ackTimeout,
		pending:    make(map[uint64]chan string),
	}
}

// attach makes send the active relay channel, displacing any previous one.
func (r *Relay) attach(send chan outboundFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send = send
}

// detach clears the active channel, but only if it is still the current
// one: a reconnect may already have attached a fresh channel.
func (r *Relay) detach(send chan outboundFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.send == send {
		r.send = nil
	}
}

// ack completes a pending SendPoll with the platform-assigned poll id.
func (r *Relay) ack(ref uint64, pollID string) {
	r.mu.Lock()
	ch, ok := r.pending[ref]
	delete(r.pending, ref)
	r.mu.Unlock()
	if ok {
		ch <- pollID
	}
}

func (r *Relay) SendPoll(ctx context.Context, chatID int64, poll domain.PollPayload) (string, error) {
	r.mu.Lock()
	if r.send == nil {
		r.mu.Unlock()
		return "", domain.ErrRelayUnavailable
	}
	r.nextRef++
	ref := r.nextRef
	ackCh := make(chan string, 1)
	r.pending[ref] = ackCh

	frame := outboundFrame{Type: "poll", Payload: pollFrame{
		Ref:           ref,
		ChatID:        chatID,
		Question:      poll.Question,
		Options:       poll.Options,
		CorrectOption: poll.CorrectOption,
		Explanation:   poll.Explanation,
	}}
	select {
	case r.send <- frame:
	default:
		delete(r.pending, ref)
		r.mu.Unlock()
		return "", fmt.Errorf("%w: outbound queue full", domain.ErrRelayUnavailable)
	}
	r.mu.Unlock()

	select {
	case pollID := <-ackCh:
		return pollID, nil
	case <-ctx.Done():
		r.dropPending(ref)
		return "", ctx.Err()
	case <-time.After(r.ackTimeout):
		r.dropPending(ref)
		return "", fmt.Errorf("%w: no poll ack within %s", domain.ErrRelayUnavailable, r.ackTimeout)
	}
}

func (r *Relay) SendMessage(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.send == nil {
		return domain.ErrRelayUnavailable
	}
	select {
	case r.send <- outboundFrame{Type: "message", Payload: messageFrame{ChatID: chatID, Text: text}}:
		return nil
	default:
		return fmt.Errorf("%w: outbound queue full", domain.ErrRelayUnavailable)
	}
}

func (r *Relay) dropPending(ref uint64) {
	r.mu.Lock()
	delete(r.pending, ref)
	r.mu.Unlock()
}
