package memory

import (
	"context"
	"fmt"
	"sync"

	"neetiq-service/internal/domain"
)

// PollTracker maps outstanding poll ids to their scoring routes. Entries
// are single-use: Resolve consumes them so a redelivered answer event can
// never score a poll twice.
type PollTracker struct {
	mu     sync.Mutex
	routes map[string]domain.PollRoute
}

func NewPollTracker() *PollTracker {
	return &PollTracker{routes: make(map[string]domain.PollRoute)}
}

func (t *PollTracker) Track(_ context.Context, pollID string, route domain.PollRoute) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.routes[pollID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrPollAlreadyTracked, pollID)
	}
	t.routes[pollID] = route
	return nil
}

func (t *PollTracker) Resolve(_ context.Context, pollID string) (domain.PollRoute, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	route, ok := t.routes[pollID]
	if !ok {
		return domain.PollRoute{}, domain.ErrPollNotFound
	}
	delete(t.routes, pollID)
	return route, nil
}
