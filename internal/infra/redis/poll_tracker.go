package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"neetiq-service/internal/domain"
)

// PollTracker stores poll routes in Redis. Track uses SETNX so a platform
// poll id can never be silently re-bound; Resolve uses GETDEL so an entry
// scores at most one answer stream. The TTL bounds how long an unanswered
// poll stays resolvable.
type PollTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPollTracker(client *redis.Client, ttl time.Duration) *PollTracker {
	return &PollTracker{client: client, ttl: ttl}
}

func (t *PollTracker) Track(ctx context.Context, pollID string, route domain.PollRoute) error {
	payload, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("encode poll route: %w", err)
	}
	set, err := t.client.SetNX(ctx, t.key(pollID), payload, t.ttl).Result()
	if err != nil {
		return fmt.Errorf("track poll %s: %w", pollID, err)
	}
	if !set {
		return fmt.Errorf("%w: %s", domain.ErrPollAlreadyTracked, pollID)
	}
	return nil
}

func (t *PollTracker) Resolve(ctx context.Context, pollID string) (domain.PollRoute, error) {
	payload, err := t.client.GetDel(ctx, t.key(pollID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.PollRoute{}, domain.ErrPollNotFound
	}
	if err != nil {
		return domain.PollRoute{}, fmt.Errorf("resolve poll %s: %w", pollID, err)
	}
	var route domain.PollRoute
	if err := json.Unmarshal([]byte(payload), &route); err != nil {
		return domain.PollRoute{}, fmt.Errorf("decode poll route %s: %w", pollID, err)
	}
	return route, nil
}

func (t *PollTracker) key(pollID string) string {
	return "poll:route:" + pollID
}
