package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher publishes a payload on a named channel. store.RedisStore
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisNotifier publishes events as JSON on the "alerts" channel.
type RedisNotifier struct {
	pub Publisher
}

func NewRedisNotifier(pub Publisher) *RedisNotifier {
	return &RedisNotifier{pub: pub}
}

func (r *RedisNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.pub.Publish(ctx, "alerts", payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
