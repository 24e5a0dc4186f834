package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/gameroom-backend/internal/apperror"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

const eventBuffer = 16

// Bus - ephemeral room-scoped pub/sub over Redis channels. Delivery is
// best-effort and unordered; the room store stays authoritative, so a lost
// or late message costs latency, not correctness.
type Bus struct {
	logger *slog.Logger
	client *redis.Client
}

func New(logger *slog.Logger, client *redis.Client) *Bus {
	return &Bus{
		logger: logger.With("component", "broadcast"),
		client: client,
	}
}

// Topic - one channel per room, namespaced by game kind.
func Topic(gameKind, roomID string) string {
	return gameKind + ":" + roomID
}

func (that *Bus) Publish(ctx context.Context, gameKind, roomID string, event *entity.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err = that.client.Publish(ctx, Topic(gameKind, roomID), raw).Err(); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrTransportUnavailable, err)
	}

	return nil
}

func (that *Bus) Subscribe(ctx context.Context, gameKind, roomID string) (*Subscription, error) {
	topic := Topic(gameKind, roomID)

	pubsub := that.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrTransportUnavailable, err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan *entity.Event, eventBuffer),
		done:   make(chan struct{}),
	}

	go sub.run(that.logger.With("topic", topic))

	return sub, nil
}

// Subscription - a decoded, validated event stream for one room. Malformed
// or unknown messages from peers are dropped, not surfaced.
type Subscription struct {
	pubsub *redis.PubSub
	events chan *entity.Event
	done   chan struct{}
	once   sync.Once
}

func (that *Subscription) Events() <-chan *entity.Event {
	return that.events
}

func (that *Subscription) Close() error {
	that.once.Do(func() { close(that.done) })

	if err := that.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription: %w", err)
	}

	return nil
}

func (that *Subscription) run(log *slog.Logger) {
	defer close(that.events)

	for msg := range that.pubsub.Channel() {
		var event entity.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn("dropping undecodable event", "error", err)
			continue
		}

		if err := event.Validate(); err != nil {
			log.Warn("dropping invalid event", "kind", event.Kind, "error", err)
			continue
		}

		// a consumer gone before Close must not park this goroutine mid-send
		select {
		case that.events <- &event:
		case <-that.done:
			return
		}
	}
}
