package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fxdesk/trader-portal/internal/core/ports"
)

const changeChannelPrefix = "changes:"

// Notifier implements both ports.ChangePublisher and ports.ChangeSubscriber
// over Redis pub/sub. Channel per table: changes:<table>.
type Notifier struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewNotifier(client *redis.Client, log zerolog.Logger) *Notifier {
	return &Notifier{client: client, log: log}
}

// Publish sends a change notification to the table's channel. Fire and
// forget for subscribers who joined later; pub/sub carries no history.
func (n *Notifier) Publish(ctx context.Context, change ports.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := n.client.Publish(ctx, changeChannelPrefix+change.Table, payload).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

// Subscribe delivers change notifications for the given tables until ctx is
// cancelled or the release func is called. The returned channel is closed on
// release; callers must always call release.
func (n *Notifier) Subscribe(ctx context.Context, tables ...string) (<-chan ports.Change, func(), error) {
	if len(tables) == 0 {
		return nil, nil, fmt.Errorf("subscribe: no tables given")
	}

	channels := make([]string, len(tables))
	for i, t := range tables {
		channels[i] = changeChannelPrefix + t
	}

	sub := n.client.Subscribe(ctx, channels...)
	// Confirm the subscription before handing back the channel, so a caller
	// never misses a change it caused itself after subscribing.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan ports.Change, 16)
	done := make(chan struct{})

	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change ports.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					n.log.Warn().Err(err).Str("channel", msg.Channel).Msg("malformed change notification")
					continue
				}
				select {
				case out <- change:
				default:
					// Slow consumer: drop rather than block the pump. The
					// consumer re-resolves full state on every event, so a
					// dropped notification costs freshness, not correctness.
					n.log.Debug().Str("table", change.Table).Msg("change notification dropped")
				}
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				n.log.Warn().Err(err).Msg("failed to close change subscription")
			}
		})
	}
	return out, release, nil
}
