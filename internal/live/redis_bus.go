package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "live:"
	publishTimeout = 5 * time.Second
)

// busPayload is the message published to Redis for cross-instance broadcast.
// Origin lets instances skip their own messages, which were already delivered
// locally by BroadcastAndPublish.
type busPayload struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin"`
	At     int64           `json:"at"`
}

// RedisBus implements Bus over Redis pub/sub, one channel per session.
type RedisBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
}

// NewRedisBus creates a Redis-backed session event bus.
func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, instanceID: uuid.New().String(), logger: logger}
}

// PublishSessionEvent publishes an event to the session's Redis channel.
func (b *RedisBus) PublishSessionEvent(sessionID, event string, payload []byte) error {
	channel := channelPrefix + sessionID
	body, err := json.Marshal(busPayload{Event: event, Data: payload, Origin: b.instanceID, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, channel, body).Err()
}

// SubscribeSession subscribes to a session's Redis channel and calls handler
// for each message from another instance. Returns a cancel function.
func (b *RedisBus) SubscribeSession(sessionID string, handler func(event string, payload []byte)) (cancel func(), err error) {
	channel := channelPrefix + sessionID
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := b.client.Subscribe(ctx, channel)
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var p busPayload
				if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
					continue
				}
				if p.Origin == b.instanceID {
					continue
				}
				handler(p.Event, p.Data)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
