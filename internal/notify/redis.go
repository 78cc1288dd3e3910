package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "fieldpulse:user:"

// RedisBroker implements Broker over Redis pub/sub so live delivery works
// across multiple API nodes.
type RedisBroker struct {
	client *redis.Client
}

var _ Broker = (*RedisBroker)(nil)

// NewRedisBroker connects to redis with short timeouts.
func NewRedisBroker(addr string) *RedisBroker {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &RedisBroker{client: client}
}

// Healthy verifies redis connectivity.
func (b *RedisBroker) Healthy(ctx context.Context) bool {
	if b == nil || b.client == nil {
		return false
	}
	return b.client.Ping(ctx).Err() == nil
}

// Publish sends the event on the user's channel.
func (b *RedisBroker) Publish(ctx context.Context, userID string, evt Event) (bool, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return false, err
	}
	receivers, err := b.client.Publish(ctx, channelPrefix+userID, payload).Result()
	if err != nil {
		return false, err
	}
	return receivers > 0, nil
}

// Subscribe streams the user's events until ctx ends.
func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (<-chan Event, error) {
	sub := b.client.Subscribe(ctx, channelPrefix+userID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close tears down the redis connection.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
