package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"scenecast/timeline"
	"scenecast/types"
)

// ChannelPrefix namespaces every channel this service publishes on
const ChannelPrefix = "scenecast"

// TimelineChannel carries timeline.Update messages for one asset
func TimelineChannel(assetID string) string {
	return fmt.Sprintf("%s:asset:%s:timeline", ChannelPrefix, assetID)
}

// RequestChannel carries GenerationRequest snapshots for one request
func RequestChannel(requestID string) string {
	return fmt.Sprintf("%s:request:%s:status", ChannelPrefix, requestID)
}

// Publisher sends a payload on a channel
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisConfig configures the Redis connection
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
}

// RedisPublisher publishes events with Redis PUBLISH
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher and verifies connectivity
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Ping to verify
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisPublisher{client: client}, nil
}

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on the given channels until ctx ends. Payloads are
// delivered on the returned channel, which is closed afterwards.
func (p *RedisPublisher) Subscribe(ctx context.Context, channels ...string) (<-chan []byte, error) {
	sub := p.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying Redis client
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// TimelineSource is satisfied by *timeline.Registry
type TimelineSource interface {
	Subscribe() (int, <-chan timeline.Update)
	Unsubscribe(id int)
}

// RequestSource is satisfied by *generation.Coordinator
type RequestSource interface {
	Subscribe() (int, <-chan types.GenerationRequest)
	Unsubscribe(id int)
}

// Forward publishes every timeline update and request status change until
// ctx ends or both sources close. Publish errors are logged and skipped.
func Forward(ctx context.Context, timelines TimelineSource, requests RequestSource, pub Publisher) {
	var wg sync.WaitGroup

	if timelines != nil {
		id, updates := timelines.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer timelines.Unsubscribe(id)
			pump(ctx, updates, pub, func(u timeline.Update) string { return TimelineChannel(u.AssetID) })
		}()
	}

	if requests != nil {
		id, snapshots := requests.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer requests.Unsubscribe(id)
			pump(ctx, snapshots, pub, func(r types.GenerationRequest) string { return RequestChannel(r.RequestID) })
		}()
	}

	wg.Wait()
}

func pump[T any](ctx context.Context, in <-chan T, pub Publisher, channel func(T) string) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			payload, err := json.Marshal(v)
			if err != nil {
				log.Printf("events: failed to encode event: %v", err)
				continue
			}
			ch := channel(v)
			if err := pub.Publish(ctx, ch, payload); err != nil {
				log.Printf("events: failed to publish on %s: %v", ch, err)
			}
		}
	}
}
