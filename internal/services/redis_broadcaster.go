package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis pub/sub channel shared by all instances.
const EventsChannel = "taskboard:events"

const (
	outboxSize     = 256
	publishTimeout = 2 * time.Second
)

// RedisBroadcaster fans events out through Redis so that clients connected to
// any instance receive them. Every instance relays the channel into its local
// EventHub.
type RedisBroadcaster struct {
	client *redis.Client
	hub    *EventHub
	outbox chan ProjectEvent
}

// NewRedisBroadcaster connects to Redis and fails fast when it is unreachable.
func NewRedisBroadcaster(cfg *config.RedisConfig, hub *EventHub) (*RedisBroadcaster, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return newRedisBroadcaster(client, hub), nil
}

func newRedisBroadcaster(client *redis.Client, hub *EventHub) *RedisBroadcaster {
	return &RedisBroadcaster{
		client: client,
		hub:    hub,
		outbox: make(chan ProjectEvent, outboxSize),
	}
}

// Publish queues the event for Redis and returns immediately. When the queue
// is full the event only reaches this instance's clients.
func (b *RedisBroadcaster) Publish(projectID, event string, data interface{}) {
	evt, err := newProjectEvent(projectID, event, data)
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("failed to encode project event")
		return
	}

	select {
	case b.outbox <- evt:
	default:
		logger.Warn().Str("event", event).Str("project_id", projectID).Msg("redis outbox full, delivering locally")
		b.hub.Dispatch(evt)
	}
}

// flush sends queued events to Redis until ctx is cancelled. If Redis rejects
// an event it is still delivered to this instance's clients.
func (b *RedisBroadcaster) flush(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.outbox:
			payload, err := json.Marshal(evt)
			if err != nil {
				logger.Error().Err(err).Str("event", evt.Event).Msg("failed to encode project event")
				continue
			}
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			err = b.client.Publish(pubCtx, EventsChannel, payload).Err()
			cancel()
			if err != nil {
				logger.Warn().Err(err).Str("event", evt.Event).Msg("redis publish failed, delivering locally")
				b.hub.Dispatch(evt)
			}
		}
	}
}

// Run publishes queued events and relays the shared channel into the local
// hub until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.flush(ctx)
	}()
	defer wg.Wait()

	pubsub := b.client.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	logger.Info().Str("channel", EventsChannel).Msg("redis event relay started")
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var evt ProjectEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logger.Warn().Err(err).Msg("dropping malformed event from redis")
				continue
			}
			b.hub.Dispatch(evt)
		}
	}
}

func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}

// InitBroadcaster picks the Redis broadcaster when Redis is enabled and
// reachable, otherwise the hub itself. The returned stop function ends the
// relay goroutine.
func InitBroadcaster(cfg *config.RedisConfig, hub *EventHub) (Broadcaster, func()) {
	if !cfg.Enabled {
		logger.Infof("[Events] In-process broadcaster (Redis disabled)")
		return hub, func() {}
	}

	rb, err := NewRedisBroadcaster(cfg, hub)
	if err != nil {
		logger.Warnf("[Events] Redis unavailable, falling back to in-process broadcaster: %v", err)
		return hub, func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rb.Run(ctx)
	}()

	logger.Infof("[Events] Redis broadcaster initialized at %s", cfg.Addr)
	return rb, func() {
		cancel()
		<-done
		rb.Close()
	}
}
