// Package redisbus implements hooks.Bus over Redis pub/sub so run events
// can be observed from a process other than the one driving the run
// (§4.H, §6 observability sink). Each run's events publish to a channel
// keyed by its run ID; any number of processes may subscribe.
package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/loopforge/agentrun/hooks"
)

// Bus publishes hooks.Event values as JSON envelopes over Redis pub/sub.
// It satisfies hooks.Bus so a caller can swap it in for the in-process
// bus without changing publisher code.
type Bus struct {
	rdb    *redis.Client
	prefix string

	mu          sync.RWMutex
	subscribers map[*subscription]hooks.Subscriber
}

// Options configures a Bus.
type Options struct {
	// Client is the Redis client used to publish and subscribe.
	Client *redis.Client
	// ChannelPrefix namespaces the pub/sub channels this Bus uses.
	// Defaults to "agentrun:events:".
	ChannelPrefix string
}

// New constructs a redis-backed Bus. Local subscribers registered via
// Register receive every event published by any process using the same
// ChannelPrefix.
func New(ctx context.Context, opts Options) (*Bus, error) {
	if opts.Client == nil {
		return nil, errors.New("redisbus: client is required")
	}
	prefix := opts.ChannelPrefix
	if prefix == "" {
		prefix = "agentrun:events:"
	}
	b := &Bus{
		rdb:         opts.Client,
		prefix:      prefix,
		subscribers: make(map[*subscription]hooks.Subscriber),
	}
	pubsub := b.rdb.PSubscribe(ctx, prefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("redisbus: subscribe: %w", err)
	}
	go b.loop(pubsub)
	return b, nil
}

func (b *Bus) loop(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}
		event, err := env.decode()
		if err != nil {
			continue
		}
		b.mu.RLock()
		subs := make([]hooks.Subscriber, 0, len(b.subscribers))
		for _, s := range b.subscribers {
			subs = append(subs, s)
		}
		b.mu.RUnlock()
		for _, s := range subs {
			_ = s.HandleEvent(context.Background(), event)
		}
	}
}

// Publish marshals event and publishes it to the run's channel
// (prefix + event.RunID()).
func (b *Bus) Publish(ctx context.Context, event hooks.Event) error {
	env, err := encodeEnvelope(event)
	if err != nil {
		return fmt.Errorf("redisbus: encode event: %w", err)
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redisbus: marshal envelope: %w", err)
	}
	return b.rdb.Publish(ctx, b.prefix+event.RunID(), payload).Err()
}

// Register adds a local subscriber that receives every event this
// process observes over Redis, regardless of which process published it.
func (b *Bus) Register(sub hooks.Subscriber) (hooks.Subscription, error) {
	if sub == nil {
		return nil, errors.New("redisbus: subscriber is required")
	}
	s := &subscription{bus: b}
	b.mu.Lock()
	b.subscribers[s] = sub
	b.mu.Unlock()
	return s, nil
}

type subscription struct {
	bus  *Bus
	once sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subscribers, s)
		s.bus.mu.Unlock()
	})
	return nil
}
