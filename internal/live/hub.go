// Package live emulates standing queries over a request/response
// backend. Mutations invalidate a topic; every subscriber of that
// topic gets kicked and re-runs its query, delivering the fresh
// result through its own callback. With Redis attached, invalidations
// fan out across server instances via pub/sub; without it the hub
// degrades to process-local delivery.
package live

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

const invalidateChannel = "live:invalidate"

// Topic names shared by handlers and subscribers.
func TopicStrokes(sessionID string) string  { return "strokes:" + sessionID }
func TopicPresence(sessionID string) string { return "presence:" + sessionID }
func TopicEvents(channel string) string     { return "events:" + channel }

type subscriber struct {
	kick chan struct{}
	done chan struct{}
}

type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]*subscriber
	nextID int
	closed bool

	rdb    *redis.Client
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// New creates a process-local hub.
func New() *Hub {
	return &Hub{subs: make(map[string]map[int]*subscriber)}
}

// NewWithRedis creates a hub whose invalidations travel through Redis
// pub/sub, so every instance sharing the database re-runs its standing
// queries no matter which instance committed the mutation.
func NewWithRedis(redisURL string) (*Hub, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	h := New()
	h.rdb = client
	h.pubsub = client.Subscribe(ctx, invalidateChannel)

	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go h.receive(loopCtx)

	log.Printf("[Live] Connected to Redis at %s", redisURL)
	return h, nil
}

func (h *Hub) receive(ctx context.Context) {
	ch := h.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.invalidateLocal(msg.Payload)
		}
	}
}

// Subscribe registers a standing subscription on a topic. onChange is
// invoked from a dedicated goroutine whenever the topic is
// invalidated; pending kicks coalesce, so a burst of mutations may
// produce a single re-query. The returned cancel function stops
// delivery.
func (h *Hub) Subscribe(topic string, onChange func()) func() {
	sub := &subscriber{
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.done)
		return func() {}
	}
	h.nextID++
	id := h.nextID
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]*subscriber)
	}
	h.subs[topic][id] = sub
	h.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-sub.kick:
				onChange()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.subs[topic]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subs, topic)
				}
			}
			h.mu.Unlock()
			close(sub.done)
		})
	}
}

// Invalidate signals that a topic's result set may have changed.
func (h *Hub) Invalidate(topic string) {
	if h.rdb != nil {
		if err := h.rdb.Publish(context.Background(), invalidateChannel, topic).Err(); err != nil {
			log.Printf("[Live] Redis publish failed, falling back to local delivery: %v", err)
			h.invalidateLocal(topic)
		}
		return
	}
	h.invalidateLocal(topic)
}

func (h *Hub) invalidateLocal(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[topic] {
		select {
		case sub.kick <- struct{}{}:
		default:
			// A kick is already pending; the re-query will see
			// this change too.
		}
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]map[int]*subscriber)
	h.mu.Unlock()

	for _, topicSubs := range subs {
		for _, sub := range topicSubs {
			close(sub.done)
		}
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.pubsub != nil {
		h.pubsub.Close()
	}
	if h.rdb != nil {
		h.rdb.Close()
	}
}
