package client

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/liveboard/api/internal/model"
)

// ChannelStatus mirrors the status callbacks of the pub/sub API the
// shim emulates.
type ChannelStatus string

const (
	StatusSubscribing  ChannelStatus = "SUBSCRIBING"
	StatusSubscribed   ChannelStatus = "SUBSCRIBED"
	StatusTimedOut     ChannelStatus = "TIMED_OUT"
	StatusChannelError ChannelStatus = "CHANNEL_ERROR"
	StatusClosed       ChannelStatus = "CLOSED"
)

// BroadcastMessage is what handlers receive.
type BroadcastMessage struct {
	Event   string
	Payload json.RawMessage
}

// eventTransport is the slice of the API the channel shim needs.
type eventTransport interface {
	PublishEvent(ctx context.Context, channel, event string, payload json.RawMessage) (*PublishResult, error)
	StreamEvents(ctx context.Context, channel string, after int64) ([]model.Event, error)
}

type broadcastHandler struct {
	event   string // empty matches every event
	handler func(BroadcastMessage)
}

// Channel adapts the bounded event log to a broadcast-channel API:
// Send publishes, Subscribe polls the stream and replays only events
// past the subscriber's watermark, so history is never reprocessed.
// The watermark resets only when a fresh Channel is created.
type Channel struct {
	transport eventTransport
	name      string
	interval  time.Duration

	mu             sync.Mutex
	handlers       []broadcastHandler
	statusHandlers []func(ChannelStatus)
	watermark      int64
	subscribed     bool
	poll           *poller
}

func NewChannel(transport eventTransport, name string, pollInterval time.Duration) *Channel {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Channel{transport: transport, name: name, interval: pollInterval}
}

// On registers a handler for a broadcast event name; an empty name
// receives everything. Returns the channel for chaining.
func (ch *Channel) On(event string, handler func(BroadcastMessage)) *Channel {
	ch.mu.Lock()
	ch.handlers = append(ch.handlers, broadcastHandler{event: event, handler: handler})
	ch.mu.Unlock()
	return ch
}

// Send publishes through the channel.
func (ch *Channel) Send(ctx context.Context, event string, payload json.RawMessage) error {
	if _, err := ch.transport.PublishEvent(ctx, ch.name, event, payload); err != nil {
		ch.notifyStatus(StatusChannelError)
		return err
	}
	return nil
}

// Subscribe starts delivery. onStatus, when non-nil, receives the
// subscription lifecycle callbacks.
func (ch *Channel) Subscribe(onStatus func(ChannelStatus)) {
	ch.mu.Lock()
	if onStatus != nil {
		ch.statusHandlers = append(ch.statusHandlers, onStatus)
	}
	if ch.subscribed {
		ch.mu.Unlock()
		return
	}
	ch.subscribed = true
	ch.mu.Unlock()

	ch.notifyStatus(StatusSubscribing)

	ch.poll = newPoller(ch.interval,
		func(ctx context.Context) (interface{}, error) {
			return ch.transport.StreamEvents(ctx, ch.name, ch.currentWatermark())
		},
		func(result interface{}) {
			events, ok := result.([]model.Event)
			if !ok {
				return
			}
			ch.Deliver(events)
		})
	ch.poll.start()

	ch.notifyStatus(StatusSubscribed)
}

// Deliver pushes a batch of stream events through the watermark and
// the name filters. Exposed so transports with their own change
// notification can feed the shim directly.
func (ch *Channel) Deliver(events []model.Event) {
	for _, event := range events {
		ch.mu.Lock()
		if event.Sequence <= ch.watermark {
			ch.mu.Unlock()
			continue
		}
		ch.watermark = event.Sequence
		handlers := make([]broadcastHandler, len(ch.handlers))
		copy(handlers, ch.handlers)
		ch.mu.Unlock()

		for _, reg := range handlers {
			if reg.event != "" && reg.event != event.Name {
				continue
			}
			reg.handler(BroadcastMessage{Event: event.Name, Payload: json.RawMessage(event.Payload)})
		}
	}
}

// Unsubscribe stops delivery and reports CLOSED.
func (ch *Channel) Unsubscribe() {
	ch.mu.Lock()
	if !ch.subscribed {
		ch.mu.Unlock()
		return
	}
	ch.subscribed = false
	poll := ch.poll
	ch.poll = nil
	ch.mu.Unlock()

	if poll != nil {
		poll.stop()
	}
	ch.notifyStatus(StatusClosed)
}

// SetOnline maps host connectivity transitions onto channel status:
// going offline reports TIMED_OUT, coming back reports SUBSCRIBED for
// channels that are still subscribed.
func (ch *Channel) SetOnline(online bool) {
	ch.mu.Lock()
	subscribed := ch.subscribed
	ch.mu.Unlock()

	if !online {
		ch.notifyStatus(StatusTimedOut)
		return
	}
	if subscribed {
		ch.notifyStatus(StatusSubscribed)
	}
}

func (ch *Channel) currentWatermark() int64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.watermark
}

func (ch *Channel) notifyStatus(status ChannelStatus) {
	ch.mu.Lock()
	handlers := make([]func(ChannelStatus), len(ch.statusHandlers))
	copy(handlers, ch.statusHandlers)
	ch.mu.Unlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[Channel] Status handler panic: %v", r)
				}
			}()
			handler(status)
		}()
	}
}
