package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ItemStatusEvent is the status-change notification published after an
// enrichment job commits a terminal item state. It is transient: never
// persisted, delivered at most once per live subscriber.
type ItemStatusEvent struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// Publisher is the notification side of the pipeline: a fire-and-forget,
// best-effort publish on a named channel. A publish must never fail the
// caller; it happens only after the item state is durably committed.
type Publisher interface {
	Publish(ctx context.Context, channel string, event ItemStatusEvent)
}

// Subscription is one subscriber's handle on a broker channel. Messages
// arrive on C as the verbatim JSON payloads that were published. The
// subscription sees only events published while it is active: no replay,
// no filtering.
type Subscription struct {
	broker  *Broker
	channel string
	ch      chan []byte
	once    sync.Once
}

// C returns the subscription's message channel. It is closed when the
// subscription is cancelled or the broker shuts down.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Unsubscribe detaches the subscription from its channel and closes C.
// Safe to call more than once and from any goroutine.
func (s *Subscription) Unsubscribe() {
	s.broker.remove(s)
	s.once.Do(func() { close(s.ch) })
}

// Broker is an in-process pub/sub hub with named channels and
// per-subscriber buffered fan-out. Publishing never blocks: a subscriber
// whose buffer is full misses that event (best-effort delivery, matching
// the fire-and-forget notification contract).
type Broker struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscription]struct{}
	buffer   int
	closed   bool
	logger   *slog.Logger
}

// NewBroker creates a Broker whose subscriptions buffer up to bufferSize
// events each. If logger is nil, a default is used.
func NewBroker(bufferSize int, logger *slog.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		channels: make(map[string]map[*Subscription]struct{}),
		buffer:   bufferSize,
		logger:   logger.With("component", "notification_broker"),
	}
}

// Ensure Broker implements the Publisher interface
var _ Publisher = (*Broker)(nil)

// Subscribe attaches a new subscription to the named channel.
func (b *Broker) Subscribe(channel string) *Subscription {
	sub := &Subscription{
		broker:  b,
		channel: channel,
		ch:      make(chan []byte, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		// Closed broker hands out an already-closed subscription so the
		// caller's receive loop ends immediately.
		close(sub.ch)
		return sub
	}

	subs, ok := b.channels[channel]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Publish implements Publisher. The event is serialized once and fanned out
// to every current subscriber of the channel; each subscriber gets its own
// copy. Errors are logged, never returned.
func (b *Broker) Publish(ctx context.Context, channel string, event ItemStatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to serialize notification",
			"error", err,
			"item_id", event.ID)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.channels[channel] {
		select {
		case sub.ch <- payload:
		default:
			b.logger.WarnContext(ctx, "dropping notification for slow subscriber",
				"channel", channel,
				"item_id", event.ID)
		}
	}
}

// Close shuts the broker down, closing every subscription channel. Further
// publishes are no-ops and further subscriptions are handed out closed.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true

	var all []*Subscription
	for _, subs := range b.channels {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.channels = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	// Closing outside the lock avoids contending with concurrent
	// Unsubscribe calls; sync.Once keeps the close idempotent.
	for _, sub := range all {
		sub.once.Do(func() { close(sub.ch) })
	}
}

// remove detaches a subscription; called from Subscription.Unsubscribe.
func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.channels[s.channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.channels, s.channel)
		}
	}
}
