// Package distribution fans committed book deltas out to subscribers using a
// snapshot-then-delta handshake: each subscriber receives one full snapshot
// at subscribe time and every subsequent delta in commit order.
package distribution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohidaprem/crypto-order-book/internal/domain"
)

// MessageType tags the two message kinds a subscriber can receive.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageDelta    MessageType = "delta"
)

// Message is one item on a subscriber's stream. Both kinds carry full
// top-of-book state; subscribers replace on receive, never patch.
type Message struct {
	Type      MessageType         `json:"type"`
	Symbol    string              `json:"symbol"`
	Bids      []domain.PriceLevel `json:"bids"`
	Asks      []domain.PriceLevel `json:"asks"`
	Timestamp time.Time           `json:"timestamp"`
}

// Snapshotter is the read surface the channel needs from the book store.
type Snapshotter interface {
	ReadTop(n int) domain.OrderBook
}

// Subscription is one registered consumer. Events is closed when the
// subscriber is removed, whether by Unsubscribe or by the slow-consumer
// policy.
type Subscription struct {
	id     uuid.UUID
	events chan Message
}

// Events returns the subscriber's ordered message stream.
func (s *Subscription) Events() <-chan Message { return s.events }

// Config holds the channel's admission and backpressure parameters.
type Config struct {
	// MaxSubscribers is the admission-control limit. Zero means unlimited.
	MaxSubscribers int
	// QueueSize bounds each subscriber's outbound queue; on overflow the
	// subscriber is dropped rather than allowed to stall the publisher.
	QueueSize int
	// TopLevels is the snapshot depth delivered at subscribe time.
	TopLevels int
}

// Channel is the in-process publish/subscribe fan-out. The snapshot read and
// the enrollment for future deltas happen under the same lock that Publish
// takes, so a late joiner can neither miss a delta nor see one that predates
// its snapshot.
type Channel struct {
	cfg    Config
	store  Snapshotter
	logger *slog.Logger

	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

// NewChannel creates a Channel reading subscribe-time snapshots from store.
func NewChannel(cfg Config, store Snapshotter, logger *slog.Logger) *Channel {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 64
	}
	if cfg.TopLevels < 1 {
		cfg.TopLevels = 20
	}
	return &Channel{
		cfg:    cfg,
		store:  store,
		logger: logger.With(slog.String("component", "distribution")),
		subs:   make(map[uuid.UUID]*Subscription),
	}
}

// Subscribe registers a new subscriber and synchronously queues its snapshot
// before any subsequent publish is observed. It returns
// domain.ErrSubscriberLimit when admission control rejects the subscriber.
func (c *Channel) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxSubscribers > 0 && len(c.subs) >= c.cfg.MaxSubscribers {
		return nil, domain.ErrSubscriberLimit
	}

	snap := c.store.ReadTop(c.cfg.TopLevels)

	sub := &Subscription{
		id:     uuid.New(),
		events: make(chan Message, c.cfg.QueueSize),
	}
	sub.events <- Message{
		Type:      MessageSnapshot,
		Symbol:    snap.Symbol,
		Bids:      snap.Bids,
		Asks:      snap.Asks,
		Timestamp: snap.Timestamp,
	}
	c.subs[sub.id] = sub

	c.logger.Info("subscriber joined", slog.Int("total", len(c.subs)))
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its stream. It is idempotent;
// a nil or already-removed subscription is a no-op.
func (c *Channel) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(sub.id)
}

// Publish broadcasts a delta to all current subscribers in commit order.
// With no subscribers it returns without doing any work. A subscriber whose
// queue is full is dropped.
func (c *Channel) Publish(delta domain.DeltaMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subs) == 0 {
		return
	}

	msg := Message{
		Type:      MessageDelta,
		Symbol:    delta.Symbol,
		Bids:      delta.Bids,
		Asks:      delta.Asks,
		Timestamp: delta.Timestamp,
	}

	var dropped []uuid.UUID
	for id, sub := range c.subs {
		select {
		case sub.events <- msg:
		default:
			dropped = append(dropped, id)
		}
	}

	for _, id := range dropped {
		c.logger.Warn("dropping slow subscriber")
		c.removeLocked(id)
	}
}

// PublishDelta adapts Publish to the domain.DeltaPublisher contract used by
// the update scheduler.
func (c *Channel) PublishDelta(_ context.Context, delta domain.DeltaMessage) error {
	c.Publish(delta)
	return nil
}

// SubscriberCount returns the number of currently registered subscribers.
func (c *Channel) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel) removeLocked(id uuid.UUID) {
	sub, ok := c.subs[id]
	if !ok {
		return
	}
	delete(c.subs, id)
	close(sub.events)
}

// Compile-time interface check.
var _ domain.DeltaPublisher = (*Channel)(nil)
