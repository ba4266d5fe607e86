// Package syncer keeps the in-memory snapshot cache convergent with the
// persistence layer: it consumes the change feed, invalidates affected
// cache keys, and fans the change out to per-key listeners.
package syncer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/resq-training/checklist-service/internal/cache"
	"github.com/resq-training/checklist-service/internal/events"
)

// KeyResults is the cache key for the aggregate results view. Results are
// always viewed in aggregate, so every result change maps to this one key.
const KeyResults = "results"

// KeyListener is invoked with the key that changed.
type KeyListener func(key string)

// Coordinator owns the change-feed subscriptions and the per-key listener
// registry. All change events are drained by a single consumer goroutine,
// so listeners never observe concurrent notification dispatch from the
// feed.
type Coordinator struct {
	cache  *cache.SnapshotCache
	feed   *events.ChangeFeed
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[string]map[int]KeyListener
	nextID    int
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCoordinator(snapshots *cache.SnapshotCache, feed *events.ChangeFeed, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cache:     snapshots,
		feed:      feed,
		logger:    logger,
		listeners: make(map[string]map[int]KeyListener),
	}
}

// StartListening opens exactly one change subscription per watched table
// and starts the consumer goroutine. Calling it again while listening is
// a no-op, never a duplicate subscription.
func (c *Coordinator) StartListening(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	itemMsgs, err := c.feed.Subscribe(runCtx, events.TableChecklistItems)
	if err != nil {
		cancel()
		return err
	}
	resultMsgs, err := c.feed.Subscribe(runCtx, events.TableChecklistResults)
	if err != nil {
		cancel()
		return err
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(runCtx, itemMsgs, resultMsgs, c.done)

	c.logger.Info("Change listening started",
		"tables", []string{events.TableChecklistItems, events.TableChecklistResults})

	return nil
}

// StopListening tears down the subscriptions and waits for the consumer
// to drain. Idempotent.
func (c *Coordinator) StopListening() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.logger.Info("Change listening stopped")
}

// consume is the single-consumer event queue: both table streams funnel
// through this one goroutine.
func (c *Coordinator) consume(ctx context.Context, itemMsgs, resultMsgs <-chan *message.Message, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-itemMsgs:
			if !ok {
				return
			}
			c.handleItemChange(msg)
		case msg, ok := <-resultMsgs:
			if !ok {
				return
			}
			c.handleResultChange(msg)
		}
	}
}

func (c *Coordinator) handleItemChange(msg *message.Message) {
	defer msg.Ack()

	ev, err := events.UnmarshalChange(msg)
	if err != nil {
		c.logger.Error("Dropping malformed item change event", "error", err, "message_id", msg.UUID)
		return
	}

	key := ev.ChecklistType()
	if key == "" {
		// Row payload without a checklist type: no way to scope the
		// invalidation, so invalidate everything.
		c.logger.Warn("Item change event without checklist type", "event_id", ev.ID)
		c.NotifyAll()
		return
	}

	c.logger.Debug("Item change received", "key", key, "change", ev.Type, "event_id", ev.ID)
	c.NotifyKey(key)
}

func (c *Coordinator) handleResultChange(msg *message.Message) {
	defer msg.Ack()

	ev, err := events.UnmarshalChange(msg)
	if err != nil {
		c.logger.Error("Dropping malformed result change event", "error", err, "message_id", msg.UUID)
		return
	}

	c.logger.Debug("Result change received", "change", ev.Type, "event_id", ev.ID)
	c.NotifyKey(KeyResults)
}

// SubscribeToKey registers a listener for one key and returns its
// unsubscribe function. Distinct from the cache's global subscription:
// a view reacts only to "its" key without filtering.
func (c *Coordinator) SubscribeToKey(key string, listener KeyListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	if c.listeners[key] == nil {
		c.listeners[key] = make(map[int]KeyListener)
	}
	c.listeners[key][id] = listener
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if m, ok := c.listeners[key]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(c.listeners, key)
			}
		}
	}
}

// NotifyKey invalidates key in the snapshot cache and invokes every
// listener registered for it.
func (c *Coordinator) NotifyKey(key string) {
	c.cache.Invalidate(key)

	c.mu.Lock()
	listeners := make([]KeyListener, 0, len(c.listeners[key]))
	for _, l := range c.listeners[key] {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(key)
	}
}

// NotifyAll invalidates every cache key and invokes every registered
// listener across all keys. Used for hard refreshes.
func (c *Coordinator) NotifyAll() {
	c.cache.InvalidateAll()

	type pending struct {
		key      string
		listener KeyListener
	}
	c.mu.Lock()
	var all []pending
	for key, m := range c.listeners {
		for _, l := range m {
			all = append(all, pending{key: key, listener: l})
		}
	}
	c.mu.Unlock()

	for _, p := range all {
		p.listener(p.key)
	}
}

// RunMutation executes a write operation and, only on success, notifies
// the affected key (or every key when affectedKey is empty). Errors from
// the operation are returned unchanged and trigger no notification, so a
// failed write never invalidates a still-correct snapshot.
//
// Every write path in the service goes through here; views cannot forget
// to propagate their own changes.
func (c *Coordinator) RunMutation(ctx context.Context, affectedKey string, op func(context.Context) error) error {
	if err := op(ctx); err != nil {
		return err
	}

	if affectedKey == "" {
		c.NotifyAll()
	} else {
		c.NotifyKey(affectedKey)
	}
	return nil
}

// Mutate is RunMutation for operations that return a value.
func Mutate[T any](ctx context.Context, c *Coordinator, affectedKey string, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := c.RunMutation(ctx, affectedKey, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
