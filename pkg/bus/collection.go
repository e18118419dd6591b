package bus

import (
	"context"
	"sync"
	"time"
)

// Collection accumulates the messages observed on one group address for a
// bounded window. It is a re-readable handle: Messages may be called any
// number of times and always returns everything collected so far.
type Collection struct {
	address string

	mu   sync.Mutex
	msgs []Message

	updates   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	onClose   []func()
}

// NewCollection creates a collection that stops after timeout or when ctx
// ends. Gateways other than Monitor, including test fakes, use it to hand
// out collections and feed them with Deliver.
func NewCollection(ctx context.Context, address string, timeout time.Duration) *Collection {
	c := &Collection{
		address: address,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	stop := context.AfterFunc(cctx, c.Close)
	c.addCloseHook(func() {
		stop()
		cancel()
	})
	return c
}

// Address returns the collected group address.
func (c *Collection) Address() string {
	return c.address
}

// Deliver appends a message unless the collection is closed. It reports
// whether the message was accepted.
func (c *Collection) Deliver(m Message) bool {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return false
	default:
	}
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
	return true
}

// Messages returns a snapshot of the collected messages in arrival order.
func (c *Collection) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

// Len returns the number of collected messages.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

// Updates signals that new messages arrived. Signals coalesce: one receive
// may stand for several deliveries.
func (c *Collection) Updates() <-chan struct{} {
	return c.updates
}

// Done is closed when the collection stops accepting messages.
func (c *Collection) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until at least one message was collected, the collection
// stopped, or ctx ended, and returns the messages collected so far.
func (c *Collection) Wait(ctx context.Context) []Message {
	for {
		if msgs := c.Messages(); len(msgs) > 0 {
			return msgs
		}
		select {
		case <-c.updates:
		case <-c.done:
			return c.Messages()
		case <-ctx.Done():
			return c.Messages()
		}
	}
}

// Close stops the collection. It is safe to call more than once.
func (c *Collection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		hooks := c.onClose
		c.onClose = nil
		c.mu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
}

// addCloseHook registers fn to run once on Close. On a collection that is
// already closed fn runs immediately.
func (c *Collection) addCloseHook(fn func()) {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		fn()
		return
	default:
	}
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}
