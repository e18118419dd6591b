package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/knx"
	"github.com/knxcheck/knxcheck-go/pkg/log"
)

// DefaultSource is the individual address used for telegrams sent by the
// tester when none is configured.
var DefaultSource = knx.IndividualAddress{Area: 15, Line: 15, Device: 255}

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Source is the individual address stamped on outgoing telegrams.
	Source knx.IndividualAddress

	// ProtocolLogger receives every telegram sent or received.
	// If nil, no capture is made.
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Monitor implements Gateway over a Link.
type Monitor struct {
	link   Link
	source knx.IndividualAddress
	plog   log.Logger
	logger *slog.Logger

	mu      sync.RWMutex
	running bool
	runID   string
	subs    map[knx.GroupAddress]map[*Collection]struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor on link. Start must be called before use.
func NewMonitor(link Link, cfg MonitorConfig) *Monitor {
	source := cfg.Source
	if source == (knx.IndividualAddress{}) {
		source = DefaultSource
	}
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	return &Monitor{
		link:   link,
		source: source,
		plog:   plog,
		logger: cfg.Logger,
		subs:   make(map[knx.GroupAddress]map[*Collection]struct{}),
	}
}

// Start begins dispatching received telegrams. The monitor stops when ctx
// ends, when Stop is called, or when the link closes its channel.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.dispatch(ctx, m.done)
	return nil
}

// Stop halts dispatching and closes every open collection. It waits for
// the dispatch loop to exit.
func (m *Monitor) Stop() {
	m.mu.RLock()
	cancel, done := m.cancel, m.done
	m.mu.RUnlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the dispatch loop has exited. It returns nil before
// the first Start.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// Connected reports whether the monitor is dispatching.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// SetRunID tags subsequent telegram captures with a run identifier.
func (m *Monitor) SetRunID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = id
}

func (m *Monitor) dispatch(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.shutdown()

	in := m.link.Telegrams()
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-in:
			if !ok {
				m.debugLog("link closed")
				return
			}
			m.capture(log.DirectionIn, t)
			m.deliver(t)
		}
	}
}

func (m *Monitor) shutdown() {
	m.mu.Lock()
	m.running = false
	var open []*Collection
	for _, set := range m.subs {
		for c := range set {
			open = append(open, c)
		}
	}
	m.mu.Unlock()

	for _, c := range open {
		c.Close()
	}
}

func (m *Monitor) deliver(t knx.Telegram) {
	m.mu.RLock()
	set := m.subs[t.Destination]
	targets := make([]*Collection, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	msg := MessageFromTelegram(t)
	for _, c := range targets {
		c.Deliver(msg)
	}
}

// Write sends a group write.
func (m *Monitor) Write(ctx context.Context, address string, payload Payload) error {
	ga, err := knx.ParseGroupAddress(address)
	if err != nil {
		return err
	}
	return m.send(ctx, knx.NewWriteTelegram(ga, payload.Data, payload.Compact))
}

// Read sends a group read request.
func (m *Monitor) Read(ctx context.Context, address string) error {
	ga, err := knx.ParseGroupAddress(address)
	if err != nil {
		return err
	}
	return m.send(ctx, knx.NewReadTelegram(ga))
}

func (m *Monitor) send(ctx context.Context, t knx.Telegram) error {
	if !m.Connected() {
		m.captureError("send "+t.Destination.String(), ErrNotConnected)
		return ErrNotConnected
	}
	t.Source = m.source
	if err := m.link.Send(ctx, t); err != nil {
		err = fmt.Errorf("send %s %s: %w", t.APCI, t.Destination, err)
		m.captureError("send "+t.Destination.String(), err)
		m.debugLog("send failed", "telegram", t.String(), "error", err)
		return err
	}
	m.capture(log.DirectionOut, t)
	m.debugLog("sent", "telegram", t.String())
	return nil
}

// Collect opens a collection on address.
func (m *Monitor) Collect(ctx context.Context, address string, timeout time.Duration) (*Collection, error) {
	ga, err := knx.ParseGroupAddress(address)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	c := NewCollection(ctx, ga.String(), timeout)
	set, ok := m.subs[ga]
	if !ok {
		set = make(map[*Collection]struct{})
		m.subs[ga] = set
	}
	set[c] = struct{}{}
	m.mu.Unlock()

	c.addCloseHook(func() { m.unsubscribe(ga, c) })
	return c, nil
}

func (m *Monitor) unsubscribe(ga knx.GroupAddress, c *Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.subs[ga]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(m.subs, ga)
		}
	}
}

// Subscribers returns the number of open collections on address.
func (m *Monitor) Subscribers(address string) int {
	ga, err := knx.ParseGroupAddress(address)
	if err != nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[ga])
}

func (m *Monitor) capture(dir log.Direction, t knx.Telegram) {
	m.mu.RLock()
	runID := m.runID
	m.mu.RUnlock()

	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	m.plog.Log(log.Event{
		Timestamp: ts,
		RunID:     runID,
		Direction: dir,
		Layer:     log.LayerBus,
		Category:  log.CategoryTelegram,
		Telegram: &log.TelegramEvent{
			Source:      t.Source.String(),
			Destination: t.Destination.String(),
			Service:     t.APCI.String(),
			Data:        t.Data,
			Compact:     t.Compact,
		},
	})
}

func (m *Monitor) captureError(op string, err error) {
	m.mu.RLock()
	runID := m.runID
	m.mu.RUnlock()

	m.plog.Log(log.Event{
		Timestamp: time.Now(),
		RunID:     runID,
		Direction: log.DirectionOut,
		Layer:     log.LayerBus,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerBus,
			Message: err.Error(),
			Context: op,
		},
	})
}

// debugLog logs a debug message if logging is enabled.
func (m *Monitor) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

var _ Gateway = (*Monitor)(nil)
