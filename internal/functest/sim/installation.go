package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/knx"
)

// Config configures an Installation.
type Config struct {
	// ReadDelay is how long the installation takes to answer a group read.
	ReadDelay time.Duration

	// Buffer is the capacity of the received telegram channel.
	Buffer int

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Installation simulates the devices of a KNX line. It implements the
// bus.Link interface: telegrams sent to it reach the devices, and device
// answers come back on Telegrams.
//
// Group reads are answered from the last value written or reported on the
// address.
type Installation struct {
	devices   []*Device
	readDelay time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	state    map[knx.GroupAddress]knx.Telegram
	sent     []knx.Telegram
	out      chan knx.Telegram
	closed   bool
	pending  sync.WaitGroup
	dropped  int
	stopping chan struct{}
}

// New creates an installation with the given devices.
func New(cfg Config, devices ...*Device) *Installation {
	buf := cfg.Buffer
	if buf <= 0 {
		buf = 256
	}
	return &Installation{
		devices:   devices,
		readDelay: cfg.ReadDelay,
		logger:    cfg.Logger,
		state:     make(map[knx.GroupAddress]knx.Telegram),
		out:       make(chan knx.Telegram, buf),
		stopping:  make(chan struct{}),
	}
}

// Devices returns the simulated devices.
func (in *Installation) Devices() []*Device {
	return in.devices
}

// Send delivers a telegram from the tester to the installation.
func (in *Installation) Send(_ context.Context, t knx.Telegram) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return ErrClosed
	}
	in.sent = append(in.sent, t)

	switch t.APCI {
	case knx.APCIWrite:
		in.state[t.Destination] = t
		for _, d := range in.devices {
			for _, r := range d.Reactions {
				if r.Trigger != t.Destination {
					continue
				}
				reply, ok := r.respond(t.Data)
				if !ok {
					in.debugLog("device silent", "device", d.Name, "trigger", t.Destination.String())
					continue
				}
				reply.Source = d.Address
				in.schedule(r.Delay, reply)
			}
		}
	case knx.APCIRead:
		if last, ok := in.state[t.Destination]; ok && len(last.Data) > 0 {
			reply := knx.NewResponseTelegram(t.Destination, last.Data, last.Compact)
			reply.Source = last.Source
			in.schedule(in.readDelay, reply)
		}
	}
	return nil
}

// Inject puts a telegram on the bus as if a device had sent it.
func (in *Installation) Inject(t knx.Telegram) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.emitLocked(t)
}

// InjectAfter puts a telegram on the bus after d.
func (in *Installation) InjectAfter(d time.Duration, t knx.Telegram) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.schedule(d, t)
}

// schedule must be called with mu held.
func (in *Installation) schedule(d time.Duration, t knx.Telegram) {
	if in.closed {
		return
	}
	in.pending.Add(1)
	go func() {
		defer in.pending.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-in.stopping:
			return
		}
		in.mu.Lock()
		defer in.mu.Unlock()
		in.emitLocked(t)
	}()
}

func (in *Installation) emitLocked(t knx.Telegram) {
	if in.closed {
		return
	}
	t.Timestamp = time.Now()
	if t.APCI == knx.APCIWrite || t.APCI == knx.APCIResponse {
		in.state[t.Destination] = t
	}
	select {
	case in.out <- t:
		in.debugLog("emit", "telegram", t.String())
	default:
		in.dropped++
		in.debugLog("telegram dropped", "telegram", t.String())
	}
}

// Telegrams returns the telegrams sent by the devices.
func (in *Installation) Telegrams() <-chan knx.Telegram {
	return in.out
}

// Sent returns every telegram received from the tester.
func (in *Installation) Sent() []knx.Telegram {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]knx.Telegram(nil), in.sent...)
}

// Dropped returns the number of telegrams lost to a full buffer.
func (in *Installation) Dropped() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.dropped
}

// Value returns the last payload seen on address.
func (in *Installation) Value(address knx.GroupAddress) ([]byte, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	t, ok := in.state[address]
	return t.Data, ok
}

// Close cancels pending answers and closes the telegram channel.
func (in *Installation) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	close(in.stopping)
	in.mu.Unlock()

	in.pending.Wait()
	close(in.out)
	return nil
}

// debugLog logs a debug message if logging is enabled.
func (in *Installation) debugLog(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Debug(msg, args...)
	}
}
