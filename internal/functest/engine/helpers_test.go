package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/knxcheck/knxcheck-go/internal/functest/sim"
	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
	"github.com/knxcheck/knxcheck-go/pkg/log"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

func ga(t *testing.T, s string) knx.GroupAddress {
	t.Helper()
	g, err := knx.ParseGroupAddress(s)
	require.NoError(t, err)
	return g
}

// harness wires a simulated installation to a started Monitor.
func harness(t *testing.T, devices ...*sim.Device) (*sim.Installation, *bus.Monitor) {
	t.Helper()
	inst := sim.New(sim.Config{ReadDelay: 5 * time.Millisecond}, devices...)
	mon := bus.NewMonitor(inst, bus.MonitorConfig{})
	require.NoError(t, mon.Start(context.Background()))
	t.Cleanup(func() {
		mon.Stop()
		_ = inst.Close()
	})
	return inst, mon
}

// switchActuator reports every write on trigger back on feedback.
func switchActuator(t *testing.T, trigger, feedback string, service knx.APCI, delay time.Duration) *sim.Device {
	return &sim.Device{
		Name:    "switch " + trigger,
		Address: knx.IndividualAddress{Area: 1, Line: 1, Device: 20},
		Reactions: []sim.Reaction{{
			Trigger: ga(t, trigger), TriggerType: 1,
			Feedback: ga(t, feedback), FeedbackType: 1,
			Service: service,
			Delay:   delay,
		}},
	}
}

func boolElement(cmd string, cmdVals []dpt.Value, fb string, fbVals []dpt.Value) *model.TestedElement {
	return model.NewTestedElement(dpt.New(1, cmd, cmdVals...), dpt.New(1, fb, fbVals...))
}

func testerConfig(timeout time.Duration) TesterConfig {
	return TesterConfig{RunConfig: RunConfig{Timeout: timeout}}
}

// mockGateway is a testify mock of bus.Gateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Write(ctx context.Context, address string, payload bus.Payload) error {
	args := m.Called(ctx, address, payload)
	return args.Error(0)
}

func (m *mockGateway) Read(ctx context.Context, address string) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *mockGateway) Collect(ctx context.Context, address string, timeout time.Duration) (*bus.Collection, error) {
	args := m.Called(ctx, address, timeout)
	c, _ := args.Get(0).(*bus.Collection)
	return c, args.Error(1)
}

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) byCategory(cat log.Category) []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []log.Event
	for _, e := range c.events {
		if e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

func harnessWithCapture(t *testing.T, plog log.Logger, devices ...*sim.Device) (*sim.Installation, *bus.Monitor) {
	t.Helper()
	inst := sim.New(sim.Config{}, devices...)
	mon := bus.NewMonitor(inst, bus.MonitorConfig{ProtocolLogger: plog})
	require.NoError(t, mon.Start(context.Background()))
	t.Cleanup(func() {
		mon.Stop()
		_ = inst.Close()
	})
	return inst, mon
}
