package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/knxcheck/knxcheck-go/internal/functest/sim"
	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/knx"
	"github.com/knxcheck/knxcheck-go/pkg/log"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

func TestRowStatusPushSuccess(t *testing.T) {
	_, mon := harness(t, switchActuator(t, "1/1/1", "1/1/2", knx.APCIWrite, 10*time.Millisecond))
	tester := NewElementTester(mon, testerConfig(2*time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	start := time.Now()
	res := tester.TestRow(context.Background(), el, 0)

	assert.Equal(t, []Result{Success}, res.Verdicts)
	assert.NoError(t, res.Err)
	assert.True(t, res.Passed())
	assert.Less(t, time.Since(start), time.Second, "row should end once decided")
	assert.Equal(t, 0, mon.Subscribers("1/1/2"), "collections must be closed")
}

func TestRowSilentDeviceFails(t *testing.T) {
	inst, mon := harness(t)
	timeout := 150 * time.Millisecond
	tester := NewElementTester(mon, testerConfig(timeout))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	start := time.Now()
	res := tester.TestRow(context.Background(), el, 0)

	assert.Equal(t, []Result{Failure}, res.Verdicts)
	assert.NoError(t, res.Err)
	assert.GreaterOrEqual(t, time.Since(start), timeout)
	assert.Len(t, inst.Sent(), 1)
}

func TestRowReadReplyIsResponse(t *testing.T) {
	_, mon := harness(t, switchActuator(t, "1/1/1", "1/1/2", knx.APCIResponse, 10*time.Millisecond))
	tester := NewElementTester(mon, testerConfig(2*time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	res := tester.TestRow(context.Background(), el, 0)
	assert.Equal(t, []Result{Response}, res.Verdicts)
	assert.False(t, res.Passed())
}

func TestRowValueMismatchIsResponse(t *testing.T) {
	dev := switchActuator(t, "1/1/1", "1/1/2", knx.APCIWrite, 0)
	dev.Reactions[0].Values = map[int64]int64{1: 0}
	_, mon := harness(t, dev)
	tester := NewElementTester(mon, testerConfig(time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	res := tester.TestRow(context.Background(), el, 0)
	assert.Equal(t, []Result{Response}, res.Verdicts)
}

func TestRowEmptyFeedbackAddressFailsWithoutWaiting(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Write", mock.Anything, "1/1/1", mock.Anything).Return(nil)

	tester := NewElementTester(gw, testerConfig(5*time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "", []dpt.Value{dpt.Bool(false)})

	start := time.Now()
	res := tester.TestRow(context.Background(), el, 0)

	assert.Equal(t, []Result{Failure}, res.Verdicts)
	assert.Less(t, time.Since(start), time.Second)
	gw.AssertNotCalled(t, "Collect", mock.Anything, mock.Anything, mock.Anything)
	gw.AssertExpectations(t)
}

func TestRowAbsentExpectationSucceeds(t *testing.T) {
	inst, mon := harness(t)
	tester := NewElementTester(mon, testerConfig(5*time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Absent()})

	start := time.Now()
	res := tester.TestRow(context.Background(), el, 0)

	assert.Equal(t, []Result{Success}, res.Verdicts)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, inst.Sent(), 1, "command is still written")
}

func TestRowWithoutFeedbacks(t *testing.T) {
	inst, mon := harness(t)
	tester := NewElementTester(mon, testerConfig(time.Second))
	el := model.NewTestedElement(dpt.New(1, "1/1/1", dpt.Bool(true)))

	res := tester.TestRow(context.Background(), el, 0)
	assert.Empty(t, res.Verdicts)
	assert.True(t, res.Passed())
	require.Len(t, inst.Sent(), 1)
	assert.True(t, inst.Sent()[0].IsWrite())
}

func TestRowReadReplyDecidesBeforeLaterPush(t *testing.T) {
	dev := &sim.Device{
		Name: "chatty",
		Reactions: []sim.Reaction{
			{Trigger: ga(t, "1/1/1"), TriggerType: 1, Feedback: ga(t, "1/1/2"), FeedbackType: 1, Service: knx.APCIResponse, Fixed: dpt.Some(0)},
			{Trigger: ga(t, "1/1/1"), TriggerType: 1, Feedback: ga(t, "1/1/2"), FeedbackType: 1, Service: knx.APCIWrite, Delay: 30 * time.Millisecond},
		},
	}
	_, mon := harness(t, dev)
	tester := NewElementTester(mon, testerConfig(time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	// The read reply decides the column as Response before the push arrives.
	res := tester.TestRow(context.Background(), el, 0)
	assert.Equal(t, []Result{Response}, res.Verdicts)
}

func TestRowMultipleColumns(t *testing.T) {
	dev := &sim.Device{
		Name: "blind",
		Reactions: []sim.Reaction{
			{Trigger: ga(t, "2/0/1"), TriggerType: 5, Feedback: ga(t, "2/0/2"), FeedbackType: 5, Service: knx.APCIWrite, Delay: 40 * time.Millisecond},
			{Trigger: ga(t, "2/0/1"), TriggerType: 5, Feedback: ga(t, "2/0/3"), FeedbackType: 1, Service: knx.APCIWrite, Fixed: dpt.Some(1), Delay: 5 * time.Millisecond},
		},
	}
	_, mon := harness(t, dev)
	tester := NewElementTester(mon, testerConfig(300*time.Millisecond))

	el := model.NewTestedElement(
		dpt.New(5, "2/0/1", dpt.Some(100)),
		dpt.New(5, "2/0/2", dpt.Some(100)),
		dpt.New(1, "2/0/3", dpt.Bool(true)),
		dpt.New(1, "2/0/4", dpt.Bool(true)),
		dpt.New(1, "2/0/5", dpt.Absent()),
	)

	res := tester.TestRow(context.Background(), el, 0)
	assert.Equal(t, []Result{Success, Success, Failure, Success}, res.Verdicts)
	require.Len(t, res.Elapsed, 4)
	assert.Less(t, res.Elapsed[1], res.Elapsed[0])
}

func TestRowReadFeedback(t *testing.T) {
	inst, mon := harness(t)
	// Remember a value on the feedback address without any reaction.
	require.NoError(t, inst.Send(context.Background(), knx.NewWriteTelegram(ga(t, "1/1/2"), []byte{1}, true)))

	cfg := testerConfig(time.Second)
	cfg.ReadFeedback = true
	tester := NewElementTester(mon, cfg)
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	res := tester.TestRow(context.Background(), el, 0)
	assert.Equal(t, []Result{Response}, res.Verdicts)
}

func TestRowSkipsWriteForAbsentCommand(t *testing.T) {
	inst, mon := harness(t)
	tester := NewElementTester(mon, testerConfig(50*time.Millisecond))
	el := boolElement("1/1/1", []dpt.Value{dpt.Absent()}, "1/1/2", []dpt.Value{dpt.Absent()})

	res := tester.TestRow(context.Background(), el, 0)
	assert.Equal(t, []Result{Success}, res.Verdicts)
	assert.Empty(t, inst.Sent())
}

func TestRowFinishesAfterCancel(t *testing.T) {
	_, mon := harness(t, switchActuator(t, "1/1/1", "1/1/2", knx.APCIWrite, 50*time.Millisecond))
	tester := NewElementTester(mon, testerConfig(2*time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := tester.TestRow(ctx, el, 0)
	assert.Equal(t, []Result{Success}, res.Verdicts)
}

func TestRowCollectFault(t *testing.T) {
	boom := errors.New("bus down")
	gw := &mockGateway{}
	gw.On("Collect", mock.Anything, "1/1/2", mock.Anything).Return(nil, boom)

	plog := &captureLogger{}
	cfg := testerConfig(time.Second)
	cfg.ProtocolLogger = plog
	cfg.RunID = "run"
	tester := NewElementTester(gw, cfg)

	el := model.NewTestedElement(
		dpt.New(1, "1/1/1", dpt.Bool(true)),
		dpt.New(1, "1/1/3", dpt.Absent()),
		dpt.New(1, "1/1/2", dpt.Bool(true)),
	)

	res := tester.TestRow(context.Background(), el, 0)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, []Result{Success, Failure}, res.Verdicts)
	gw.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)

	errs := plog.byCategory(log.CategoryError)
	require.Len(t, errs, 1)
	assert.Equal(t, "run", errs[0].RunID)
	assert.Contains(t, errs[0].Error.Message, "bus down")
}

func TestRowWriteFault(t *testing.T) {
	boom := errors.New("not acknowledged")
	coll := bus.NewCollection(context.Background(), "1/1/2", time.Second)

	gw := &mockGateway{}
	gw.On("Collect", mock.Anything, "1/1/2", time.Second).Return(coll, nil)
	gw.On("Write", mock.Anything, "1/1/1", bus.Payload{Data: []byte{1}, Compact: true}).Return(boom)

	tester := NewElementTester(gw, testerConfig(time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Bool(true)})

	start := time.Now()
	res := tester.TestRow(context.Background(), el, 0)

	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, []Result{Failure}, res.Verdicts)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "faulted row must not wait")
	gw.AssertExpectations(t)

	select {
	case <-coll.Done():
	default:
		t.Fatal("collection left open")
	}
}

func TestTestElementUntestable(t *testing.T) {
	inst, mon := harness(t)
	tester := NewElementTester(mon, testerConfig(time.Second))

	el := model.NewTestedElement(
		dpt.New(5, "1/1/1", dpt.Some(1000)),
		dpt.New(1, "1/1/2", dpt.Bool(true), dpt.Bool(false)),
	)

	res := tester.TestElement(context.Background(), el)
	assert.ErrorIs(t, res.Err, model.ErrUntestable)
	assert.False(t, res.Tested())
	assert.Empty(t, res.Rows)
	assert.Empty(t, inst.Sent())
}

func TestTestElementRunsRowsInOrder(t *testing.T) {
	inst, mon := harness(t, switchActuator(t, "1/1/1", "1/1/2", knx.APCIWrite, 5*time.Millisecond))
	tester := NewElementTester(mon, testerConfig(time.Second))
	el := boolElement("1/1/1",
		[]dpt.Value{dpt.Bool(true), dpt.Bool(false), dpt.Bool(true)},
		"1/1/2",
		[]dpt.Value{dpt.Bool(true), dpt.Bool(false), dpt.Bool(false)},
	)

	res := tester.TestElement(context.Background(), el)
	require.NoError(t, res.Err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "1/1/1", res.Command)
	assert.Equal(t, []string{"1/1/2"}, res.Feedbacks)
	assert.Equal(t, []Result{Success}, res.Rows[0].Verdicts)
	assert.Equal(t, []Result{Success}, res.Rows[1].Verdicts)
	assert.Equal(t, []Result{Response}, res.Rows[2].Verdicts)

	sent := inst.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []byte{1}, sent[0].Data)
	assert.Equal(t, []byte{0}, sent[1].Data)
	assert.Equal(t, []byte{1}, sent[2].Data)
}

func TestTestElementStopsOnCancel(t *testing.T) {
	inst, mon := harness(t)
	tester := NewElementTester(mon, testerConfig(time.Second))
	el := boolElement("1/1/1", []dpt.Value{dpt.Bool(true)}, "1/1/2", []dpt.Value{dpt.Absent()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := tester.TestElement(ctx, el)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, inst.Sent())
}
