package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/log"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

// TesterConfig configures an ElementTester.
type TesterConfig struct {
	RunConfig

	// RunID tags protocol events.
	RunID string

	// ProtocolLogger receives gateway fault events.
	// If nil, no capture is made.
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// ElementTester drives the rows of tested elements through a gateway.
type ElementTester struct {
	gateway bus.Gateway
	config  RunConfig
	runID   string
	plog    log.Logger
	logger  *slog.Logger
}

// NewElementTester creates a tester on gw.
func NewElementTester(gw bus.Gateway, cfg TesterConfig) *ElementTester {
	plog := cfg.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	return &ElementTester{
		gateway: gw,
		config:  cfg.RunConfig,
		runID:   cfg.RunID,
		plog:    plog,
		logger:  cfg.Logger,
	}
}

// TestElement validates el and runs every row in order. An untestable
// element produces no bus traffic and reports the validation error. If
// ctx ends, rows not yet started are skipped.
func (t *ElementTester) TestElement(ctx context.Context, el *model.TestedElement) ElementResult {
	res := ElementResult{}
	if el.Command != nil {
		res.Command = el.Command.Address
	}
	for _, fb := range el.Feedbacks {
		res.Feedbacks = append(res.Feedbacks, fb.Address)
	}

	if err := el.Validate(); err != nil {
		res.Err = err
		t.debugLog("element untestable", "command", res.Command, "error", err)
		return res
	}

	for row := 0; row < el.Rows(); row++ {
		if ctx.Err() != nil {
			break
		}
		res.Rows = append(res.Rows, t.TestRow(ctx, el, row))
	}
	return res
}

// TestRow runs one test case and returns a verdict per feedback column.
//
// Collections are opened on every feedback address before the command is
// written. The row then waits until every column is decided or the
// timeout passes. A row that has started is not interrupted by ctx.
func (t *ElementTester) TestRow(ctx context.Context, el *model.TestedElement, row int) RowResult {
	n := len(el.Feedbacks)
	res := RowResult{
		Row:      row,
		Verdicts: make([]Result, n),
		Elapsed:  make([]time.Duration, n),
	}
	start := time.Now()

	rowCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.config.Timeout)
	defer cancel()

	cols := make([]*bus.Collection, n)
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Close()
			}
		}
	}()

	decided := make([]bool, n)
	for j, fb := range el.Feedbacks {
		switch {
		case fb.ValueAt(row).IsAbsent():
			res.Verdicts[j] = Success
			decided[j] = true
		case fb.Address == "":
			res.Verdicts[j] = Failure
			decided[j] = true
		default:
			c, err := t.gateway.Collect(rowCtx, fb.Address, t.config.Timeout)
			if err != nil {
				t.fault(&res, decided, start, fmt.Errorf("collect %s: %w", fb.Address, err))
				return res
			}
			cols[j] = c
		}
	}

	if err := t.writeCommand(rowCtx, el.Command, row); err != nil {
		t.fault(&res, decided, start, err)
		return res
	}

	if t.config.ReadFeedback {
		for j, c := range cols {
			if c == nil {
				continue
			}
			if err := t.gateway.Read(rowCtx, el.Feedbacks[j].Address); err != nil {
				t.debugLog("feedback read failed", "address", el.Feedbacks[j].Address, "error", err)
			}
		}
	}

	t.await(rowCtx, el, row, cols, decided, &res, start)
	return res
}

func (t *ElementTester) writeCommand(ctx context.Context, cmd *dpt.DPT, row int) error {
	if cmd == nil || cmd.Address == "" {
		return nil
	}
	v, ok := cmd.ValueAt(row).Get()
	if !ok {
		return nil
	}
	if err := t.gateway.Write(ctx, cmd.Address, bus.PayloadFor(cmd, v)); err != nil {
		return fmt.Errorf("write %s: %w", cmd.Address, err)
	}
	return nil
}

type update struct {
	col    int
	closed bool
}

// await correlates collected messages until every column is decided, every
// collection has stopped, or ctx ends.
func (t *ElementTester) await(ctx context.Context, el *model.TestedElement, row int,
	cols []*bus.Collection, decided []bool, res *RowResult, start time.Time) {

	undecided := 0
	for j := range cols {
		if !decided[j] {
			undecided++
		}
	}

	classify := func(j int) {
		fb := el.Feedbacks[j]
		v := CorrelateMessages(cols[j].Messages(), fb, fb.ValueAt(row))
		res.Verdicts[j] = v
		if v != Failure {
			decided[j] = true
			res.Elapsed[j] = time.Since(start)
			undecided--
			cols[j].Close()
		}
	}

	// Replies may already have arrived while the command was written.
	for j := range cols {
		if !decided[j] {
			classify(j)
		}
	}

	if undecided > 0 {
		fctx, stop := context.WithCancel(ctx)
		g, fctx := errgroup.WithContext(fctx)
		updates := make(chan update)

		open := 0
		for j, c := range cols {
			if c == nil || decided[j] {
				continue
			}
			open++
			g.Go(func() error {
				forward(fctx, j, c, updates)
				return nil
			})
		}

	loop:
		for undecided > 0 && open > 0 {
			select {
			case u := <-updates:
				if u.closed {
					open--
				}
				if !decided[u.col] {
					classify(u.col)
				}
			case <-ctx.Done():
				break loop
			}
		}
		stop()
		_ = g.Wait()
	}

	for j := range cols {
		if !decided[j] {
			res.Elapsed[j] = time.Since(start)
		}
	}
}

// forward relays the notifications of one collection until it closes.
func forward(ctx context.Context, col int, c *bus.Collection, out chan<- update) {
	for {
		select {
		case <-c.Updates():
			select {
			case out <- update{col: col}:
			case <-ctx.Done():
				return
			}
		case <-c.Done():
			select {
			case out <- update{col: col, closed: true}:
			case <-ctx.Done():
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// fault degrades the row: columns not yet decided stay Failure.
func (t *ElementTester) fault(res *RowResult, decided []bool, start time.Time, err error) {
	res.Err = err
	for j := range res.Verdicts {
		if !decided[j] {
			res.Verdicts[j] = Failure
			res.Elapsed[j] = time.Since(start)
		}
	}

	if t.logger != nil {
		t.logger.Warn("gateway fault", "row", res.Row, "error", err)
	}
	t.plog.Log(log.Event{
		Timestamp: time.Now(),
		RunID:     t.runID,
		Direction: log.DirectionOut,
		Layer:     log.LayerEngine,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEngine,
			Message: err.Error(),
			Context: fmt.Sprintf("row %d", res.Row),
		},
	})
}

// debugLog logs a debug message if logging is enabled.
func (t *ElementTester) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}
