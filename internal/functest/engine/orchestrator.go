package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/log"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

// runTagger is implemented by gateways that tag their telegram captures
// with the current run.
type runTagger interface {
	SetRunID(id string)
}

// Orchestrator runs functional models one after another and publishes the
// verdict table of each run.
type Orchestrator struct {
	gateway bus.Gateway
	plog    log.Logger
	logger  *slog.Logger

	// runMu serialises runs.
	runMu sync.Mutex

	mu        sync.RWMutex
	config    RunConfig
	state     State
	last      *Run
	observers []func(StateEvent)
}

// NewOrchestrator creates an orchestrator on gw.
func NewOrchestrator(gw bus.Gateway, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	plog := config.ProtocolLogger
	if plog == nil {
		plog = log.NoopLogger{}
	}
	return &Orchestrator{
		gateway: gw,
		plog:    plog,
		logger:  config.Logger,
		config: RunConfig{
			Timeout:      config.Timeout,
			Latency:      config.Latency,
			ReadFeedback: config.ReadFeedback,
		},
	}
}

// Config returns the stored run configuration.
func (o *Orchestrator) Config() RunConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.config
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Results returns the last published run, or nil before the first.
func (o *Orchestrator) Results() *Run {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

// OnStateChange registers an observer for lifecycle transitions. Observers
// are called synchronously on the running goroutine.
func (o *Orchestrator) OnStateChange(fn func(StateEvent)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// TestAll runs every model in order and publishes the resulting table.
//
// A negative timeout or a non-positive latency keeps the stored value;
// otherwise the stored configuration is updated. If ctx ends the run stops
// after the current row and the partial table is published with Cancelled
// set.
func (o *Orchestrator) TestAll(ctx context.Context, models []*model.FunctionalModel, timeout, latency time.Duration) *Run {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	cfg := o.merge(timeout, latency)
	run := &Run{
		ID:      uuid.New().String(),
		Started: time.Now(),
		Config:  cfg,
		Models:  make(Results, 0, len(models)),
	}
	if tagger, ok := o.gateway.(runTagger); ok {
		tagger.SetRunID(run.ID)
		defer tagger.SetRunID("")
	}
	tester := o.newTester(cfg, run.ID)

	o.debugLog("run started", "run", run.ID, "models", len(models),
		"timeout", cfg.Timeout, "latency", cfg.Latency)

	for i, m := range models {
		if ctx.Err() != nil {
			break
		}
		o.setState(StateEvent{RunID: run.ID, State: StateRunning, Model: m.Name, ModelIndex: i})
		mr := o.testModel(ctx, tester, cfg, run.ID, m)
		run.Models = append(run.Models, mr)
		o.setState(StateEvent{RunID: run.ID, State: StateFinished, Model: m.Name, ModelIndex: i})
	}

	run.Cancelled = ctx.Err() != nil
	run.Finished = time.Now()

	o.mu.Lock()
	o.last = run
	o.mu.Unlock()

	o.setState(StateEvent{RunID: run.ID, State: StateIdle, ModelIndex: -1})

	s := run.Models.Summary()
	o.debugLog("run finished", "run", run.ID, "cancelled", run.Cancelled,
		"success", s.Success, "response", s.Response, "failure", s.Failure,
		"duration", run.Duration())
	return run
}

// TestModel runs one model with cfg without publishing a run or touching
// the stored configuration.
func (o *Orchestrator) TestModel(ctx context.Context, cfg RunConfig, m *model.FunctionalModel) ModelResult {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	return o.testModel(ctx, o.newTester(cfg, ""), cfg, "", m)
}

func (o *Orchestrator) testModel(ctx context.Context, tester *ElementTester, cfg RunConfig, runID string, m *model.FunctionalModel) ModelResult {
	res := ModelResult{Name: m.Name, Key: m.Key, Started: time.Now()}

	for i, el := range m.Elements {
		if ctx.Err() != nil {
			break
		}
		el.Refresh()
		er := tester.TestElement(ctx, el)
		er.Index = i
		res.Elements = append(res.Elements, er)
		o.logVerdicts(runID, m, er)

		if er.Tested() && cfg.Latency > 0 {
			if !sleep(ctx, cfg.Latency) {
				break
			}
		}
	}
	res.Finished = time.Now()
	return res
}

func (o *Orchestrator) merge(timeout, latency time.Duration) RunConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	if timeout >= 0 {
		o.config.Timeout = timeout
	}
	if latency > 0 {
		o.config.Latency = latency
	}
	return o.config
}

func (o *Orchestrator) newTester(cfg RunConfig, runID string) *ElementTester {
	return NewElementTester(o.gateway, TesterConfig{
		RunConfig:      cfg,
		RunID:          runID,
		ProtocolLogger: o.plog,
		Logger:         o.logger,
	})
}

func (o *Orchestrator) setState(ev StateEvent) {
	ev.Time = time.Now()

	o.mu.Lock()
	old := o.state
	o.state = ev.State
	observers := slices.Clone(o.observers)
	o.mu.Unlock()

	entity := log.StateEntityModel
	if ev.State == StateIdle {
		entity = log.StateEntityRun
	}
	o.plog.Log(log.Event{
		Timestamp: ev.Time,
		RunID:     ev.RunID,
		Layer:     log.LayerEngine,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			Name:     ev.Model,
			OldState: old.String(),
			NewState: ev.State.String(),
		},
	})

	for _, fn := range observers {
		fn(ev)
	}
}

func (o *Orchestrator) logVerdicts(runID string, m *model.FunctionalModel, er ElementResult) {
	if er.Err != nil {
		o.plog.Log(log.Event{
			Timestamp: time.Now(),
			RunID:     runID,
			Layer:     log.LayerEngine,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerEngine,
				Message: er.Err.Error(),
				Context: m.Name,
			},
		})
		return
	}

	el := m.Elements[er.Index]
	for _, row := range er.Rows {
		for j, v := range row.Verdicts {
			o.plog.Log(log.Event{
				Timestamp: time.Now(),
				RunID:     runID,
				Layer:     log.LayerEngine,
				Category:  log.CategoryVerdict,
				Verdict: &log.VerdictEvent{
					Model:    m.Name,
					ModelKey: m.Key,
					Element:  er.Index,
					Row:      row.Row,
					Column:   j,
					Address:  el.Feedbacks[j].Address,
					Expected: el.Feedbacks[j].ValueAt(row.Row),
					Result:   v.String(),
					Elapsed:  row.Elapsed[j],
				},
			})
		}
	}
}

// debugLog logs a debug message if logging is enabled.
func (o *Orchestrator) debugLog(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
