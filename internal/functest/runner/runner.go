// Package runner wires model loading, the bus monitor, the orchestrator
// and a reporter into one test session.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knxcheck/knxcheck-go/internal/functest/engine"
	"github.com/knxcheck/knxcheck-go/internal/functest/loader"
	"github.com/knxcheck/knxcheck-go/internal/functest/reporter"
	"github.com/knxcheck/knxcheck-go/internal/functest/sim"
	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/log"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

// Runner errors.
var (
	// ErrNoLink is returned when neither a link nor an installation file
	// is configured.
	ErrNoLink = errors.New("no bus link configured")

	// ErrNoModels is returned when no model matches the filters.
	ErrNoModels = errors.New("no functional models found")
)

// Config configures the test runner.
type Config struct {
	// Models is a model file or a directory of model files.
	Models string

	// Installation is a simulated installation file. It is used when Link
	// is nil.
	Installation string

	// Link is the bus link to test against.
	Link bus.Link

	// Pattern selects models by name. Comma-separated; "*" wildcards at
	// either end.
	Pattern string

	// Timeout bounds the wait for feedback of one row.
	Timeout time.Duration

	// Latency is the pause after each tested element.
	Latency time.Duration

	// ReadFeedback issues group reads on feedback addresses after writes.
	ReadFeedback bool

	// Verbose lists every row in text output.
	Verbose bool

	// Output receives the report. Defaults to os.Stdout.
	Output io.Writer

	// OutputFormat is "text", "json", or "junit".
	OutputFormat string

	// ProtocolLogger receives telegram, verdict and lifecycle events.
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Runner runs functional models against a bus link.
type Runner struct {
	config       *Config
	reporter     reporter.Reporter
	library      *model.Library
	link         bus.Link
	monitor      *bus.Monitor
	orchestrator *engine.Orchestrator
}

// New creates a runner. Nothing is loaded or connected until Start.
func New(config *Config) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	r := &Runner{
		config:  config,
		library: model.NewLibrary(),
	}

	switch config.OutputFormat {
	case "json":
		r.reporter = reporter.NewJSONReporter(config.Output, true)
	case "junit":
		r.reporter = reporter.NewJUnitReporter(config.Output)
	default:
		r.reporter = reporter.NewTextReporter(config.Output, config.Verbose)
	}
	return r
}

// Start loads the models and connects the monitor to the link.
func (r *Runner) Start(ctx context.Context) error {
	if r.config.Models != "" {
		_, dups, err := loader.LoadLibrary(r.library, r.config.Models)
		if err != nil {
			return fmt.Errorf("failed to load models: %w", err)
		}
		if dups > 0 {
			r.debugLog("duplicate models skipped", "count", dups)
		}
	}

	link := r.config.Link
	if link == nil {
		if r.config.Installation == "" {
			return ErrNoLink
		}
		doc, err := loader.LoadInstallation(r.config.Installation)
		if err != nil {
			return fmt.Errorf("failed to load installation: %w", err)
		}
		inst, err := doc.Build(sim.Config{Logger: r.config.Logger})
		if err != nil {
			return fmt.Errorf("failed to build installation: %w", err)
		}
		link = inst
	}
	r.link = link

	r.monitor = bus.NewMonitor(link, bus.MonitorConfig{
		ProtocolLogger: r.config.ProtocolLogger,
		Logger:         r.config.Logger,
	})
	if err := r.monitor.Start(ctx); err != nil {
		return err
	}

	cfg := engine.DefaultConfig()
	if r.config.Timeout > 0 {
		cfg.Timeout = r.config.Timeout
	}
	cfg.Latency = r.config.Latency
	cfg.ReadFeedback = r.config.ReadFeedback
	cfg.ProtocolLogger = r.config.ProtocolLogger
	cfg.Logger = r.config.Logger
	r.orchestrator = engine.NewOrchestrator(r.monitor, cfg)
	return nil
}

// Library returns the loaded models.
func (r *Runner) Library() *model.Library {
	return r.library
}

// Orchestrator returns the orchestrator. It is nil before Start.
func (r *Runner) Orchestrator() *engine.Orchestrator {
	return r.orchestrator
}

// Gateway returns the bus gateway. It is nil before Start.
func (r *Runner) Gateway() bus.Gateway {
	if r.monitor == nil {
		return nil
	}
	return r.monitor
}

// Reporter returns the configured reporter.
func (r *Runner) Reporter() reporter.Reporter {
	return r.reporter
}

// Models returns the loaded models matching the configured pattern.
func (r *Runner) Models() []*model.FunctionalModel {
	return filterByPattern(r.library.Models(), r.config.Pattern)
}

// Run tests the selected models and reports the run.
func (r *Runner) Run(ctx context.Context) (*engine.Run, error) {
	if r.orchestrator == nil {
		if err := r.Start(ctx); err != nil {
			return nil, err
		}
	}

	models := r.Models()
	if len(models) == 0 {
		return nil, fmt.Errorf("%w (pattern=%q)", ErrNoModels, r.config.Pattern)
	}

	run := r.orchestrator.TestAll(ctx, models, -1, 0)
	r.reporter.ReportRun(run)
	return run, nil
}

// Close stops the monitor and closes the link.
func (r *Runner) Close() error {
	if r.monitor != nil {
		r.monitor.Stop()
	}
	if r.link != nil {
		return r.link.Close()
	}
	return nil
}

// debugLog logs a debug message if logging is enabled.
func (r *Runner) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

func filterByPattern(models []*model.FunctionalModel, pattern string) []*model.FunctionalModel {
	patterns := strings.Split(pattern, ",")
	if allEmpty(patterns) {
		return models
	}
	var filtered []*model.FunctionalModel
	for _, m := range models {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if matchPattern(m.Name, p) {
				filtered = append(filtered, m)
				break
			}
		}
	}
	return filtered
}

func allEmpty(patterns []string) bool {
	for _, p := range patterns {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// matchPattern matches name against pattern with an optional "*" at
// either end.
func matchPattern(name, pattern string) bool {
	if pattern == "*" || pattern == "" {
		return true
	}

	hasPrefix := pattern[0] == '*'
	hasSuffix := pattern[len(pattern)-1] == '*'

	switch {
	case hasPrefix && hasSuffix && len(pattern) > 2:
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case hasPrefix:
		return strings.HasSuffix(name, pattern[1:])
	case hasSuffix:
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return name == pattern
}
