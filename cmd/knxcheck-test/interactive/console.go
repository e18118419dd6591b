// Package interactive provides the interactive console of knxcheck-test.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/knxcheck/knxcheck-go/internal/functest/engine"
	"github.com/knxcheck/knxcheck-go/internal/functest/reporter"
	"github.com/knxcheck/knxcheck-go/internal/functest/runner"
	"github.com/knxcheck/knxcheck-go/pkg/bus"
	"github.com/knxcheck/knxcheck-go/pkg/dpt"
	"github.com/knxcheck/knxcheck-go/pkg/model"
)

// Console is a readline shell over a started runner.
type Console struct {
	runner *runner.Runner
	rl     *readline.Instance

	// Passed to TestAll; -1 and 0 keep the stored values.
	timeout time.Duration
	latency time.Duration

	verbose bool
}

// New creates a console. The runner must already be started.
func New(r *runner.Runner) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "knx> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{
		runner:  r,
		rl:      rl,
		timeout: -1,
	}
	r.Orchestrator().OnStateChange(c.handleState)
	return c, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "models", "m":
			c.cmdModels()

		case "show", "s":
			c.cmdShow(args)

		case "run", "r":
			c.cmdRun(ctx, args)

		case "results":
			c.cmdResults()

		case "timeout":
			c.cmdTimeout(args)

		case "latency":
			c.cmdLatency(args)

		case "verbose", "v":
			c.verbose = !c.verbose
			fmt.Fprintf(c.rl.Stdout(), "Verbose: %v\n", c.verbose)

		case "write", "w":
			c.cmdWrite(ctx, args)

		case "read":
			c.cmdRead(ctx, args)

		case "watch":
			c.cmdWatch(ctx, args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
KNX Functional Test Commands:
  Models:
    models               - List loaded functional models
    show <key>           - Show the elements and test values of a model

  Testing:
    run [key...]         - Test all models, or the given ones
    results              - Report the last run again
    timeout <dur>        - Row timeout for the next run (e.g. 2s)
    latency <dur>        - Pause after each element for the next run
    verbose              - Toggle listing of passing rows

  Bus:
    write <ga> <type> <value> - Send a group write (value: int, true, false)
    read <ga>                 - Send a group read
    watch <ga> [dur]          - Print telegrams on an address (default 5s)

  General:
    help                 - Show this help
    quit                 - Exit`)
}

func (c *Console) handleState(ev engine.StateEvent) {
	switch ev.State {
	case engine.StateRunning:
		fmt.Fprintf(c.rl.Stdout(), "-> %s\n", ev.Model)
	case engine.StateFinished:
		fmt.Fprintf(c.rl.Stdout(), "<- %s\n", ev.Model)
	}
}

func (c *Console) cmdModels() {
	models := c.runner.Library().Models()
	if len(models) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No models loaded")
		return
	}
	for _, m := range models {
		status := "ok"
		if err := m.Validate(); err != nil {
			status = "untestable elements"
		}
		fmt.Fprintf(c.rl.Stdout(), "  %3d  %-30s %d elements (%s)\n", m.Key, m.Name, len(m.Elements), status)
	}
}

func (c *Console) model(arg string) (*model.FunctionalModel, bool) {
	key, err := strconv.Atoi(arg)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid key: %s\n", arg)
		return nil, false
	}
	m, err := c.runner.Library().Get(key)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return nil, false
	}
	return m, true
}

func (c *Console) cmdShow(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: show <key>")
		return
	}
	m, ok := c.model(args[0])
	if !ok {
		return
	}

	out := c.rl.Stdout()
	fmt.Fprintf(out, "%s (key %d)\n", m.Name, m.Key)
	for i, el := range m.Elements {
		fmt.Fprintf(out, "  Element %d\n", i+1)
		printDPT(out, "cmd", el.Command)
		for j, fb := range el.Feedbacks {
			printDPT(out, fmt.Sprintf("fb%d", j+1), fb)
		}
		if err := el.Validate(); err != nil {
			fmt.Fprintf(out, "    Untestable: %v\n", err)
		}
	}
}

func printDPT(w io.Writer, label string, d *dpt.DPT) {
	if d == nil {
		fmt.Fprintf(w, "    %-4s -\n", label)
		return
	}
	values := make([]string, d.Len())
	for i, v := range d.Values() {
		values[i] = v.String()
	}
	addr := d.Address
	if addr == "" {
		addr = "-"
	}
	fmt.Fprintf(w, "    %-4s %-10s %-8s [%s]\n", label, addr, d.Type, strings.Join(values, " "))
}

func (c *Console) cmdRun(ctx context.Context, args []string) {
	var models []*model.FunctionalModel
	if len(args) == 0 {
		models = c.runner.Models()
	}
	for _, a := range args {
		m, ok := c.model(a)
		if !ok {
			return
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No models to run")
		return
	}

	run := c.runner.Orchestrator().TestAll(ctx, models, c.timeout, c.latency)
	reporter.NewTextReporter(c.rl.Stdout(), c.verbose).ReportRun(run)
}

func (c *Console) cmdResults() {
	run := c.runner.Orchestrator().Results()
	if run == nil {
		fmt.Fprintln(c.rl.Stdout(), "No run yet")
		return
	}
	reporter.NewTextReporter(c.rl.Stdout(), c.verbose).ReportRun(run)
}

func (c *Console) cmdTimeout(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(c.rl.Stdout(), "Timeout: %s\n", c.runner.Orchestrator().Config().Timeout)
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d < 0 {
		fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %s\n", args[0])
		return
	}
	c.timeout = d
}

func (c *Console) cmdLatency(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(c.rl.Stdout(), "Latency: %s\n", c.runner.Orchestrator().Config().Latency)
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d <= 0 {
		fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %s (must be positive)\n", args[0])
		return
	}
	c.latency = d
}

func (c *Console) cmdWrite(ctx context.Context, args []string) {
	if len(args) != 3 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: write <ga> <type> <value>")
		return
	}
	code, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid type: %s\n", args[1])
		return
	}
	v, err := parseValue(args[2])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid value: %v\n", err)
		return
	}

	d := dpt.New(dpt.Code(code), args[0], dpt.Some(v))
	if err := d.Validate(); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if err := c.runner.Gateway().Write(ctx, args[0], bus.PayloadFor(d, v)); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Sent %d to %s\n", v, args[0])
}

func (c *Console) cmdRead(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: read <ga>")
		return
	}
	gw := c.runner.Gateway()
	coll, err := gw.Collect(ctx, args[0], 2*time.Second)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	defer coll.Close()

	if err := gw.Read(ctx, args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	msgs := coll.Wait(ctx)
	if len(msgs) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No answer")
		return
	}
	for _, m := range msgs {
		printMessage(c.rl.Stdout(), m)
	}
}

func (c *Console) cmdWatch(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: watch <ga> [dur]")
		return
	}
	window := 5 * time.Second
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %s\n", args[1])
			return
		}
		window = d
	}

	coll, err := c.runner.Gateway().Collect(ctx, args[0], window)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	<-coll.Done()

	msgs := coll.Messages()
	fmt.Fprintf(c.rl.Stdout(), "%d telegrams on %s\n", len(msgs), args[0])
	for _, m := range msgs {
		printMessage(c.rl.Stdout(), m)
	}
}

func printMessage(w io.Writer, m bus.Message) {
	fmt.Fprintf(w, "  %s  %-8s %s -> %s  % X\n",
		m.Received.Format("15:04:05.000"), m.Kind, m.Source, m.Destination, m.Payload)
}

func parseValue(s string) (int64, error) {
	switch strings.ToLower(s) {
	case "true", "on":
		return 1, nil
	case "false", "off":
		return 0, nil
	}
	return strconv.ParseInt(s, 0, 64)
}
