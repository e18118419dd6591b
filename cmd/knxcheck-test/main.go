// Command knxcheck-test runs KNX functional models against an installation.
//
// Each model element writes its command values to the bus and checks the
// status and read replies arriving on its feedback addresses.
//
// Usage:
//
//	knxcheck-test [flags] [model-pattern]
//
// Flags:
//
//	-models string         Model file or directory (default "./models")
//	-installation string   Simulated installation file
//	-timeout duration      Wait for feedback per row (default 2s)
//	-latency duration      Pause after each tested element
//	-read-feedback         Send group reads to feedback addresses after writes
//	-verbose               Enable verbose output
//	-json                  Output results as JSON
//	-junit                 Output results as JUnit XML
//	-protocol-log string   File path for protocol event logging (CBOR format)
//	-interactive           Start the interactive console instead of a single run
//
// Examples:
//
//	# Test all models against a simulated installation
//	knxcheck-test -models ./models -installation site.yaml
//
//	# Test kitchen models with a longer timeout and JUnit output
//	knxcheck-test -installation site.yaml -timeout 5s -junit "Kitchen*"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knxcheck/knxcheck-go/cmd/knxcheck-test/interactive"
	"github.com/knxcheck/knxcheck-go/internal/functest/engine"
	"github.com/knxcheck/knxcheck-go/internal/functest/runner"
	knxlog "github.com/knxcheck/knxcheck-go/pkg/log"
)

var (
	models       = flag.String("models", "./models", "Model file or directory")
	installation = flag.String("installation", "", "Simulated installation file")
	timeout      = flag.Duration("timeout", 2*time.Second, "Wait for feedback per row")
	latency      = flag.Duration("latency", 0, "Pause after each tested element")
	readFeedback = flag.Bool("read-feedback", false, "Send group reads to feedback addresses after writes")
	verbose      = flag.Bool("verbose", false, "Enable verbose output")
	jsonOut      = flag.Bool("json", false, "Output results as JSON")
	junitOut     = flag.Bool("junit", false, "Output results as JUnit XML")
	protocolLog  = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	interact     = flag.Bool("interactive", false, "Start the interactive console")
)

func main() {
	flag.Parse()

	opts := options{
		models:       *models,
		installation: *installation,
		timeout:      *timeout,
		latency:      *latency,
		readFeedback: *readFeedback,
		verbose:      *verbose,
		protocolLog:  *protocolLog,
		interactive:  *interact,
		outputFormat: "text",
		stdout:       os.Stdout,
	}
	if flag.NArg() > 0 {
		opts.pattern = flag.Arg(0)
	}
	if *jsonOut {
		opts.outputFormat = "json"
	} else if *junitOut {
		opts.outputFormat = "junit"
	}

	if opts.installation == "" {
		fmt.Fprintln(os.Stderr, "Error: an installation is required (-installation)")
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(opts))
}

// options carries the parsed command line into run.
type options struct {
	models       string
	installation string
	pattern      string
	timeout      time.Duration
	latency      time.Duration
	readFeedback bool
	verbose      bool
	protocolLog  string
	interactive  bool
	outputFormat string
	stdout       io.Writer
}

// run executes one session and returns the process exit code. The runner
// and the capture file are closed before it returns.
func run(opts options) int {
	var logger *slog.Logger
	if opts.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if opts.outputFormat == "text" {
		log.SetFlags(log.Ltime)
		if opts.verbose {
			log.SetFlags(log.Ltime | log.Lmicroseconds)
		}
		printBanner(opts.stdout)
		log.Printf("Models: %s", opts.models)
		log.Printf("Installation: %s", opts.installation)
		if opts.pattern != "" {
			log.Printf("Pattern: %s", opts.pattern)
		}
		log.Println()
	}

	var protocolLogger knxlog.Logger
	if opts.protocolLog != "" {
		fileLogger, err := knxlog.NewFileLogger(opts.protocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			return 1
		}
		defer fileLogger.Close()
		protocolLogger = fileLogger
		if opts.outputFormat == "text" {
			log.Printf("Protocol logging to: %s", opts.protocolLog)
		}
	}
	if logger != nil {
		adapter := knxlog.NewSlogAdapter(logger)
		if protocolLogger != nil {
			protocolLogger = knxlog.NewMultiLogger(protocolLogger, adapter)
		} else {
			protocolLogger = adapter
		}
	}

	r := runner.New(&runner.Config{
		Models:         opts.models,
		Installation:   opts.installation,
		Pattern:        opts.pattern,
		Timeout:        opts.timeout,
		Latency:        opts.latency,
		ReadFeedback:   opts.readFeedback,
		Verbose:        opts.verbose,
		Output:         opts.stdout,
		OutputFormat:   opts.outputFormat,
		ProtocolLogger: protocolLogger,
		Logger:         logger,
	})
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.interactive {
		if err := runInteractive(ctx, cancel, r); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	result, err := r.Run(ctx)
	if err != nil {
		if opts.outputFormat == "text" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			log.Printf("Error: %v", err)
		}
		return 1
	}

	if !passed(result) {
		return 1
	}
	return 0
}

func runInteractive(ctx context.Context, cancel context.CancelFunc, r *runner.Runner) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	console, err := interactive.New(r)
	if err != nil {
		return err
	}
	console.Run(ctx, cancel)
	return nil
}

func passed(run *engine.Run) bool {
	if run.Cancelled {
		return false
	}
	for _, m := range run.Models {
		if !m.Passed() {
			return false
		}
	}
	return true
}

func printBanner(w io.Writer) {
	fmt.Fprint(w, `
 _  ___   ___  __      _               _
| |/ / \ | \ \/ /  ___| |__   ___  ___| | __
| ' /|  \| |\  /  / __| '_ \ / _ \/ __| |/ /
| . \| |\  |/  \ | (__| | | |  __/ (__|   <
|_|\_\_| \_/_/\_\ \___|_| |_|\___|\___|_|\_\

Functional Model Test Runner
`)
}
