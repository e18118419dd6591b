// Package engine runs functional models against a KNX installation and
// builds the verdict table.
package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/log"
)

// Result is the verdict for one feedback column of one row. The three
// values are distinct classifications, not a severity scale.
type Result uint8

const (
	// Failure means nothing matching arrived before the row deadline. It is
	// also the state of a column that is still undecided.
	Failure Result = iota

	// Success means the expected value was pushed, or no value was expected.
	Success

	// Response means something answered on the address but did not confirm
	// the expected value.
	Response
)

// String returns the verdict name.
func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case Response:
		return "RESPONSE"
	case Failure:
		return "FAILURE"
	default:
		return fmt.Sprintf("RESULT(%d)", uint8(r))
	}
}

// MarshalText encodes the verdict as a lowercase name.
func (r Result) MarshalText() ([]byte, error) {
	switch r {
	case Success, Response, Failure:
		return []byte(strings.ToLower(r.String())), nil
	}
	return nil, fmt.Errorf("unknown result %d", uint8(r))
}

// UnmarshalText accepts the names produced by MarshalText, in any case.
func (r *Result) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "success":
		*r = Success
	case "response":
		*r = Response
	case "failure":
		*r = Failure
	default:
		return fmt.Errorf("unknown result %q", text)
	}
	return nil
}

// RowResult holds the verdicts of one test case, one per feedback column.
type RowResult struct {
	// Row is the test case index.
	Row int

	// Verdicts are in feedback column order. An element without feedback
	// datapoints yields an empty slice.
	Verdicts []Result

	// Elapsed is the time from the start of the row to the decision of each
	// column.
	Elapsed []time.Duration

	// Err records a gateway fault that degraded the row.
	Err error
}

// Passed reports whether every column succeeded and no fault occurred.
func (r RowResult) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, v := range r.Verdicts {
		if v != Success {
			return false
		}
	}
	return true
}

// ElementResult holds the rows of one tested element.
type ElementResult struct {
	// Index is the element position within its model.
	Index int

	// Command is the command address.
	Command string

	// Feedbacks are the feedback addresses in column order.
	Feedbacks []string

	Rows []RowResult

	// Err is set when the element could not be run. No rows are present.
	Err error
}

// Tested reports whether the element was run.
func (e ElementResult) Tested() bool {
	return e.Err == nil
}

// Passed reports whether the element was run and every row passed.
func (e ElementResult) Passed() bool {
	if e.Err != nil {
		return false
	}
	for _, r := range e.Rows {
		if !r.Passed() {
			return false
		}
	}
	return true
}

// ModelResult holds the elements of one functional model.
type ModelResult struct {
	Name     string
	Key      int
	Elements []ElementResult
	Started  time.Time
	Finished time.Time
}

// Duration is the time spent testing the model.
func (m ModelResult) Duration() time.Duration {
	return m.Finished.Sub(m.Started)
}

// Passed reports whether every element passed.
func (m ModelResult) Passed() bool {
	for _, e := range m.Elements {
		if !e.Passed() {
			return false
		}
	}
	return true
}

// Results is the verdict table: model, element, row, column.
type Results []ModelResult

// Verdict returns the verdict at the given position.
func (r Results) Verdict(model, element, row, column int) (Result, bool) {
	if model < 0 || model >= len(r) {
		return Failure, false
	}
	els := r[model].Elements
	if element < 0 || element >= len(els) {
		return Failure, false
	}
	rows := els[element].Rows
	if row < 0 || row >= len(rows) {
		return Failure, false
	}
	vs := rows[row].Verdicts
	if column < 0 || column >= len(vs) {
		return Failure, false
	}
	return vs[column], true
}

// Summary counts verdicts across a table.
type Summary struct {
	Models     int `json:"models"`
	Elements   int `json:"elements"`
	Untestable int `json:"untestable"`
	Rows       int `json:"rows"`
	Faults     int `json:"faults"`
	Success    int `json:"success"`
	Response   int `json:"response"`
	Failure    int `json:"failure"`
}

// Summary tallies the table.
func (r Results) Summary() Summary {
	var s Summary
	s.Models = len(r)
	for _, m := range r {
		for _, e := range m.Elements {
			s.Elements++
			if e.Err != nil {
				s.Untestable++
				continue
			}
			for _, row := range e.Rows {
				s.Rows++
				if row.Err != nil {
					s.Faults++
				}
				for _, v := range row.Verdicts {
					switch v {
					case Success:
						s.Success++
					case Response:
						s.Response++
					default:
						s.Failure++
					}
				}
			}
		}
	}
	return s
}

// Run is a published test run.
type Run struct {
	// ID is a UUID identifying the run in protocol captures.
	ID string

	Started  time.Time
	Finished time.Time

	// Cancelled is set when the caller stopped the run early. Models holds
	// whatever completed before that.
	Cancelled bool

	// Config is the configuration the run used.
	Config RunConfig

	Models Results
}

// Duration is the wall time of the run.
func (r *Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// State is the orchestrator lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// StateEvent is delivered to lifecycle observers.
type StateEvent struct {
	RunID string
	State State

	// Model is the model the transition refers to. Empty for the final
	// transition to Idle.
	Model      string
	ModelIndex int

	Time time.Time
}

// Config configures the orchestrator.
type Config struct {
	// Timeout bounds the wait for feedback of one row.
	Timeout time.Duration

	// Latency is the pause after each tested element. Zero disables it.
	Latency time.Duration

	// ReadFeedback issues a group read on every undecided feedback address
	// after the command write.
	ReadFeedback bool

	// ProtocolLogger receives lifecycle, verdict and error events.
	// If nil, no capture is made.
	ProtocolLogger log.Logger

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 2 * time.Second,
	}
}

// RunConfig is the immutable configuration of one run.
type RunConfig struct {
	Timeout      time.Duration
	Latency      time.Duration
	ReadFeedback bool
}
