// Package reporter formats verdict tables.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/knxcheck/knxcheck-go/internal/functest/engine"
)

// Reporter formats and outputs test results.
type Reporter interface {
	// ReportRun reports a complete run.
	ReportRun(run *engine.Run)

	// ReportModel reports a single model.
	ReportModel(result engine.ModelResult)
}

func status(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func verdicts(vs []engine.Result) string {
	if len(vs) == 0 {
		return "(no feedback)"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}

// TextReporter outputs human-readable text reports.
type TextReporter struct {
	writer  io.Writer
	verbose bool
}

// NewTextReporter creates a new text reporter. In verbose mode every row
// is listed, otherwise only rows that did not pass.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{
		writer:  w,
		verbose: verbose,
	}
}

// ReportRun reports run results in text format.
func (r *TextReporter) ReportRun(run *engine.Run) {
	fmt.Fprintf(r.writer, "\n=== Run %s ===\n", run.ID)
	fmt.Fprintf(r.writer, "Duration: %s  Timeout: %s  Latency: %s\n",
		run.Duration().Round(time.Millisecond), run.Config.Timeout, run.Config.Latency)
	if run.Cancelled {
		fmt.Fprintf(r.writer, "Run cancelled, results are partial\n")
	}
	fmt.Fprintf(r.writer, "\n")

	for _, m := range run.Models {
		r.ReportModel(m)
	}

	s := run.Models.Summary()
	fmt.Fprintf(r.writer, "\n--- Summary ---\n")
	fmt.Fprintf(r.writer, "Models:     %d\n", s.Models)
	fmt.Fprintf(r.writer, "Elements:   %d (%d untestable)\n", s.Elements, s.Untestable)
	fmt.Fprintf(r.writer, "Rows:       %d (%d gateway faults)\n", s.Rows, s.Faults)
	fmt.Fprintf(r.writer, "Success:    %d\n", s.Success)
	fmt.Fprintf(r.writer, "Response:   %d\n", s.Response)
	fmt.Fprintf(r.writer, "Failure:    %d\n", s.Failure)

	total := s.Success + s.Response + s.Failure
	if total > 0 {
		rate := float64(s.Success) / float64(total) * 100
		fmt.Fprintf(r.writer, "Success Rate: %.1f%%\n", rate)
	}
}

// ReportModel reports a single model in text format.
func (r *TextReporter) ReportModel(result engine.ModelResult) {
	fmt.Fprintf(r.writer, "[%s] %s (%s)\n",
		status(result.Passed()), result.Name, result.Duration().Round(time.Millisecond))

	for _, el := range result.Elements {
		if !r.verbose && el.Passed() {
			continue
		}
		fmt.Fprintf(r.writer, "    Element %d: %s -> %s\n",
			el.Index+1, orDash(el.Command), strings.Join(dashAll(el.Feedbacks), ", "))

		if el.Err != nil {
			fmt.Fprintf(r.writer, "           Untestable: %v\n", el.Err)
			continue
		}
		for _, row := range el.Rows {
			if !r.verbose && row.Passed() {
				continue
			}
			fmt.Fprintf(r.writer, "      [%s] Row %d: %s\n", status(row.Passed()), row.Row+1, verdicts(row.Verdicts))
			if row.Err != nil {
				fmt.Fprintf(r.writer, "             Error: %v\n", row.Err)
			}
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashAll(ss []string) []string {
	if len(ss) == 0 {
		return []string{"-"}
	}
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = orDash(s)
	}
	return out
}

// JSONReporter outputs JSON-formatted reports.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// JSONRun is the JSON representation of a run.
type JSONRun struct {
	ID        string         `json:"id"`
	Started   time.Time      `json:"started"`
	Duration  string         `json:"duration"`
	Timeout   string         `json:"timeout"`
	Latency   string         `json:"latency"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Summary   engine.Summary `json:"summary"`
	Models    []JSONModel    `json:"models"`
}

// JSONModel is the JSON representation of a model result.
type JSONModel struct {
	Name     string        `json:"name"`
	Key      int           `json:"key,omitempty"`
	Status   string        `json:"status"`
	Duration string        `json:"duration"`
	Elements []JSONElement `json:"elements"`
}

// JSONElement is the JSON representation of an element result.
type JSONElement struct {
	Index     int       `json:"index"`
	Command   string    `json:"command"`
	Feedbacks []string  `json:"feedbacks"`
	Error     string    `json:"error,omitempty"`
	Rows      []JSONRow `json:"rows,omitempty"`
}

// JSONRow is the JSON representation of a row result.
type JSONRow struct {
	Row      int             `json:"row"`
	Verdicts []engine.Result `json:"verdicts"`
	Elapsed  []string        `json:"elapsed,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ReportRun reports run results in JSON format.
func (r *JSONReporter) ReportRun(run *engine.Run) {
	jr := JSONRun{
		ID:        run.ID,
		Started:   run.Started,
		Duration:  run.Duration().Round(time.Millisecond).String(),
		Timeout:   run.Config.Timeout.String(),
		Latency:   run.Config.Latency.String(),
		Cancelled: run.Cancelled,
		Summary:   run.Models.Summary(),
		Models:    make([]JSONModel, 0, len(run.Models)),
	}
	for _, m := range run.Models {
		jr.Models = append(jr.Models, modelToJSON(m))
	}
	r.writeJSON(jr)
}

// ReportModel reports a single model in JSON format.
func (r *JSONReporter) ReportModel(result engine.ModelResult) {
	r.writeJSON(modelToJSON(result))
}

func jsonStatus(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}

func modelToJSON(m engine.ModelResult) JSONModel {
	jm := JSONModel{
		Name:     m.Name,
		Key:      m.Key,
		Status:   jsonStatus(m.Passed()),
		Duration: m.Duration().Round(time.Millisecond).String(),
		Elements: make([]JSONElement, 0, len(m.Elements)),
	}
	for _, el := range m.Elements {
		je := JSONElement{
			Index:     el.Index,
			Command:   el.Command,
			Feedbacks: el.Feedbacks,
		}
		if je.Feedbacks == nil {
			je.Feedbacks = []string{}
		}
		if el.Err != nil {
			je.Error = el.Err.Error()
		}
		for _, row := range el.Rows {
			jrow := JSONRow{Row: row.Row, Verdicts: row.Verdicts}
			if jrow.Verdicts == nil {
				jrow.Verdicts = []engine.Result{}
			}
			for _, d := range row.Elapsed {
				jrow.Elapsed = append(jrow.Elapsed, d.Round(time.Millisecond).String())
			}
			if row.Err != nil {
				jrow.Error = row.Err.Error()
			}
			je.Rows = append(je.Rows, jrow)
		}
		jm.Elements = append(jm.Elements, je)
	}
	return jm
}

func (r *JSONReporter) writeJSON(v any) {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		fmt.Fprintf(r.writer, `{"error": "failed to marshal: %s"}`, err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
}

// JUnitReporter outputs JUnit XML format for CI integration. Each model
// becomes a test suite and each row a test case; untestable elements are
// reported as errors.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// ReportRun reports run results in JUnit XML format.
func (r *JUnitReporter) ReportRun(run *engine.Run) {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")
	fmt.Fprintf(&b, `<testsuites name="%s" time="%.3f">`, escapeXML(run.ID), run.Duration().Seconds())
	b.WriteString("\n")
	for _, m := range run.Models {
		writeSuite(&b, m)
	}
	b.WriteString("</testsuites>\n")

	fmt.Fprint(r.writer, b.String())
}

// ReportModel reports a single model as one test suite.
func (r *JUnitReporter) ReportModel(result engine.ModelResult) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")
	writeSuite(&b, result)
	fmt.Fprint(r.writer, b.String())
}

func writeSuite(b *strings.Builder, m engine.ModelResult) {
	tests, failures, errs := 0, 0, 0
	for _, el := range m.Elements {
		if el.Err != nil {
			tests++
			errs++
			continue
		}
		for _, row := range el.Rows {
			tests++
			if !row.Passed() {
				failures++
			}
		}
	}

	fmt.Fprintf(b, `  <testsuite name="%s" tests="%d" failures="%d" errors="%d" time="%.3f">`,
		escapeXML(m.Name), tests, failures, errs, m.Duration().Seconds())
	b.WriteString("\n")

	for _, el := range m.Elements {
		class := fmt.Sprintf("%s.element%d", m.Name, el.Index+1)
		if el.Err != nil {
			fmt.Fprintf(b, `    <testcase name="validate" classname="%s">`, escapeXML(class))
			b.WriteString("\n")
			fmt.Fprintf(b, `      <error message="%s"/>`, escapeXML(el.Err.Error()))
			b.WriteString("\n    </testcase>\n")
			continue
		}
		for _, row := range el.Rows {
			fmt.Fprintf(b, `    <testcase name="row %d" classname="%s">`, row.Row+1, escapeXML(class))
			b.WriteString("\n")
			if !row.Passed() {
				msg := verdicts(row.Verdicts)
				if row.Err != nil {
					msg += ": " + row.Err.Error()
				}
				fmt.Fprintf(b, `      <failure message="%s">`, escapeXML(msg))
				b.WriteString("\n      <![CDATA[")
				for j, v := range row.Verdicts {
					addr := ""
					if j < len(el.Feedbacks) {
						addr = el.Feedbacks[j]
					}
					fmt.Fprintf(b, "%s: %s\n", orDash(addr), v)
				}
				b.WriteString("]]>\n      </failure>\n")
			}
			b.WriteString("    </testcase>\n")
		}
	}
	b.WriteString("  </testsuite>\n")
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
