package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	VerdictsByResult  map[string]int
	Runs              map[string]*RunSummary
	Addresses         map[string]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// RunSummary holds statistics for a single test run.
type RunSummary struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Models    int
	Verdicts  int
	Failures  int
}

// CollectStats reads the log file and aggregates its events.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		VerdictsByResult:  make(map[string]int),
		Runs:              make(map[string]*RunSummary),
		Addresses:         make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	if event.Telegram != nil {
		s.EventsByDirection[event.Direction]++
		s.Addresses[event.Telegram.Destination]++
	}

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.Error != nil {
		s.Errors++
	}
	if event.Verdict != nil {
		s.VerdictsByResult[event.Verdict.Result]++
	}

	if event.RunID == "" {
		return
	}
	run, ok := s.Runs[event.RunID]
	if !ok {
		run = &RunSummary{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Runs[event.RunID] = run
	}
	run.Events++
	if event.Timestamp.After(run.LastSeen) {
		run.LastSeen = event.Timestamp
	}
	if sc := event.StateChange; sc != nil && sc.Entity == log.StateEntityModel && sc.NewState == "RUNNING" {
		run.Models++
	}
	if event.Verdict != nil {
		run.Verdicts++
		if event.Verdict.Result == "FAILURE" {
			run.Failures++
		}
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== KNX Test Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerBus, log.LayerEngine} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryTelegram, log.CategoryVerdict, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Telegrams by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.VerdictsByResult) > 0 {
		fmt.Fprintln(w, "Verdicts:")
		for _, result := range []string{"SUCCESS", "RESPONSE", "FAILURE"} {
			if count := stats.VerdictsByResult[result]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", result+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	if len(stats.Addresses) > 0 {
		addrs := make([]string, 0, len(stats.Addresses))
		for a := range stats.Addresses {
			addrs = append(addrs, a)
		}
		sort.Slice(addrs, func(i, j int) bool {
			if stats.Addresses[addrs[i]] != stats.Addresses[addrs[j]] {
				return stats.Addresses[addrs[i]] > stats.Addresses[addrs[j]]
			}
			return addrs[i] < addrs[j]
		})
		fmt.Fprintf(w, "Group Addresses: %d\n", len(addrs))
		for _, a := range addrs {
			fmt.Fprintf(w, "  %-12s %d\n", a, stats.Addresses[a])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Runs: %d\n", len(stats.Runs))
	if len(stats.Runs) > 0 {
		type runInfo struct {
			id    string
			stats *RunSummary
		}
		runs := make([]runInfo, 0, len(stats.Runs))
		for id, rs := range stats.Runs {
			runs = append(runs, runInfo{id, rs})
		}
		sort.Slice(runs, func(i, j int) bool {
			return runs[i].stats.FirstSeen.Before(runs[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, r := range runs {
			duration := r.stats.LastSeen.Sub(r.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenRunID(r.id), r.stats.Events, duration)
			fmt.Fprintf(w, "             Models: %d  Verdicts: %d  Failures: %d\n",
				r.stats.Models, r.stats.Verdicts, r.stats.Failures)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
