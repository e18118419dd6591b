// Package commands implements the knxcheck-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/knxcheck/knxcheck-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	RunID     string
	Address   string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		RunID:     f.RunID,
		Direction: f.Direction,
		Layer:     f.Layer,
		Category:  f.Category,
		Address:   f.Address,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var typeLabel string
	switch {
	case event.Telegram != nil:
		typeLabel = event.Telegram.Service
	case event.Verdict != nil:
		typeLabel = "Verdict"
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [run:%s] %-3s %s %s\n", ts, shortenRunID(event.RunID), event.Direction, event.Layer, typeLabel)

	switch {
	case event.Telegram != nil:
		formatTelegramDetails(w, event.Telegram)
	case event.Verdict != nil:
		formatVerdictDetails(w, event.Verdict)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenRunID returns the first 8 characters of the run ID, or "-".
func shortenRunID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatTelegramDetails(w io.Writer, t *log.TelegramEvent) {
	fmt.Fprintf(w, "  %s -> %s\n", t.Source, t.Destination)
	if len(t.Data) > 0 || t.Compact {
		fmt.Fprintf(w, "  Data: % X", t.Data)
		if t.Compact {
			fmt.Fprint(w, " (compact)")
		}
		fmt.Fprintln(w)
	}
}

func formatVerdictDetails(w io.Writer, v *log.VerdictEvent) {
	fmt.Fprintf(w, "  Model: %s\n", v.Model)
	fmt.Fprintf(w, "  Element %d  Row %d  Column %d\n", v.Element, v.Row, v.Column)
	if v.Address != "" {
		fmt.Fprintf(w, "  Address: %s  Expected: %s\n", v.Address, v.Expected)
	}
	fmt.Fprintf(w, "  Result: %s", v.Result)
	if v.Elapsed > 0 {
		fmt.Fprintf(w, " after %s", formatDuration(v.Elapsed))
	}
	fmt.Fprintln(w)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.Name != "" {
		fmt.Fprintf(w, "  %s: %s\n", sc.Entity, sc.Name)
	} else {
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	}
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "bus":
		return log.LayerBus, nil
	case "engine":
		return log.LayerEngine, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be bus or engine)", s)
	}
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "telegram":
		return log.CategoryTelegram, nil
	case "verdict":
		return log.CategoryVerdict, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be telegram, verdict, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
