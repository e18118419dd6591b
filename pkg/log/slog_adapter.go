package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger at debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event as one record.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.RunID != "" {
		attrs = append(attrs, slog.String("run_id", event.RunID))
	}

	switch {
	case event.Telegram != nil:
		attrs = append(attrs,
			slog.String("src", event.Telegram.Source),
			slog.String("dst", event.Telegram.Destination),
			slog.String("service", event.Telegram.Service),
		)
		if len(event.Telegram.Data) > 0 {
			attrs = append(attrs, slog.Any("data", event.Telegram.Data))
		}
	case event.Verdict != nil:
		attrs = append(attrs,
			slog.String("model", event.Verdict.Model),
			slog.Int("element", event.Verdict.Element),
			slog.Int("row", event.Verdict.Row),
			slog.Int("column", event.Verdict.Column),
			slog.String("address", event.Verdict.Address),
			slog.String("expected", event.Verdict.Expected.String()),
			slog.String("result", event.Verdict.Result),
		)
		if event.Verdict.Elapsed > 0 {
			attrs = append(attrs, slog.Duration("elapsed", event.Verdict.Elapsed))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Name != "" {
			attrs = append(attrs, slog.String("name", event.StateChange.Name))
		}
		if event.StateChange.OldState != "" {
			attrs = append(attrs, slog.String("old_state", event.StateChange.OldState))
		}
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "capture", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
