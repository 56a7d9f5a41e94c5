package log

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// SlogAdapter writes capture events to an slog.Logger. Records carry the
// event timestamp. Data events log at Debug, errors and waiting or failed
// states at Warn, everything else at Info.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func levelOf(event Event) slog.Level {
	switch {
	case event.Data != nil:
		return slog.LevelDebug
	case event.Error != nil:
		return slog.LevelWarn
	case event.StateChange != nil:
		switch event.StateChange.NewState {
		case "waiting", "failed":
			return slog.LevelWarn
		}
	}
	return slog.LevelInfo
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	level := levelOf(event)
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("entity", event.Entity.String()),
		slog.String("category", event.Category.String()),
		slog.String("role", event.Role.String()),
	}

	if event.LocalAddr != "" {
		attrs = append(attrs, slog.String("local", event.LocalAddr))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Data != nil:
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.Int("size", event.Data.Size),
			slog.Bool("truncated", event.Data.Truncated),
		)
		if event.Data.EndOfStream {
			attrs = append(attrs, slog.Bool("eos", true))
		}
	case event.Lifecycle != nil:
		attrs = append(attrs, slog.String("action", event.Lifecycle.Action.String()))
		if event.Lifecycle.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Lifecycle.Detail))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_kind", event.Error.Kind),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r := slog.NewRecord(ts, level, "socket "+strings.ToLower(event.Category.String()), 0)
	r.AddAttrs(attrs...)
	_ = a.logger.Handler().Handle(ctx, r)
}

var _ Logger = (*SlogAdapter)(nil)
