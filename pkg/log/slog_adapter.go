package log

import (
	"context"
	"fmt"
	"log/slog"
)

// SlogAdapter writes client events to an slog.Logger.
// Useful for development when you want to see mailbox traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("client_id", event.ClientID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	// Add optional identifiers
	if event.Device != "" {
		attrs = append(attrs, slog.String("device", event.Device))
	}
	if event.Socket != 0 || event.Mailbox != nil {
		attrs = append(attrs, slog.Int("socket", event.Socket))
	}

	// Add type-specific attributes
	switch {
	case event.Register != nil:
		attrs = append(attrs,
			slog.String("port", event.Register.Port),
			slog.String("address", fmt.Sprintf("0x%08X", event.Register.Address)),
			slog.String("value", fmt.Sprintf("0x%08X", event.Register.Value)),
			slog.Bool("write", event.Register.Write),
		)
	case event.Mailbox != nil:
		attrs = append(attrs,
			slog.Uint64("msg_id", uint64(event.Mailbox.MessageID)),
			slog.String("status", fmt.Sprintf("0x%02X", event.Mailbox.Status)),
			slog.Int("polls", event.Mailbox.Polls),
			slog.Duration("elapsed", event.Mailbox.Elapsed),
		)
		if event.Mailbox.Name != "" {
			attrs = append(attrs, slog.String("msg_name", event.Mailbox.Name))
		}
		if len(event.Mailbox.Args) > 0 {
			attrs = append(attrs, slog.Any("args", event.Mailbox.Args))
		}
		if len(event.Mailbox.Response) > 0 {
			attrs = append(attrs, slog.Any("response", event.Mailbox.Response))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Uint64("status_code", uint64(*event.Error.Code)))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "hsmp", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
