// Package commands implements the hsmp-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
)

// FilterOptions holds the string-form filter flags shared by the view
// and filter commands.
type FilterOptions struct {
	ClientID  string
	Layer     string
	Direction string
	Category  string
	Socket    int
	Message   string
	TimeStart string
	TimeEnd   string
}

// buildFilter parses the option strings into a log.Filter.
func buildFilter(opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{ClientID: opts.ClientID}

	if opts.Layer != "" {
		l, err := parseLayer(opts.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if opts.Direction != "" {
		d, err := parseDirection(opts.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if opts.Category != "" {
		c, err := parseCategory(opts.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if opts.Socket >= 0 {
		socket := opts.Socket
		filter.Socket = &socket
	}
	if opts.Message != "" {
		id, err := strconv.ParseUint(opts.Message, 0, 32)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid message id %q: %w", opts.Message, err)
		}
		msgID := uint32(id)
		filter.MessageID = &msgID
	}
	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "register":
		return log.LayerRegister, nil
	case "mailbox":
		return log.LayerMailbox, nil
	case "lifecycle":
		return log.LayerLifecycle, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be register, mailbox, or lifecycle)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "access":
		return log.CategoryAccess, nil
	case "exchange":
		return log.CategoryExchange, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be access, exchange, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, opts FilterOptions, output io.Writer) error {
	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
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

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	client := shortenClientID(event.ClientID)

	var typeLabel string
	switch {
	case event.Register != nil:
		typeLabel = "Register"
	case event.Mailbox != nil:
		typeLabel = mailboxLabel(event.Mailbox)
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [client:%s] %-3s %s %s\n",
		ts, client, event.Direction.String(), event.Layer.String(), typeLabel)

	switch {
	case event.Register != nil:
		formatRegisterDetails(w, event, event.Register)
	case event.Mailbox != nil:
		formatMailboxDetails(w, event, event.Mailbox)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenClientID returns the first 8 characters of the client ID.
func shortenClientID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func mailboxLabel(mb *log.MailboxEvent) string {
	if mb.Name != "" {
		return mb.Name
	}
	return fmt.Sprintf("Message(0x%02X)", mb.MessageID)
}

func formatRegisterDetails(w io.Writer, event log.Event, reg *log.RegisterEvent) {
	op := "read"
	if reg.Write {
		op = "write"
	}
	fmt.Fprintf(w, "  %s %s 0x%08X = 0x%08X\n", reg.Port, op, reg.Address, reg.Value)
	if event.Device != "" {
		fmt.Fprintf(w, "  Device: %s\n", event.Device)
	}
}

func formatMailboxDetails(w io.Writer, event log.Event, mb *log.MailboxEvent) {
	fmt.Fprintf(w, "  MessageID: 0x%02X\n", mb.MessageID)
	fmt.Fprintf(w, "  Socket: %d\n", event.Socket)
	if len(mb.Args) > 0 {
		fmt.Fprintf(w, "  Args: %s\n", formatWords(mb.Args))
	}
	fmt.Fprintf(w, "  Status: 0x%02X\n", mb.Status)
	if len(mb.Response) > 0 {
		fmt.Fprintf(w, "  Response: %s\n", formatWords(mb.Response))
	}
	fmt.Fprintf(w, "  Polls: %d  Duration: %s\n", mb.Polls, formatDuration(mb.Elapsed))
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", e.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Code != nil {
		fmt.Fprintf(w, "  Code: 0x%02X\n", *e.Code)
	}
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// formatWords renders a word slice as hex, the way register dumps read.
func formatWords(words []uint32) string {
	parts := make([]string, len(words))
	for i, word := range words {
		parts[i] = fmt.Sprintf("0x%08X", word)
	}
	return strings.Join(parts, " ")
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
