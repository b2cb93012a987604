package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByDirection map[log.Direction]int
	Exchanges         map[uint32]*MessageStats
	Clients           map[string]int
	StateChanges      int
	Errors            int
	Timeouts          int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// MessageStats aggregates the mailbox exchanges for one message id.
type MessageStats struct {
	Name       string
	Count      int
	Failures   int
	TotalPolls int
	Elapsed    time.Duration
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByDirection: make(map[log.Direction]int),
		Exchanges:         make(map[uint32]*MessageStats),
		Clients:           make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByDirection[event.Direction]++
		if event.ClientID != "" {
			stats.Clients[event.ClientID]++
		}

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		if mb := event.Mailbox; mb != nil {
			ms, ok := stats.Exchanges[mb.MessageID]
			if !ok {
				ms = &MessageStats{Name: mb.Name}
				stats.Exchanges[mb.MessageID] = ms
			}
			ms.Count++
			ms.TotalPolls += mb.Polls
			ms.Elapsed += mb.Elapsed
			if mb.Status != 0x01 {
				ms.Failures++
			}
			if mb.Status == 0x00 {
				stats.Timeouts++
			}
		}

		if event.StateChange != nil {
			stats.StateChanges++
		}
		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== HSMP Client Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerRegister, log.LayerMailbox, log.LayerLifecycle} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-4s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Exchanges) > 0 {
		fmt.Fprintln(w, "Mailbox Exchanges:")
		ids := make([]uint32, 0, len(stats.Exchanges))
		for id := range stats.Exchanges {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			ms := stats.Exchanges[id]
			name := ms.Name
			if name == "" {
				name = fmt.Sprintf("Message(0x%02X)", id)
			}
			avgPolls := float64(ms.TotalPolls) / float64(ms.Count)
			fmt.Fprintf(w, "  %-28s count=%d failures=%d avg_polls=%.1f total=%s\n",
				name, ms.Count, ms.Failures, avgPolls, ms.Elapsed.Round(time.Microsecond))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Clients:       %d\n", len(stats.Clients))
	fmt.Fprintf(w, "State Changes: %d\n", stats.StateChanges)
	fmt.Fprintf(w, "Timeouts:      %d\n", stats.Timeouts)
	fmt.Fprintf(w, "Errors:        %d\n", stats.Errors)
}
