package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

// writeTestLog writes a small mixed-layer log and returns its path.
func writeTestLog(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mixed.hlog")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fl.Log(Event{
		Timestamp: base,
		ClientID:  "a",
		Direction: DirectionOut,
		Layer:     LayerRegister,
		Category:  CategoryAccess,
		Register:  &RegisterEvent{Port: "mailbox", Address: 0x3B10980, Value: 0, Write: true},
	})
	fl.Log(Event{
		Timestamp: base.Add(time.Second),
		ClientID:  "a",
		Direction: DirectionIn,
		Layer:     LayerMailbox,
		Category:  CategoryExchange,
		Socket:    1,
		Mailbox:   &MailboxEvent{MessageID: 4, Status: 0x01, Polls: 1, Elapsed: time.Millisecond},
	})
	fl.Log(Event{
		Timestamp: base.Add(2 * time.Second),
		ClientID:  "b",
		Layer:     LayerLifecycle,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			OldState: "UNINITIALIZED",
			NewState: "PROBING",
		},
	})

	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

// readAll drains a reader, failing the test on unexpected errors.
func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()

	var events []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		events = append(events, event)
	}
}

func TestReaderNoFilter(t *testing.T) {
	path := writeTestLog(t)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if got := len(readAll(t, r)); got != 3 {
		t.Errorf("read %d events, want 3", got)
	}
}

func TestReaderFilter(t *testing.T) {
	path := writeTestLog(t)

	mailboxLayer := LayerMailbox
	stateCat := CategoryState
	socket1 := 1
	msg4 := uint32(4)
	cutoff := time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by client id", Filter{ClientID: "a"}, 2},
		{"by layer", Filter{Layer: &mailboxLayer}, 1},
		{"by category", Filter{Category: &stateCat}, 1},
		{"by socket", Filter{Socket: &socket1}, 1},
		{"by message id", Filter{MessageID: &msg4}, 1},
		{"by time start", Filter{TimeStart: &cutoff}, 2},
		{"by time end", Filter{TimeEnd: &cutoff}, 1},
		{"no match", Filter{ClientID: "missing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader: %v", err)
			}
			defer r.Close()

			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("read %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "absent.hlog")); err == nil {
		t.Error("expected error for missing file")
	}
}
