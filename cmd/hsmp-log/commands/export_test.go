package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
)

// createTestLogFile writes the events to a temporary log file and
// returns its path.
func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.hlog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func exchangeEvent(ts time.Time, client string, socket int, msgID uint32, name string) log.Event {
	return log.Event{
		Timestamp: ts,
		ClientID:  client,
		Direction: log.DirectionOut,
		Layer:     log.LayerMailbox,
		Category:  log.CategoryExchange,
		Socket:    socket,
		Mailbox: &log.MailboxEvent{
			MessageID: msgID,
			Name:      name,
			Args:      []uint32{42},
			Status:    0x01,
			Response:  []uint32{43},
			Polls:     1,
			Elapsed:   1200 * time.Microsecond,
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 15, 32, 123456000, time.UTC)
	events := []log.Event{
		exchangeEvent(ts, "client-a", 0, 0x01, "TestMessage"),
		exchangeEvent(ts.Add(time.Second), "client-a", 1, 0x04, "GetSocketPower"),
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data := readFile(t, out)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if decoded["ClientID"] != "client-a" {
		t.Errorf("ClientID = %v, want client-a", decoded["ClientID"])
	}
}

func TestExportToCSV(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		exchangeEvent(ts, "client-a", 1, 0x14, "GetDDRBandwidth"),
	}

	path := createTestLogFile(t, events)
	out := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", out); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data := readFile(t, out)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,client_id,direction") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "0x14") {
		t.Errorf("row missing message id: %s", lines[1])
	}
	if !strings.Contains(lines[1], "mailbox") {
		t.Errorf("row missing event type: %s", lines[1])
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, nil)
	if err := RunExport(path, "xml", ""); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
