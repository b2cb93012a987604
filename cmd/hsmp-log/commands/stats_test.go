package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hsmp-protocol/hsmp-go/pkg/log"
)

func TestStatsAggregatesExchanges(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	events := []log.Event{
		exchangeEvent(ts, "client-a", 0, 0x04, "GetSocketPower"),
		exchangeEvent(ts.Add(time.Second), "client-a", 1, 0x04, "GetSocketPower"),
		exchangeEvent(ts.Add(2*time.Second), "client-a", 0, 0x01, "TestMessage"),
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Total Events: 3") {
		t.Errorf("output missing total:\n%s", output)
	}
	if !strings.Contains(output, "GetSocketPower") || !strings.Contains(output, "count=2") {
		t.Errorf("output missing per-message counts:\n%s", output)
	}
	if !strings.Contains(output, "Duration:   2s") {
		t.Errorf("output missing time range duration:\n%s", output)
	}
}

func TestStatsCountsFailuresAndTimeouts(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	timeout := exchangeEvent(ts, "client-a", 0, 0x05, "SetSocketPowerLimit")
	timeout.Mailbox.Status = 0x00
	rejected := exchangeEvent(ts, "client-a", 0, 0x05, "SetSocketPowerLimit")
	rejected.Mailbox.Status = 0xFF

	events := []log.Event{
		timeout,
		rejected,
		{
			Timestamp: ts,
			ClientID:  "client-a",
			Layer:     log.LayerMailbox,
			Category:  log.CategoryError,
			Error:     &log.ErrorEventData{Layer: log.LayerMailbox, Message: "exchange timed out"},
		},
	}
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "failures=2") {
		t.Errorf("output missing failure count:\n%s", output)
	}
	if !strings.Contains(output, "Timeouts:      1") {
		t.Errorf("output missing timeout count:\n%s", output)
	}
	if !strings.Contains(output, "Errors:        1") {
		t.Errorf("output missing error count:\n%s", output)
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
