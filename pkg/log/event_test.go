package log

import (
	"testing"
	"time"
)

func TestDirectionString(t *testing.T) {
	tests := []struct {
		d    Direction
		want string
	}{
		{DirectionIn, "IN"},
		{DirectionOut, "OUT"},
		{Direction(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestLayerString(t *testing.T) {
	tests := []struct {
		l    Layer
		want string
	}{
		{LayerRegister, "REGISTER"},
		{LayerMailbox, "MAILBOX"},
		{LayerLifecycle, "LIFECYCLE"},
		{Layer(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.l.String(); got != tt.want {
			t.Errorf("Layer(%d).String() = %q, want %q", tt.l, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		c    Category
		want string
	}{
		{CategoryAccess, "ACCESS"},
		{CategoryExchange, "EXCHANGE"},
		{CategoryState, "STATE"},
		{CategoryError, "ERROR"},
		{Category(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Category(%d).String() = %q, want %q", tt.c, got, tt.want)
		}
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	code := uint32(0xFE)
	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "register access",
			event: Event{
				Timestamp: time.Now().UTC(),
				ClientID:  "client-1",
				Direction: DirectionOut,
				Layer:     LayerRegister,
				Category:  CategoryAccess,
				Device:    "0000:00:00.0",
				Register: &RegisterEvent{
					Port:    "mailbox",
					Address: 0x3B10534,
					Value:   0x1,
					Write:   true,
				},
			},
		},
		{
			name: "mailbox exchange",
			event: Event{
				Timestamp: time.Now().UTC(),
				ClientID:  "client-1",
				Direction: DirectionIn,
				Layer:     LayerMailbox,
				Category:  CategoryExchange,
				Socket:    1,
				Mailbox: &MailboxEvent{
					MessageID: 1,
					Name:      "TestMessage",
					Args:      []uint32{41},
					Status:    0x01,
					Response:  []uint32{42},
					Polls:     2,
					Elapsed:   3 * time.Millisecond,
				},
			},
		},
		{
			name: "state change",
			event: Event{
				Timestamp: time.Now().UTC(),
				ClientID:  "client-1",
				Layer:     LayerLifecycle,
				Category:  CategoryState,
				StateChange: &StateChangeEvent{
					OldState: "PROBING",
					NewState: "READY",
					Reason:   "probe succeeded",
				},
			},
		},
		{
			name: "error with status code",
			event: Event{
				Timestamp: time.Now().UTC(),
				ClientID:  "client-1",
				Layer:     LayerMailbox,
				Category:  CategoryError,
				Error: &ErrorEventData{
					Layer:   LayerMailbox,
					Message: "invalid message id",
					Context: "exchange",
					Code:    &code,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if got.ClientID != tt.event.ClientID {
				t.Errorf("ClientID = %q, want %q", got.ClientID, tt.event.ClientID)
			}
			if got.Layer != tt.event.Layer {
				t.Errorf("Layer = %v, want %v", got.Layer, tt.event.Layer)
			}
			if got.Category != tt.event.Category {
				t.Errorf("Category = %v, want %v", got.Category, tt.event.Category)
			}
			if !got.Timestamp.Equal(tt.event.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, tt.event.Timestamp)
			}

			switch {
			case tt.event.Register != nil:
				if got.Register == nil {
					t.Fatal("Register payload lost in round trip")
				}
				if *got.Register != *tt.event.Register {
					t.Errorf("Register = %+v, want %+v", *got.Register, *tt.event.Register)
				}
			case tt.event.Mailbox != nil:
				if got.Mailbox == nil {
					t.Fatal("Mailbox payload lost in round trip")
				}
				if got.Mailbox.MessageID != tt.event.Mailbox.MessageID {
					t.Errorf("MessageID = %d, want %d", got.Mailbox.MessageID, tt.event.Mailbox.MessageID)
				}
				if got.Mailbox.Status != tt.event.Mailbox.Status {
					t.Errorf("Status = 0x%02X, want 0x%02X", got.Mailbox.Status, tt.event.Mailbox.Status)
				}
				if got.Mailbox.Elapsed != tt.event.Mailbox.Elapsed {
					t.Errorf("Elapsed = %v, want %v", got.Mailbox.Elapsed, tt.event.Mailbox.Elapsed)
				}
			case tt.event.StateChange != nil:
				if got.StateChange == nil {
					t.Fatal("StateChange payload lost in round trip")
				}
				if *got.StateChange != *tt.event.StateChange {
					t.Errorf("StateChange = %+v, want %+v", *got.StateChange, *tt.event.StateChange)
				}
			case tt.event.Error != nil:
				if got.Error == nil {
					t.Fatal("Error payload lost in round trip")
				}
				if got.Error.Message != tt.event.Error.Message {
					t.Errorf("Error.Message = %q, want %q", got.Error.Message, tt.event.Error.Message)
				}
				if got.Error.Code == nil || *got.Error.Code != *tt.event.Error.Code {
					t.Errorf("Error.Code = %v, want %v", got.Error.Code, tt.event.Error.Code)
				}
			}
		})
	}
}

func TestNoopLogger(t *testing.T) {
	var l NoopLogger
	// Must not panic, even with a zero event.
	l.Log(Event{})
}
