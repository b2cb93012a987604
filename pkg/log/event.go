package log

import (
	"time"
)

// Event represents a client log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ClientID uniquely identifies the client instance (UUID).
	ClientID string `cbor:"2,keyasint"`

	// Direction indicates data flow relative to the service processor.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Socket is the socket index the event targets, where applicable.
	Socket int `cbor:"6,keyasint,omitempty"`

	// Device is the PCI address of the access point involved.
	Device string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Register    *RegisterEvent    `cbor:"10,keyasint,omitempty"` // Register layer
	Mailbox     *MailboxEvent     `cbor:"11,keyasint,omitempty"` // Mailbox layer (one exchange)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Client lifecycle
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates data read from the hardware.
	DirectionIn Direction = 0
	// DirectionOut indicates data written to the hardware.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer of the stack captured the event.
type Layer uint8

const (
	// LayerRegister is the indirect register access layer (index/data pairs).
	LayerRegister Layer = 0
	// LayerMailbox is the mailbox protocol layer (whole exchanges).
	LayerMailbox Layer = 1
	// LayerLifecycle is the client lifecycle layer (init, probe, teardown).
	LayerLifecycle Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerRegister:
		return "REGISTER"
	case LayerMailbox:
		return "MAILBOX"
	case LayerLifecycle:
		return "LIFECYCLE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryAccess indicates a single register access.
	CategoryAccess Category = 0
	// CategoryExchange indicates a mailbox request/response exchange.
	CategoryExchange Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAccess:
		return "ACCESS"
	case CategoryExchange:
		return "EXCHANGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// RegisterEvent captures one indirect register access: a write of the
// target address to the port's index register followed by a read or
// write of the port's data register.
type RegisterEvent struct {
	// Port names the aperture used ("smn" or "mailbox").
	Port string `cbor:"1,keyasint"`

	// Address is the address in the auxiliary register space.
	Address uint32 `cbor:"2,keyasint"`

	// Value is the 32-bit value read or written.
	Value uint32 `cbor:"3,keyasint"`

	// Write indicates a data-register write rather than a read.
	Write bool `cbor:"4,keyasint,omitempty"`
}

// MailboxEvent captures one complete mailbox exchange.
type MailboxEvent struct {
	// MessageID is the mailbox message identifier.
	MessageID uint32 `cbor:"1,keyasint"`

	// Name is the symbolic message name, when known.
	Name string `cbor:"2,keyasint,omitempty"`

	// Args are the argument words written before the doorbell.
	Args []uint32 `cbor:"3,keyasint,omitempty"`

	// Status is the final status register value.
	Status uint32 `cbor:"4,keyasint"`

	// Response holds the response words read after an OK status.
	Response []uint32 `cbor:"5,keyasint,omitempty"`

	// Polls is the number of status polls before completion or timeout.
	Polls int `cbor:"6,keyasint"`

	// Elapsed is the wall time spent in the exchange.
	// Stored as nanoseconds.
	Elapsed time.Duration `cbor:"7,keyasint"`
}

// StateChangeEvent captures client lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the state before the transition.
	OldState string `cbor:"1,keyasint"`

	// NewState is the state after the transition.
	NewState string `cbor:"2,keyasint"`

	// Reason describes why the transition occurred.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures error details at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`

	// Code is the mailbox status code, when the error carries one.
	Code *uint32 `cbor:"4,keyasint,omitempty"`
}
