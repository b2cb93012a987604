package mailbox

import (
	"errors"
	"fmt"
)

// Status is the value the firmware posts in the mailbox status register
// when an exchange completes.
type Status uint32

const (
	// StatusNotReady is the sentinel cleared into the status register
	// before the doorbell; the firmware overwrites it on completion.
	StatusNotReady Status = 0x00

	// StatusOK indicates the message completed and any response words
	// are valid.
	StatusOK Status = 0x01

	// StatusInvalidMessageID indicates the firmware does not recognize
	// the message identifier.
	StatusInvalidMessageID Status = 0xFE

	// StatusInvalidArgument indicates the firmware rejected an
	// argument word.
	StatusInvalidArgument Status = 0xFF
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNotReady:
		return "NotReady"
	case StatusOK:
		return "OK"
	case StatusInvalidMessageID:
		return "InvalidMessageID"
	case StatusInvalidArgument:
		return "InvalidArgument"
	default:
		return fmt.Sprintf("Status(%#x)", uint32(s))
	}
}

// ErrTimeout indicates the firmware never posted a completion status
// within the poll budget.
var ErrTimeout = errors.New("mailbox exchange timed out")

// StatusError reports a completed exchange whose status was not OK.
// The status code is preserved for callers that map specific codes to
// higher-level conditions.
type StatusError struct {
	ID     ID
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("message %s failed with status %s", e.ID, e.Status)
}

// AsStatus extracts the firmware status from err, if it carries one.
func AsStatus(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}
