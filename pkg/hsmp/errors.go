package hsmp

import (
	"errors"
	"fmt"

	"github.com/hsmp-protocol/hsmp-go/pkg/mailbox"
	"github.com/hsmp-protocol/hsmp-go/pkg/nbio"
)

// Error conditions reported by client operations. Conditions raised by
// the lower layers are re-exported here so callers can check every
// failure against this package alone.
var (
	// ErrPermission indicates the process lacks the elevated
	// privileges every operation requires. Never retried.
	ErrPermission = errors.New("operation requires root privileges")

	// ErrNotSupported indicates the capability is absent for this
	// platform or firmware version, or the client is disabled.
	ErrNotSupported = errors.New("capability not supported")

	// ErrInvalidArgument indicates an out-of-range socket, CPU, bus,
	// or enumerated value. Raised before any hardware access.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProtocol indicates the firmware rejected a message the
	// negotiated interface version says it must support. It separates
	// "structurally impossible" from "not supported".
	ErrProtocol = errors.New("firmware and interface version disagree")

	// ErrTimeout indicates a mailbox exchange never completed within
	// the poll budget. The client does not retry; the caller may.
	ErrTimeout = mailbox.ErrTimeout

	// ErrDiscovery indicates the bus topology was absent or
	// malformed. Fatal for the process; the client disables itself.
	ErrDiscovery = nbio.ErrDiscovery
)

// DescribeError renders a human-readable description of any error
// returned by this package, including firmware status codes.
func DescribeError(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPermission):
		return "permission denied: operations require root privileges"
	case errors.Is(err, ErrProtocol):
		return "protocol inconsistency: firmware rejected a message its reported interface version supports"
	case errors.Is(err, ErrNotSupported):
		return "not supported on this system or firmware version"
	case errors.Is(err, ErrTimeout):
		return "mailbox exchange timed out; firmware may be unresponsive"
	case errors.Is(err, ErrDiscovery):
		return "PCI topology discovery failed"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid argument"
	}

	if status, ok := mailbox.AsStatus(err); ok {
		return fmt.Sprintf("firmware returned status %s", status)
	}
	return err.Error()
}
