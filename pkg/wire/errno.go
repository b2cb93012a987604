package wire

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/hsmp-protocol/hsmp-go/pkg/hsmp"
)

// Errno maps a client library error onto the errno-style code carried
// in reply records.
func Errno(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, hsmp.ErrPermission):
		return int32(unix.EPERM)
	case errors.Is(err, hsmp.ErrInvalidArgument):
		return int32(unix.EINVAL)
	case errors.Is(err, hsmp.ErrProtocol):
		return int32(unix.EPROTO)
	case errors.Is(err, hsmp.ErrNotSupported):
		return int32(unix.ENOTSUP)
	case errors.Is(err, hsmp.ErrTimeout):
		return int32(unix.ETIMEDOUT)
	case errors.Is(err, hsmp.ErrDiscovery):
		return int32(unix.ENODEV)
	default:
		return int32(unix.EIO)
	}
}

// FromErrno reverses Errno, recovering the library error condition a
// reply record carries.
func FromErrno(code int32) error {
	switch unix.Errno(code) {
	case 0:
		return nil
	case unix.EPERM:
		return hsmp.ErrPermission
	case unix.EINVAL:
		return hsmp.ErrInvalidArgument
	case unix.EPROTO:
		return hsmp.ErrProtocol
	case unix.ENOTSUP:
		return hsmp.ErrNotSupported
	case unix.ETIMEDOUT:
		return hsmp.ErrTimeout
	case unix.ENODEV:
		return hsmp.ErrDiscovery
	default:
		return fmt.Errorf("daemon error: %s", unix.Errno(code))
	}
}
