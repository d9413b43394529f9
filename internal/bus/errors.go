// internal/bus/errors.go
package bus

import (
	"errors"

	"github.com/goburrow/modbus"
)

var (
	// ErrConnection means the endpoint could not be opened.
	ErrConnection = errors.New("bus: connection failed")

	// ErrCommunication means a single transaction failed: timeout, closed
	// connection, exception response or a response of the wrong length.
	ErrCommunication = errors.New("bus: communication failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bus: closed")
)

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// Modbus exception responses yield their exception code; any other error yields 1.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return uint16(mbErr.ExceptionCode)
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	return 1
}
