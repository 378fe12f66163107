package command

import (
	"errors"
	"fmt"
)

// Status is the result code carried in every response record.
type Status uint8

// Status codes. Any value not listed decodes to StatusGenericError.
const (
	StatusSuccess           Status = 0x00
	StatusInvalidAlgorithm  Status = 0x02
	StatusDeviceBusy        Status = 0x05
	StatusWrongLength       Status = 0x08
	StatusInvalidPermission Status = 0x09
	StatusObjectNotFound    Status = 0x0b
	StatusInvalidID         Status = 0x0c
	StatusGenericError      Status = 0xff
)

// ParseStatus maps a raw status byte to a Status. It never fails.
func ParseStatus(b byte) Status {
	s := Status(b)
	if !s.IsValid() {
		return StatusGenericError
	}
	return s
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusInvalidAlgorithm, StatusDeviceBusy, StatusWrongLength,
		StatusInvalidPermission, StatusObjectNotFound, StatusInvalidID, StatusGenericError:
		return true
	default:
		return false
	}
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusInvalidAlgorithm:
		return "InvalidAlgorithm"
	case StatusDeviceBusy:
		return "DeviceBusy"
	case StatusWrongLength:
		return "WrongLength"
	case StatusInvalidPermission:
		return "InvalidPermission"
	case StatusObjectNotFound:
		return "ObjectNotFound"
	case StatusInvalidID:
		return "InvalidID"
	case StatusGenericError:
		return "GenericError"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(s))
	}
}

func (s Status) sentinel() error {
	switch s {
	case StatusInvalidAlgorithm:
		return ErrInvalidAlgorithm
	case StatusDeviceBusy:
		return ErrDeviceBusy
	case StatusWrongLength:
		return ErrWrongLength
	case StatusInvalidPermission:
		return ErrInvalidPermission
	case StatusObjectNotFound:
		return ErrObjectNotFound
	case StatusInvalidID:
		return ErrDeviceInvalidID
	default:
		return ErrGeneric
	}
}

// DeviceError is a non-success status reported by the device. The session
// stays usable after a DeviceError.
type DeviceError struct {
	// Opcode of the command that failed.
	Opcode Opcode

	// Status is the decoded status.
	Status Status

	// Code is the raw status byte as received.
	Code byte
}

// NewDeviceError builds a DeviceError from a raw status byte.
func NewDeviceError(op Opcode, code byte) *DeviceError {
	return &DeviceError{Opcode: op, Status: ParseStatus(code), Code: code}
}

func (e *DeviceError) Error() string {
	if e.Status == StatusGenericError && e.Code != byte(StatusGenericError) {
		return fmt.Sprintf("command: %s: device error %s (0x%02x)", e.Opcode, e.Status, e.Code)
	}
	return fmt.Sprintf("command: %s: device error %s", e.Opcode, e.Status)
}

// Is matches the status sentinel, e.g. errors.Is(err, ErrObjectNotFound).
func (e *DeviceError) Is(target error) bool {
	return target == e.Status.sentinel()
}

// Err returns nil for StatusSuccess and a *DeviceError otherwise.
func (s Status) Err(op Opcode) error {
	if s == StatusSuccess {
		return nil
	}
	return &DeviceError{Opcode: op, Status: s, Code: byte(s)}
}

// IsRetryable reports whether err is a device status that may succeed when
// the same command is sent again. Only DeviceBusy qualifies.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDeviceBusy)
}
