package command

import "errors"

// Client-side encoding errors. Nothing is transmitted when these occur.
var (
	// ErrInvalidID is returned when an object id is above MaxObjectID.
	ErrInvalidID = errors.New("command: object id out of range")

	// ErrPayloadTooLarge is returned when a payload exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("command: payload too large")

	// ErrLabelTooLong is returned when a label exceeds LabelSize bytes.
	ErrLabelTooLong = errors.New("command: label too long")
)

// Decoding errors. A malformed response is a protocol integrity failure.
var (
	// ErrMalformedResponse is returned for truncated records, length
	// mismatches and payloads that do not match the command's layout.
	ErrMalformedResponse = errors.New("command: malformed response")

	// ErrUnexpectedOpcode is returned when a response does not echo the
	// request opcode. It matches ErrMalformedResponse.
	ErrUnexpectedOpcode = errors.New("command: unexpected response opcode")

	// ErrMalformedRequest is returned by DecodeRequest.
	ErrMalformedRequest = errors.New("command: malformed request")
)

// Device status errors. A *DeviceError matches the sentinel of its status.
var (
	ErrInvalidAlgorithm  = errors.New("command: device: invalid algorithm")
	ErrDeviceBusy        = errors.New("command: device: busy")
	ErrWrongLength       = errors.New("command: device: wrong length")
	ErrInvalidPermission = errors.New("command: device: insufficient permissions")
	ErrObjectNotFound    = errors.New("command: device: object not found")
	ErrDeviceInvalidID   = errors.New("command: device: invalid id")
	ErrGeneric           = errors.New("command: device: generic error")
)

type unexpectedOpcodeError struct{}

func (unexpectedOpcodeError) Error() string { return ErrUnexpectedOpcode.Error() }

func (unexpectedOpcodeError) Unwrap() []error {
	return []error{ErrUnexpectedOpcode, ErrMalformedResponse}
}
