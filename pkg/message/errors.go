package message

import "errors"

// Wire framing errors. All of them are protocol integrity failures when
// they occur on an incoming record.
var (
	ErrMessageTooShort = errors.New("message: data too short")
	ErrMessageTooLong  = errors.New("message: exceeds maximum size")
	ErrInvalidLength   = errors.New("message: length field does not match data")
	ErrUnexpectedType  = errors.New("message: unexpected record type")
	ErrInvalidSession  = errors.New("message: session id mismatch")
)

// Framing constants.
const (
	// RecordHeaderSize is type(1) || length(2).
	RecordHeaderSize = 3

	// SessionIDSize is the size of the session id prefix.
	SessionIDSize = 1

	// ChallengeSize is the size of host and card challenges.
	ChallengeSize = 8

	// CryptogramSize is the size of host and card cryptograms.
	CryptogramSize = 8

	// CounterSize is the size of the session frame counter.
	CounterSize = 4

	// MACSize is the truncated CMAC carried by session frames and the
	// AuthenticateSession record.
	MACSize = 8

	// MinSessionFrameSize is a frame carrying one ciphertext block.
	MinSessionFrameSize = CounterSize + 16 + MACSize
)
