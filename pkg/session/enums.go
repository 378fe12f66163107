// Package session implements the YubiHSM2 secure session: the SCP03
// handshake state, session key derivation, message counters, and the
// sealing and opening of session frames.
//
// A Session is a plain state machine. It never touches the transport; the
// host side is driven by pkg/securechannel and the device side by
// pkg/mockhsm.
//
// States:
//
//	Unauthenticated -> Authenticating -> Authenticated -> Closed
//
// Any failure moves the session to Closed, which is terminal. Keys are
// zeroized on close.
package session

// State is the lifecycle state of a session.
type State int

const (
	// StateUnauthenticated is a fresh session before CreateSession.
	StateUnauthenticated State = iota

	// StateAuthenticating is set between CreateSession and a successful
	// AuthenticateSession.
	StateAuthenticating

	// StateAuthenticated allows Seal and Open.
	StateAuthenticated

	// StateClosed is terminal.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticating:
		return "Authenticating"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the state is a defined value.
func (s State) IsValid() bool {
	return s >= StateUnauthenticated && s <= StateClosed
}

// Role identifies which end of the session the local party is. It decides
// the MAC key and IV construction used for each direction.
type Role int

const (
	// RoleUnknown indicates an uninitialized role.
	RoleUnknown Role = iota

	// RoleHost sends commands: it MACs with S-MAC and verifies with S-RMAC.
	RoleHost

	// RoleDevice sends responses: it MACs with S-RMAC and verifies with S-MAC.
	RoleDevice
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "Host"
	case RoleDevice:
		return "Device"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r Role) IsValid() bool {
	return r == RoleHost || r == RoleDevice
}
