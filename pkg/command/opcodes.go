// Package command implements the YubiHSM2 command codec: opcodes, algorithm
// and capability identifiers, device status codes, and the serialization of
// command requests and responses carried inside authenticated session frames.
//
// A request record is
//
//	[opcode:1][length:2][object id:2][algorithm:1][capabilities:8][payload]
//
// where the algorithm and capability fields are present only for opcodes that
// create objects. A response record is
//
//	[opcode|0x80:1][length:2][status:1][payload]
//
// Lengths count every byte after the length field and are big-endian.
//
// See https://developers.yubico.com/YubiHSM2/Commands/ for the command set.
package command

// Opcode identifies a (request, response) command pair.
type Opcode uint8

// ResponseBit is OR'ed to the opcode in every response record.
const ResponseBit Opcode = 0x80

// Command opcodes (YubiHSM2 numbering).
const (
	// Unauthenticated commands
	OpcodeEcho                Opcode = 0x01
	OpcodeCreateSession       Opcode = 0x03
	OpcodeAuthenticateSession Opcode = 0x04
	OpcodeSessionMessage      Opcode = 0x05

	// Session commands
	OpcodeCloseSession    Opcode = 0x40
	OpcodeGetObjectInfo   Opcode = 0x4e
	OpcodeGetPseudoRandom Opcode = 0x51
	OpcodePutHMACKey      Opcode = 0x52
	OpcodeSignHMAC        Opcode = 0x53
	OpcodeDeleteObject    Opcode = 0x58
	OpcodeGenerateHMACKey Opcode = 0x5a
	OpcodeVerifyHMAC      Opcode = 0x5c

	// OpcodeError is the record type of an unauthenticated device error.
	OpcodeError Opcode = 0x7f
)

// Response returns the response opcode for o.
func (o Opcode) Response() Opcode {
	return o | ResponseBit
}

// IsResponse reports whether the response bit is set.
func (o Opcode) IsResponse() bool {
	return o&ResponseBit != 0 && o != OpcodeError
}

// hasObjectAttributes reports whether requests with this opcode carry the
// algorithm and capability fields.
func (o Opcode) hasObjectAttributes() bool {
	switch o {
	case OpcodeGenerateHMACKey, OpcodePutHMACKey:
		return true
	default:
		return false
	}
}

// String returns the opcode name.
func (o Opcode) String() string {
	if o.IsResponse() {
		return (o &^ ResponseBit).String() + "Response"
	}
	switch o {
	case OpcodeEcho:
		return "Echo"
	case OpcodeCreateSession:
		return "CreateSession"
	case OpcodeAuthenticateSession:
		return "AuthenticateSession"
	case OpcodeSessionMessage:
		return "SessionMessage"
	case OpcodeCloseSession:
		return "CloseSession"
	case OpcodeGetObjectInfo:
		return "GetObjectInfo"
	case OpcodeGetPseudoRandom:
		return "GetPseudoRandom"
	case OpcodePutHMACKey:
		return "PutHMACKey"
	case OpcodeSignHMAC:
		return "SignHMAC"
	case OpcodeDeleteObject:
		return "DeleteObject"
	case OpcodeGenerateHMACKey:
		return "GenerateHMACKey"
	case OpcodeVerifyHMAC:
		return "VerifyHMAC"
	case OpcodeError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ObjectType is the type of an object stored on the device.
type ObjectType uint8

// Object types.
const (
	TypeOpaque            ObjectType = 0x01
	TypeAuthenticationKey ObjectType = 0x02
	TypeAsymmetricKey     ObjectType = 0x03
	TypeWrapKey           ObjectType = 0x04
	TypeHMACKey           ObjectType = 0x05
)

// String returns the object type name.
func (t ObjectType) String() string {
	switch t {
	case TypeOpaque:
		return "Opaque"
	case TypeAuthenticationKey:
		return "AuthenticationKey"
	case TypeAsymmetricKey:
		return "AsymmetricKey"
	case TypeWrapKey:
		return "WrapKey"
	case TypeHMACKey:
		return "HMACKey"
	default:
		return "Unknown"
	}
}
