package transport

// Framing selects how records are delimited on a net.Conn.
type Framing int

const (
	// FramingPacket expects one record per Read, as on datagram or
	// message-oriented links.
	FramingPacket Framing = iota

	// FramingStream reads the record header first and then exactly the
	// announced body length.
	FramingStream
)

// String returns a human-readable name for the framing.
func (f Framing) String() string {
	switch f {
	case FramingPacket:
		return "packet"
	case FramingStream:
		return "stream"
	default:
		return "unknown"
	}
}

// IsValid returns true if the framing is a defined value.
func (f Framing) IsValid() bool {
	return f == FramingPacket || f == FramingStream
}
