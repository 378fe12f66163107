package hsm

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/securechannel"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/pion/logging"
)

// MaxRandomSize is the largest GetPseudoRandom request.
const MaxRandomSize = command.MaxRecordSize - command.ResponseHeaderSize

// Client runs object operations over one authenticated channel. It is safe
// for concurrent use; operations are serialized by the channel.
type Client struct {
	ch      *securechannel.Channel
	metrics *Metrics
	log     logging.LeveledLogger
}

// Open authenticates a session and returns a ready Client. The caller keeps
// ownership of config.Transport.
func Open(ctx context.Context, config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Client{metrics: NewMetrics(config.Registerer)}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("hsm")
	}

	ch, err := securechannel.New(securechannel.Config{
		Transport:  config.Transport,
		Credential: config.Credential,
		Timeout:    config.Timeout,
		Callbacks: securechannel.Callbacks{
			OnSessionEstablished: func(uint8) { c.metrics.sessionOpened() },
			OnSessionClosed:      func(_ uint8, cause error) { c.metrics.sessionClosed(cause) },
		},
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.ch = ch

	if err := ch.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Close ends the session. The client can be reopened with Reauthenticate.
func (c *Client) Close(ctx context.Context) error {
	return c.ch.Close(ctx)
}

// Reauthenticate replaces the current session with a new one. It is the
// way back after an error matching securechannel.ErrSessionClosed.
func (c *Client) Reauthenticate(ctx context.Context) error {
	return c.ch.Authenticate(ctx)
}

// State returns the state of the current session.
func (c *Client) State() session.State {
	return c.ch.State()
}

// Echo sends data to the device and checks that it comes back unchanged.
func (c *Client) Echo(ctx context.Context, data []byte) (err error) {
	defer c.metrics.observe(OpEcho, time.Now(), &err)

	if len(data) > command.MaxPayloadSize {
		return fmt.Errorf("%w: %w: %d bytes", ErrInvalidArgument, command.ErrPayloadTooLarge, len(data))
	}
	resp, err := c.ch.Transceive(ctx, &command.Request{Opcode: command.OpcodeEcho, Payload: data})
	if err != nil {
		return err
	}
	if !bytes.Equal(resp.Payload, data) {
		return c.ch.Abort(fmt.Errorf("%w: echo payload mismatch", command.ErrMalformedResponse))
	}
	return nil
}

// GetPseudoRandom returns n bytes from the device's random generator.
func (c *Client) GetPseudoRandom(ctx context.Context, n int) (out []byte, err error) {
	defer c.metrics.observe(OpGetPseudoRandom, time.Now(), &err)

	if n <= 0 || n > MaxRandomSize {
		return nil, fmt.Errorf("%w: random length %d not in 1..%d", ErrInvalidArgument, n, MaxRandomSize)
	}
	resp, err := c.ch.Transceive(ctx, &command.Request{
		Opcode:  command.OpcodeGetPseudoRandom,
		Payload: command.RandomLengthPayload(uint16(n)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Payload) != n {
		return nil, c.ch.Abort(fmt.Errorf("%w: %d random bytes, want %d", command.ErrMalformedResponse, len(resp.Payload), n))
	}
	return append([]byte(nil), resp.Payload...), nil
}

// GetObjectInfo returns the attributes of object id of type typ.
func (c *Client) GetObjectInfo(ctx context.Context, id uint16, typ command.ObjectType) (info *command.ObjectInfo, err error) {
	defer c.metrics.observe(OpGetObjectInfo, time.Now(), &err)

	if err := validateID(id, false); err != nil {
		return nil, err
	}
	resp, err := c.ch.Transceive(ctx, &command.Request{
		Opcode:   command.OpcodeGetObjectInfo,
		ObjectID: id,
		Payload:  []byte{byte(typ)},
	})
	if err != nil {
		return nil, err
	}
	info, err = command.DecodeObjectInfo(resp.Payload)
	if err != nil {
		return nil, c.ch.Abort(err)
	}
	if info.ID != id || info.Type != typ {
		return nil, c.ch.Abort(fmt.Errorf("%w: info for %s 0x%04x, want %s 0x%04x",
			command.ErrMalformedResponse, info.Type, info.ID, typ, id))
	}
	return info, nil
}

// DeleteObject removes object id of type typ from the device.
func (c *Client) DeleteObject(ctx context.Context, id uint16, typ command.ObjectType) (err error) {
	defer c.metrics.observe(OpDeleteObject, time.Now(), &err)

	if err := validateID(id, false); err != nil {
		return err
	}
	resp, err := c.ch.Transceive(ctx, &command.Request{
		Opcode:   command.OpcodeDeleteObject,
		ObjectID: id,
		Payload:  []byte{byte(typ)},
	})
	if err != nil {
		return err
	}
	if len(resp.Payload) != 0 {
		return c.ch.Abort(fmt.Errorf("%w: delete returned %d bytes", command.ErrMalformedResponse, len(resp.Payload)))
	}
	c.debugf("deleted %s 0x%04x", typ, id)
	return nil
}

func (c *Client) debugf(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Debugf(format, args...)
	}
}

// validateID checks an object id. Id 0 is accepted only where the device
// assigns the id.
func validateID(id uint16, allowZero bool) error {
	if id > command.MaxObjectID || (id == 0 && !allowZero) {
		return fmt.Errorf("%w: %w: 0x%04x", ErrInvalidArgument, command.ErrInvalidID, id)
	}
	return nil
}
