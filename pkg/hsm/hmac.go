package hsm

import (
	"context"
	"fmt"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/crypto"
)

// HMACKey is a handle to an HMAC key object on the device. It never holds
// key bytes.
type HMACKey struct {
	client       *Client
	id           uint16
	label        string
	domains      uint16
	capabilities command.Capability
	algorithm    command.Algorithm
	params       command.HMACParams
}

// ID returns the object id.
func (k *HMACKey) ID() uint16 { return k.id }

// Label returns the object label.
func (k *HMACKey) Label() string { return k.label }

// Domains returns the domain bitmask.
func (k *HMACKey) Domains() uint16 { return k.domains }

// Capabilities returns the object capabilities.
func (k *HMACKey) Capabilities() command.Capability { return k.capabilities }

// Algorithm returns the HMAC algorithm.
func (k *HMACKey) Algorithm() command.Algorithm { return k.algorithm }

// DigestSize returns the length of the MACs the key produces.
func (k *HMACKey) DigestSize() int { return k.params.DigestSize }

// GenerateHMACKey creates a random HMAC key on the device. Id 0 lets the
// device pick the id.
func (c *Client) GenerateHMACKey(ctx context.Context, id uint16, label string, domains uint16,
	caps command.Capability, alg command.Algorithm) (key *HMACKey, err error) {
	defer c.metrics.observe(OpGenerateHMACKey, time.Now(), &err)

	params, err := validateKeyAttributes(id, label, domains, alg)
	if err != nil {
		return nil, err
	}
	payload, err := command.GenerateKeyPayload(label, domains)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return c.createHMACKey(ctx, &command.Request{
		Opcode:       command.OpcodeGenerateHMACKey,
		ObjectID:     id,
		Algorithm:    alg,
		Capabilities: caps,
		Payload:      payload,
	}, label, domains, params)
}

// PutHMACKey imports key as an HMAC key object. A key longer than the
// algorithm's block size is replaced by its digest first. The caller's slice
// is not retained and every internal copy is zeroized.
func (c *Client) PutHMACKey(ctx context.Context, id uint16, label string, domains uint16,
	caps command.Capability, key []byte, alg command.Algorithm) (handle *HMACKey, err error) {
	defer c.metrics.observe(OpPutHMACKey, time.Now(), &err)

	params, err := validateKeyAttributes(id, label, domains, alg)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}

	normalized := crypto.NormalizeHMACKey(params.Hash, key)
	if len(key) > params.BlockSize {
		defer crypto.Zeroize(normalized)
	}
	payload, err := command.PutKeyPayload(label, domains, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	defer crypto.Zeroize(payload)

	return c.createHMACKey(ctx, &command.Request{
		Opcode:       command.OpcodePutHMACKey,
		ObjectID:     id,
		Algorithm:    alg,
		Capabilities: caps,
		Payload:      payload,
	}, label, domains, params)
}

func (c *Client) createHMACKey(ctx context.Context, req *command.Request, label string, domains uint16,
	params command.HMACParams) (*HMACKey, error) {
	resp, err := c.ch.Transceive(ctx, req)
	if err != nil {
		return nil, err
	}
	id, err := command.DecodeObjectID(resp.Payload)
	if err != nil {
		return nil, c.ch.Abort(err)
	}
	if id == 0 || (req.ObjectID != 0 && id != req.ObjectID) {
		return nil, c.ch.Abort(fmt.Errorf("%w: created id 0x%04x, requested 0x%04x", command.ErrMalformedResponse, id, req.ObjectID))
	}
	c.debugf("%s: %s key 0x%04x", req.Opcode, req.Algorithm, id)

	return &HMACKey{
		client:       c,
		id:           id,
		label:        label,
		domains:      domains,
		capabilities: req.Capabilities,
		algorithm:    req.Algorithm,
		params:       params,
	}, nil
}

// HMACKey returns a handle to an existing HMAC key, reading its attributes
// from the device.
func (c *Client) HMACKey(ctx context.Context, id uint16) (*HMACKey, error) {
	info, err := c.GetObjectInfo(ctx, id, command.TypeHMACKey)
	if err != nil {
		return nil, err
	}
	params, ok := info.Algorithm.HMAC()
	if !ok {
		return nil, c.ch.Abort(fmt.Errorf("%w: HMAC key 0x%04x has algorithm %s", command.ErrMalformedResponse, id, info.Algorithm))
	}
	return &HMACKey{
		client:       c,
		id:           id,
		label:        info.Label,
		domains:      info.Domains,
		capabilities: info.Capabilities,
		algorithm:    info.Algorithm,
		params:       params,
	}, nil
}

// Sign returns the MAC of data. Its length is the algorithm's digest size.
func (k *HMACKey) Sign(ctx context.Context, data []byte) (mac []byte, err error) {
	c := k.client
	defer c.metrics.observe(OpSignHMAC, time.Now(), &err)

	if len(data) > command.MaxPayloadSize {
		return nil, fmt.Errorf("%w: %w: %d bytes", ErrInvalidArgument, command.ErrPayloadTooLarge, len(data))
	}
	resp, err := c.ch.Transceive(ctx, &command.Request{
		Opcode:   command.OpcodeSignHMAC,
		ObjectID: k.id,
		Payload:  data,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Payload) != k.params.DigestSize {
		return nil, c.ch.Abort(fmt.Errorf("%w: %d byte MAC from %s key", command.ErrMalformedResponse, len(resp.Payload), k.algorithm))
	}
	return append([]byte(nil), resp.Payload...), nil
}

// Verify reports whether mac is the MAC of data. A mac of the wrong length
// is rejected without contacting the device.
func (k *HMACKey) Verify(ctx context.Context, mac, data []byte) (ok bool, err error) {
	c := k.client
	defer c.metrics.observe(OpVerifyHMAC, time.Now(), &err)

	if len(mac) != k.params.DigestSize {
		return false, fmt.Errorf("%w: %d byte MAC, %s wants %d", ErrInvalidArgument, len(mac), k.algorithm, k.params.DigestSize)
	}
	if len(mac)+len(data) > command.MaxPayloadSize {
		return false, fmt.Errorf("%w: %w: %d bytes", ErrInvalidArgument, command.ErrPayloadTooLarge, len(data))
	}
	resp, err := c.ch.Transceive(ctx, &command.Request{
		Opcode:   command.OpcodeVerifyHMAC,
		ObjectID: k.id,
		Payload:  command.VerifyPayload(mac, data),
	})
	if err != nil {
		return false, err
	}
	ok, err = command.DecodeVerifyResult(resp.Payload)
	if err != nil {
		return false, c.ch.Abort(err)
	}
	return ok, nil
}

// Delete removes the key from the device. The handle is unusable afterwards.
func (k *HMACKey) Delete(ctx context.Context) error {
	return k.client.DeleteObject(ctx, k.id, command.TypeHMACKey)
}

// Info reads the key's attributes from the device.
func (k *HMACKey) Info(ctx context.Context) (*command.ObjectInfo, error) {
	return k.client.GetObjectInfo(ctx, k.id, command.TypeHMACKey)
}

// validateKeyAttributes checks the attributes of a new HMAC key.
func validateKeyAttributes(id uint16, label string, domains uint16, alg command.Algorithm) (command.HMACParams, error) {
	params, ok := alg.HMAC()
	if !ok {
		return params, fmt.Errorf("%w: %s is not an HMAC algorithm", ErrInvalidArgument, alg)
	}
	if err := validateID(id, true); err != nil {
		return params, err
	}
	if len(label) > command.LabelSize {
		return params, fmt.Errorf("%w: %w: %d bytes", ErrInvalidArgument, command.ErrLabelTooLong, len(label))
	}
	if domains == 0 {
		return params, fmt.Errorf("%w: no domains", ErrInvalidArgument)
	}
	return params, nil
}
