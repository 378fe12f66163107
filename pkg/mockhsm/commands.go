package mockhsm

import (
	"encoding/binary"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/crypto"
)

// dispatch runs one authenticated command for the session's key.
func (d *Device) dispatch(auth AuthKey, req *command.Request) ([]byte, command.Status) {
	switch req.Opcode {
	case command.OpcodeEcho:
		return req.Payload, command.StatusSuccess
	case command.OpcodeCloseSession:
		return nil, command.StatusSuccess
	case command.OpcodeGetPseudoRandom:
		return d.getPseudoRandom(auth, req)
	case command.OpcodeGenerateHMACKey:
		return d.createHMACKey(auth, req, false)
	case command.OpcodePutHMACKey:
		return d.createHMACKey(auth, req, true)
	case command.OpcodeSignHMAC:
		return d.signHMAC(auth, req)
	case command.OpcodeVerifyHMAC:
		return d.verifyHMAC(auth, req)
	case command.OpcodeDeleteObject:
		return d.deleteObject(auth, req)
	case command.OpcodeGetObjectInfo:
		return d.getObjectInfo(auth, req)
	default:
		return nil, command.StatusGenericError
	}
}

func (d *Device) getPseudoRandom(auth AuthKey, req *command.Request) ([]byte, command.Status) {
	if !auth.Capabilities.Has(command.CapabilityGetPseudoRandom) {
		return nil, command.StatusInvalidPermission
	}
	if len(req.Payload) != 2 {
		return nil, command.StatusWrongLength
	}
	n := int(binary.BigEndian.Uint16(req.Payload))
	if n > command.MaxRecordSize-command.ResponseHeaderSize {
		return nil, command.StatusWrongLength
	}
	out, err := crypto.RandomBytes(n)
	if err != nil {
		return nil, command.StatusGenericError
	}
	return out, command.StatusSuccess
}

func (d *Device) createHMACKey(auth AuthKey, req *command.Request, imported bool) ([]byte, command.Status) {
	want := command.CapabilityGenerateHMACKey
	if imported {
		want = command.CapabilityPutHMACKey
	}
	if !auth.Capabilities.Has(want) {
		return nil, command.StatusInvalidPermission
	}

	params, ok := req.Algorithm.HMAC()
	if !ok {
		return nil, command.StatusInvalidAlgorithm
	}
	label, domains, key, err := command.SplitKeyPayload(req.Payload)
	if err != nil {
		return nil, command.StatusWrongLength
	}
	if domains == 0 || domains&^auth.Domains != 0 {
		return nil, command.StatusInvalidPermission
	}
	if !auth.Delegated.Has(req.Capabilities) {
		return nil, command.StatusInvalidPermission
	}

	origin := command.OriginImported
	if imported {
		if len(key) == 0 || len(key) > params.BlockSize {
			return nil, command.StatusWrongLength
		}
		key = append([]byte(nil), key...)
	} else {
		if len(key) != 0 {
			return nil, command.StatusWrongLength
		}
		origin = command.OriginGenerated
		if key, err = crypto.RandomBytes(params.DigestSize); err != nil {
			return nil, command.StatusGenericError
		}
	}

	o := &object{
		info: command.ObjectInfo{
			Capabilities: req.Capabilities,
			ID:           req.ObjectID,
			Length:       uint16(len(key)),
			Domains:      domains,
			Type:         command.TypeHMACKey,
			Algorithm:    req.Algorithm,
			Origin:       origin,
			Label:        label,
		},
		key: key,
	}
	id, ok := d.objects.put(o)
	if !ok {
		crypto.Zeroize(key)
		return nil, command.StatusInvalidID
	}
	return command.EncodeObjectID(id), command.StatusSuccess
}

// usableKey looks up an HMAC key the session may use with capability c.
func (d *Device) usableKey(auth AuthKey, id uint16, c command.Capability) (*object, command.Status) {
	o, ok := d.objects.get(command.TypeHMACKey, id)
	if !ok || o.info.Domains&auth.Domains == 0 {
		return nil, command.StatusObjectNotFound
	}
	if !auth.Capabilities.Has(c) || !o.info.Capabilities.Has(c) {
		return nil, command.StatusInvalidPermission
	}
	return o, command.StatusSuccess
}

func (d *Device) signHMAC(auth AuthKey, req *command.Request) ([]byte, command.Status) {
	o, status := d.usableKey(auth, req.ObjectID, command.CapabilitySignHMAC)
	if status != command.StatusSuccess {
		return nil, status
	}
	params, _ := o.info.Algorithm.HMAC()
	return crypto.HMAC(params.Hash, o.key, req.Payload), command.StatusSuccess
}

func (d *Device) verifyHMAC(auth AuthKey, req *command.Request) ([]byte, command.Status) {
	o, status := d.usableKey(auth, req.ObjectID, command.CapabilityVerifyHMAC)
	if status != command.StatusSuccess {
		return nil, status
	}
	params, _ := o.info.Algorithm.HMAC()
	if len(req.Payload) < params.DigestSize {
		return nil, command.StatusWrongLength
	}
	mac, data := req.Payload[:params.DigestSize], req.Payload[params.DigestSize:]
	ok := crypto.HMACEqual(crypto.HMAC(params.Hash, o.key, data), mac)
	return command.EncodeVerifyResult(ok), command.StatusSuccess
}

func (d *Device) deleteObject(auth AuthKey, req *command.Request) ([]byte, command.Status) {
	if len(req.Payload) != 1 {
		return nil, command.StatusWrongLength
	}
	typ := command.ObjectType(req.Payload[0])
	if typ != command.TypeHMACKey {
		return nil, command.StatusInvalidPermission
	}
	o, ok := d.objects.get(typ, req.ObjectID)
	if !ok || o.info.Domains&auth.Domains == 0 {
		return nil, command.StatusObjectNotFound
	}
	if !auth.Capabilities.Has(command.CapabilityDeleteHMACKey) {
		return nil, command.StatusInvalidPermission
	}
	d.objects.delete(typ, req.ObjectID)
	return nil, command.StatusSuccess
}

func (d *Device) getObjectInfo(auth AuthKey, req *command.Request) ([]byte, command.Status) {
	if len(req.Payload) != 1 {
		return nil, command.StatusWrongLength
	}
	switch command.ObjectType(req.Payload[0]) {
	case command.TypeHMACKey:
		o, ok := d.objects.get(command.TypeHMACKey, req.ObjectID)
		if !ok || o.info.Domains&auth.Domains == 0 {
			return nil, command.StatusObjectNotFound
		}
		return o.info.Encode(), command.StatusSuccess
	case command.TypeAuthenticationKey:
		k, ok := d.authKeys[req.ObjectID]
		if !ok {
			return nil, command.StatusObjectNotFound
		}
		info := command.ObjectInfo{
			Capabilities:          k.Capabilities,
			ID:                    req.ObjectID,
			Length:                2 * 16,
			Domains:               k.Domains,
			Type:                  command.TypeAuthenticationKey,
			Algorithm:             command.AlgorithmYubicoAESAuthentication,
			Origin:                command.OriginImported,
			Label:                 k.Label,
			DelegatedCapabilities: k.Delegated,
		}
		return info.Encode(), command.StatusSuccess
	default:
		return nil, command.StatusObjectNotFound
	}
}
