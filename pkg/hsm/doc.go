// Package hsm is the object operations layer of a YubiHSM2 client.
//
// A Client owns one secure channel to the device. Every operation is a
// single authenticated request/response exchange; arguments are validated
// before anything is sent.
//
// # Quick Start
//
//	client, err := hsm.Open(ctx, hsm.Config{
//	    Transport: t,
//	    AuthKeyID: 1,
//	    Password:  "password",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	key, err := client.GenerateHMACKey(ctx, 0, "api", 1,
//	    command.CapabilitySignHMAC|command.CapabilityVerifyHMAC,
//	    command.AlgorithmHMACSHA256)
//	mac, err := key.Sign(ctx, data)
//
// # Errors
//
// Errors fall in three classes:
//
//   - ErrInvalidArgument: rejected locally, nothing was sent.
//   - *command.DeviceError: the device refused the command. The session stays
//     open; match the status with errors.Is(err, command.ErrObjectNotFound).
//   - securechannel.ErrSessionClosed: the session failed (integrity, timeout
//     or transport). Call Reauthenticate before the next operation.
package hsm
