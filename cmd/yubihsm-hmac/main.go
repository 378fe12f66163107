// yubihsm-hmac signs a message with an HMAC key held by a software YubiHSM2.
//
// The binary starts an in-memory device, opens an authenticated session to
// it, generates a key, signs and verifies.
//
// Usage:
//
//	yubihsm-hmac [options]
//
// Options:
//
//	-config    YAML configuration file (default: none)
//	-key       Authentication key id (default: 1)
//	-password  Authentication password (default: "password")
//	-alg       HMAC algorithm (default: hmac-sha256)
//	-message   Data to sign (default: "hello, hsm")
//	-v         Debug logging
//
// Example:
//
//	yubihsm-hmac -alg hmac-sha512 -message "attack at dawn"
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/backkem/yubihsm/examples/common"
	hmacsign "github.com/backkem/yubihsm/examples/hmac-sign"
)

func main() {
	opts := common.ParseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := common.Connect(ctx, opts)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer env.Close(context.Background())

	result, err := hmacsign.Run(ctx, env.Client, hmacsign.Request{
		Algorithm: opts.Algorithm,
		Message:   []byte(opts.Message),
	})
	if err != nil {
		log.Fatalf("HMAC example failed: %v", err)
	}

	fmt.Println("========================================")
	fmt.Printf("Key:       0x%04x (%s)\n", result.KeyID, result.Algorithm)
	fmt.Printf("Message:   %q\n", opts.Message)
	fmt.Printf("MAC:       %s\n", hex.EncodeToString(result.MAC))
	fmt.Printf("Verified:  %t\n", result.Verified)
	fmt.Printf("Tampered:  rejected=%t\n", result.TamperedRejected)
	fmt.Println("========================================")
}
