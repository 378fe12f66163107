// Package integration provides end-to-end tests of the client against the
// software device over the in-memory pipe transport.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/backkem/yubihsm/pkg/hsm"
	"github.com/backkem/yubihsm/pkg/mockhsm"
	"github.com/backkem/yubihsm/pkg/transport"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// TestPair holds a client authenticated to a software device.
//
// Example usage:
//
//	pair := NewTestPair(t, DefaultTestPairConfig())
//	defer pair.Close()
//	key, _ := pair.Client.GenerateHMACKey(...)
type TestPair struct {
	// Device is the software HSM.
	Device *mockhsm.Device

	// Pipe connects the client to the device.
	Pipe *transport.Pipe

	// Client is authenticated to Device.
	Client *hsm.Client

	// Registry holds the client metrics.
	Registry *prometheus.Registry

	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
}

// TestPairConfig configures the test pair creation.
type TestPairConfig struct {
	// AuthKeys are installed on the device. Defaults to the factory key.
	AuthKeys []mockhsm.AuthKey

	// ClientKey is the authentication key the client uses.
	// Defaults to the first entry of AuthKeys.
	ClientKey *mockhsm.AuthKey

	// Timeout bounds each exchange. Defaults to 2 seconds.
	Timeout time.Duration

	// Seed makes pipe conditions reproducible.
	Seed int64

	// LoggerFactory for logging. If nil, uses DefaultLoggerFactory.
	LoggerFactory logging.LoggerFactory
}

var factoryKey = mockhsm.DefaultAuthKey()

// DefaultTestPairConfig returns default configuration for test pairs.
func DefaultTestPairConfig() TestPairConfig {
	return TestPairConfig{
		AuthKeys: []mockhsm.AuthKey{factoryKey},
		Timeout:  2 * time.Second,
		Seed:     1,
	}
}

// NewTestPair starts a device and authenticates a client to it.
func NewTestPair(t *testing.T, config TestPairConfig) *TestPair {
	t.Helper()
	if len(config.AuthKeys) == 0 {
		config.AuthKeys = []mockhsm.AuthKey{factoryKey}
	}
	if config.ClientKey == nil {
		config.ClientKey = &config.AuthKeys[0]
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Second
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	pipeConfig := transport.DefaultPipeConfig()
	pipeConfig.Seed = config.Seed
	pipeConfig.LoggerFactory = config.LoggerFactory
	pipe, err := transport.NewPipeWithConfig(pipeConfig)
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}

	device := mockhsm.New(mockhsm.Config{
		AuthKeys:      config.AuthKeys,
		LoggerFactory: config.LoggerFactory,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = device.Serve(ctx, pipe.Device()) }()

	registry := prometheus.NewRegistry()
	client, err := hsm.Open(ctx, hsm.Config{
		Transport:     pipe.Host(),
		Credential:    config.ClientKey.Credential,
		Timeout:       config.Timeout,
		LoggerFactory: config.LoggerFactory,
		Registerer:    registry,
	})
	if err != nil {
		cancel()
		_ = pipe.Close()
		t.Fatalf("Failed to open client: %v", err)
	}

	return &TestPair{
		Device:   device,
		Pipe:     pipe,
		Client:   client,
		Registry: registry,
		t:        t,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Context returns the pair's context.
func (p *TestPair) Context() context.Context {
	return p.ctx
}

// SetResponseCondition applies cond to records sent by the device.
func (p *TestPair) SetResponseCondition(cond transport.NetworkCondition) {
	p.Pipe.SetDeviceCondition(cond)
}

// Reauthenticate opens a new session, failing the test on error.
func (p *TestPair) Reauthenticate() {
	p.t.Helper()
	if err := p.Client.Reauthenticate(p.ctx); err != nil {
		p.t.Fatalf("Failed to reauthenticate: %v", err)
	}
}

// Close ends the session and stops the device.
func (p *TestPair) Close() {
	_ = p.Client.Close(p.ctx)
	p.cancel()
	_ = p.Pipe.Close()
}
