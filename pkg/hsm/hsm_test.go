package hsm

import (
	"context"
	"testing"
	"time"

	"github.com/backkem/yubihsm/pkg/mockhsm"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testAuthKey = mockhsm.DefaultAuthKey()

type testRig struct {
	device   *mockhsm.Device
	loopback *mockhsm.Loopback
	client   *Client
}

func newRig(t *testing.T, reg prometheus.Registerer) *testRig {
	t.Helper()
	device := mockhsm.New(mockhsm.Config{AuthKeys: []mockhsm.AuthKey{testAuthKey}})
	lb := mockhsm.NewLoopback(device)
	client, err := Open(context.Background(), Config{
		Transport:     lb,
		Credential:    testAuthKey.Credential,
		Timeout:       time.Second,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
		Registerer:    reg,
	})
	require.NoError(t, err)
	require.Equal(t, session.StateAuthenticated, client.State())
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return &testRig{device: device, loopback: lb, client: client}
}
