package integration

import (
	"context"
	"testing"
	"time"

	hmacsign "github.com/backkem/yubihsm/examples/hmac-sign"
	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/hsm"
	"github.com/backkem/yubihsm/pkg/mockhsm"
	"github.com/backkem/yubihsm/pkg/securechannel"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/backkem/yubihsm/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signVerify = command.CapabilitySignHMAC | command.CapabilityVerifyHMAC

func TestE2E_SignVerifyAllAlgorithms(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()
	ctx := pair.Context()

	for _, alg := range command.HMACAlgorithms {
		t.Run(alg.String(), func(t *testing.T) {
			key, err := pair.Client.GenerateHMACKey(ctx, 0, "e2e", 1, signVerify, alg)
			require.NoError(t, err)
			defer key.Delete(ctx)

			mac, err := key.Sign(ctx, []byte("payload"))
			require.NoError(t, err)
			assert.Len(t, mac, key.DigestSize())

			ok, err := key.Verify(ctx, mac, []byte("payload"))
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestE2E_Example(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()

	result, err := hmacsign.Run(pair.Context(), pair.Client, hmacsign.Request{
		Algorithm: command.AlgorithmHMACSHA384,
		Message:   []byte("hello"),
	})
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.True(t, result.TamperedRejected)
	assert.Len(t, result.MAC, 48)

	_, ok := pair.Device.Object(result.KeyID)
	assert.False(t, ok, "example key should be deleted")
}

func TestE2E_DuplicatedResponse(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()
	ctx := pair.Context()

	key, err := pair.Client.GenerateHMACKey(ctx, 0, "dup", 1, signVerify, command.AlgorithmHMACSHA256)
	require.NoError(t, err)

	pair.SetResponseCondition(transport.NetworkCondition{DuplicateRate: 1})
	_, err = key.Sign(ctx, []byte("one"))
	require.NoError(t, err)

	// The second copy of the first response answers the next request.
	_, err = key.Sign(ctx, []byte("two"))
	assert.ErrorIs(t, err, session.ErrReplayDetected)
	assert.Equal(t, session.StateClosed, pair.Client.State())

	pair.SetResponseCondition(transport.NetworkCondition{})
	pair.Reauthenticate()
	_, err = key.Sign(ctx, []byte("three"))
	assert.NoError(t, err)
}

func TestE2E_CorruptedResponses(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()
	ctx := pair.Context()

	key, err := pair.Client.GenerateHMACKey(ctx, 0, "corrupt", 1, signVerify, command.AlgorithmHMACSHA512)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		pair.SetResponseCondition(transport.NetworkCondition{CorruptRate: 1})
		_, err := key.Sign(ctx, []byte("data"))
		require.Error(t, err)
		assert.True(t, securechannel.IsIntegrityError(err), "%v", err)
		assert.Equal(t, session.StateClosed, pair.Client.State())

		pair.SetResponseCondition(transport.NetworkCondition{})
		pair.Reauthenticate()
	}

	_, err = key.Sign(ctx, []byte("data"))
	assert.NoError(t, err)
}

func TestE2E_DroppedResponse(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()

	pair.SetResponseCondition(transport.NetworkCondition{DropRate: 1})
	ctx, cancel := context.WithTimeout(pair.Context(), 100*time.Millisecond)
	defer cancel()

	err := pair.Client.Echo(ctx, []byte("ping"))
	assert.ErrorIs(t, err, session.ErrTimeout)
	assert.ErrorIs(t, err, securechannel.ErrSessionClosed)

	pair.SetResponseCondition(transport.NetworkCondition{})
	pair.Reauthenticate()
	assert.NoError(t, pair.Client.Echo(pair.Context(), []byte("ping")))
}

func TestE2E_DelayedResponses(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()
	ctx := pair.Context()

	pair.SetResponseCondition(transport.NetworkCondition{DelayMin: time.Millisecond, DelayMax: 5 * time.Millisecond})
	key, err := pair.Client.GenerateHMACKey(ctx, 0, "slow", 1, signVerify, command.AlgorithmHMACSHA1)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := key.Sign(ctx, []byte{byte(i)})
		require.NoError(t, err)
	}
}

func TestE2E_RestrictedAuthKey(t *testing.T) {
	restricted := mockhsm.AuthKey{
		Credential:   session.CredentialFromPassword(7, "restricted"),
		Label:        "restricted",
		Domains:      0x0001,
		Capabilities: command.CapabilityGenerateHMACKey | command.CapabilitySignHMAC | command.CapabilityVerifyHMAC,
		Delegated:    signVerify,
	}
	config := DefaultTestPairConfig()
	config.AuthKeys = []mockhsm.AuthKey{factoryKey, restricted}
	config.ClientKey = &restricted
	pair := NewTestPair(t, config)
	defer pair.Close()
	ctx := pair.Context()

	key, err := pair.Client.GenerateHMACKey(ctx, 0, "ok", 0x0001, signVerify, command.AlgorithmHMACSHA256)
	require.NoError(t, err)

	_, err = pair.Client.GenerateHMACKey(ctx, 0, "other domain", 0x0002, signVerify, command.AlgorithmHMACSHA256)
	assert.ErrorIs(t, err, command.ErrInvalidPermission)

	_, err = pair.Client.GenerateHMACKey(ctx, 0, "deletable", 0x0001,
		signVerify|command.CapabilityDeleteHMACKey, command.AlgorithmHMACSHA256)
	assert.ErrorIs(t, err, command.ErrInvalidPermission)

	err = key.Delete(ctx)
	assert.ErrorIs(t, err, command.ErrInvalidPermission)

	_, err = pair.Client.GetPseudoRandom(ctx, 16)
	assert.ErrorIs(t, err, command.ErrInvalidPermission)
	assert.Equal(t, session.StateAuthenticated, pair.Client.State())
}

func TestE2E_BusyRetry(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()
	ctx := pair.Context()

	key, err := pair.Client.GenerateHMACKey(ctx, 0, "busy", 1, signVerify, command.AlgorithmHMACSHA256)
	require.NoError(t, err)

	pair.Device.SetBusy(2)
	var mac []byte
	err = hsm.RetryBusy(ctx, hsm.RetryPolicy{Attempts: 3, Interval: time.Millisecond}, func(ctx context.Context) error {
		var err error
		mac, err = key.Sign(ctx, []byte("data"))
		return err
	})
	require.NoError(t, err)
	assert.Len(t, mac, 32)
}

func TestE2E_Metrics(t *testing.T) {
	pair := NewTestPair(t, DefaultTestPairConfig())
	defer pair.Close()

	require.NoError(t, pair.Client.Echo(pair.Context(), []byte("x")))

	families, err := pair.Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["yubihsm_operations_total"])
	assert.True(t, names["yubihsm_sessions_active"])
	assert.True(t, names["yubihsm_operation_duration_seconds"])
}
