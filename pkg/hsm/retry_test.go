package hsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"github.com/backkem/yubihsm/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBusy(t *testing.T) {
	r := newRig(t, nil)
	ctx := context.Background()
	r.device.SetBusy(2)

	calls := 0
	err := RetryBusy(ctx, RetryPolicy{Interval: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return r.client.Echo(ctx, []byte("x"))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, session.StateAuthenticated, r.client.State())
}

func TestRetryBusyGivesUp(t *testing.T) {
	r := newRig(t, nil)
	r.device.SetBusy(10)

	calls := 0
	err := RetryBusy(context.Background(), RetryPolicy{Attempts: 4, Interval: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return r.client.Echo(ctx, []byte("x"))
	})
	assert.ErrorIs(t, err, command.ErrDeviceBusy)
	assert.Equal(t, 4, calls)
}

func TestRetryBusyOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := RetryBusy(context.Background(), RetryPolicy{}, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryBusyContext(t *testing.T) {
	busy := command.StatusDeviceBusy.Err(command.OpcodeSignHMAC)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	err := RetryBusy(ctx, RetryPolicy{Attempts: 100, Interval: time.Second}, func(context.Context) error {
		calls++
		return busy
	})
	assert.ErrorIs(t, err, command.ErrDeviceBusy)
	assert.Equal(t, 1, calls)
}
