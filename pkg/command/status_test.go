package command

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	known := map[byte]Status{
		0x00: StatusSuccess,
		0x02: StatusInvalidAlgorithm,
		0x05: StatusDeviceBusy,
		0x08: StatusWrongLength,
		0x09: StatusInvalidPermission,
		0x0b: StatusObjectNotFound,
		0x0c: StatusInvalidID,
		0xff: StatusGenericError,
	}
	for b := 0; b <= 0xff; b++ {
		got := ParseStatus(byte(b))
		if want, ok := known[byte(b)]; ok {
			assert.Equal(t, want, got, "0x%02x", b)
		} else {
			assert.Equal(t, StatusGenericError, got, "0x%02x", b)
		}
		assert.True(t, got.IsValid())
	}
}

func TestStatusErr(t *testing.T) {
	tests := []struct {
		status   Status
		sentinel error
	}{
		{StatusInvalidAlgorithm, ErrInvalidAlgorithm},
		{StatusDeviceBusy, ErrDeviceBusy},
		{StatusWrongLength, ErrWrongLength},
		{StatusInvalidPermission, ErrInvalidPermission},
		{StatusObjectNotFound, ErrObjectNotFound},
		{StatusInvalidID, ErrDeviceInvalidID},
		{StatusGenericError, ErrGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			err := tt.status.Err(OpcodeSignHMAC)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.status == StatusDeviceBusy, IsRetryable(err))
		})
	}
	assert.NoError(t, StatusSuccess.Err(OpcodeSignHMAC))
}

func TestIsRetryableWrapped(t *testing.T) {
	err := fmt.Errorf("sign: %w", StatusDeviceBusy.Err(OpcodeSignHMAC))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrDeviceBusy))
	assert.False(t, IsRetryable(nil))
}
