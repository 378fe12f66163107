package hsm

import (
	"context"
	"time"

	"github.com/backkem/yubihsm/pkg/command"
	"golang.org/x/time/rate"
)

// Retry defaults.
const (
	DefaultRetryAttempts = 3
	DefaultRetryInterval = 50 * time.Millisecond
)

// RetryPolicy paces RetryBusy.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first.
	// Default: DefaultRetryAttempts.
	Attempts int

	// Interval is the minimum spacing between calls.
	// Default: DefaultRetryInterval.
	Interval time.Duration
}

func (p *RetryPolicy) applyDefaults() {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryAttempts
	}
	if p.Interval <= 0 {
		p.Interval = DefaultRetryInterval
	}
}

// RetryBusy calls fn until it returns an error other than DeviceBusy or
// the attempts run out. The client never retries on its own; this helper is
// for callers that know their command is safe to repeat.
func RetryBusy(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	policy.applyDefaults()
	limiter := rate.NewLimiter(rate.Every(policy.Interval), 1)

	var err error
	for i := 0; i < policy.Attempts; i++ {
		if werr := limiter.Wait(ctx); werr != nil {
			if err != nil {
				return err
			}
			return werr
		}
		err = fn(ctx)
		if !command.IsRetryable(err) {
			return err
		}
	}
	return err
}
