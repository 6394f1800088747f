package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
)

func fastConfig(maxAttempts int) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.Backoff = &ConstantBackoff{Delay: time.Millisecond}
	return cfg
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeTransient, "blip")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnBlocked(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeBlocked, "rate limited")
	}, fastConfig(5))

	require.Error(t, err)
	assert.Equal(t, 1, calls, "blocked errors are not retried in place")
	assert.True(t, errs.IsBlocked(err))
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeNotFound, "gone")
	}, fastConfig(5))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "still down")
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// The typed error survives the attempt-limit wrapping.
	assert.Equal(t, errs.ErrorTypeTransient, errs.TypeOf(err))
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastConfig(0) // unlimited attempts
	cfg.Context = ctx
	cfg.Backoff = &ConstantBackoff{Delay: 50 * time.Millisecond}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "blip")
	}, cfg)

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 2)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.ErrorTypeTransient, "blip")
		}
		return "value", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(&config.RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Exponential: true,
	})

	assert.Equal(t, 4, cfg.MaxAttempts)
	exp, ok := cfg.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, time.Second, exp.BaseDelay)

	fixed := FromConfig(&config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Second})
	_, ok = fixed.Backoff.(*ConstantBackoff)
	assert.True(t, ok)
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	b := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	d1 := b.NextDelay(1)
	d2 := b.NextDelay(2)
	d5 := b.NextDelay(5)

	assert.Greater(t, d2, d1)
	assert.LessOrEqual(t, d5, time.Second)
}

func TestRetrierWithOverrides(t *testing.T) {
	r := NewRetrier(fastConfig(1))

	calls := 0
	err := r.WithMaxAttempts(3).Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeTransient, "blip")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	// The original retrier keeps its single attempt.
	calls = 0
	err = r.Do(func() error {
		calls++
		return errs.New(errs.ErrorTypeTransient, "blip")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
