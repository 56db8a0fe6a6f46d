package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 800 * time.Millisecond}
	assert.Equal(t, 800*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 1600*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 2400*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 800*time.Millisecond, b.NextBackOff())
}

func TestRetryPolicy_FailoverAfterAttempts(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	calls := map[string]int{}
	err := p.Do(context.Background(), zaptest.NewLogger(t), []string{"http://a.test", "http://b.test"},
		func(_ context.Context, ep string) error {
			calls[ep]++
			if ep == "http://a.test" {
				return errors.New("boom")
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 3, calls["http://a.test"])
	assert.Equal(t, 1, calls["http://b.test"])
}

func TestRetryPolicy_AllFail(t *testing.T) {
	p := RetryPolicy{Attempts: 2}

	n := 0
	err := p.Do(context.Background(), zaptest.NewLogger(t), []string{"http://a.test", "http://b.test?apikey=secret"},
		func(context.Context, string) error {
			n++
			return errors.New("down")
		})

	require.Error(t, err)
	assert.Equal(t, 4, n)
	assert.NotContains(t, err.Error(), "secret")
}

func TestRetryPolicy_NoEndpoints(t *testing.T) {
	err := RetryPolicy{}.Do(context.Background(), zaptest.NewLogger(t), nil, func(context.Context, string) error { return nil })
	assert.ErrorIs(t, err, ErrNoEndpoints)
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{Attempts: 5, Backoff: time.Hour}

	n := 0
	err := p.Do(ctx, zaptest.NewLogger(t), []string{"http://a.test", "http://b.test"}, func(context.Context, string) error {
		n++
		cancel()
		return errors.New("fail")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}
