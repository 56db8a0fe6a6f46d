package collector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy: Attempts tries per endpoint, sleeping Backoff*attempt between them.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// linearBackOff grows by a fixed step: step, 2*step, 3*step...
type linearBackOff struct {
	step time.Duration
	n    int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.WithMaxRetries(&linearBackOff{step: p.Backoff}, uint64(p.attempts()-1))
	return backoff.WithContext(b, ctx)
}

// Do calls fn against each endpoint in order, retrying each one per the policy,
// and stops at the first success. The returned error joins the last error of every endpoint.
func (p RetryPolicy) Do(ctx context.Context, log *zap.Logger, endpoints []string, fn func(ctx context.Context, endpoint string) error) error {
	if len(endpoints) == 0 {
		return ErrNoEndpoints
	}

	var errs []error
	for _, ep := range endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}

		host := endpointHost(ep)
		attempt := 0
		op := func() error {
			attempt++
			err := fn(ctx, ep)
			if err != nil && ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			log.Warn("request failed, retrying",
				zap.String("endpoint", host),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}

		err := backoff.RetryNotify(op, p.newBackOff(ctx), notify)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn("endpoint exhausted, failing over", zap.String("endpoint", host), zap.Int("attempts", attempt), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", host, err))
	}
	return errors.Join(errs...)
}

// endpointHost strips path and query so credentials never reach the logs.
func endpointHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "endpoint"
	}
	return u.Scheme + "://" + u.Host
}
