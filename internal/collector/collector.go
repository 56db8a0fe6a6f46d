package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/pvzzle/safescore/internal/model"

	"go.uber.org/zap"
)

// Collector tries providers in preference order and returns the first non-empty batch.
// It never fails: a total miss is an empty batch.
type Collector struct {
	providers []Provider
	filter    Filter
	log       *zap.Logger
}

func New(log *zap.Logger, filter Filter, providers ...Provider) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		providers: providers,
		filter:    filter,
		log:       log.Named("collector"),
	}
}

func (c *Collector) Collect(ctx context.Context, maxCount int) (out []model.CanonicalTransaction) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("collector panic", zap.String("panic", fmt.Sprint(r)))
			out = nil
		}
	}()

	if maxCount <= 0 {
		return nil
	}

	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			c.log.Warn("collection aborted", zap.Error(err))
			return nil
		}

		txs, err := p.FetchBatch(ctx, maxCount, c.filter.Keep)
		switch {
		case errors.Is(err, ErrNotConfigured):
			c.log.Debug("provider skipped, not configured", zap.String("provider", p.Name()))
			continue
		case err != nil:
			c.log.Warn("provider failed, falling through", zap.String("provider", p.Name()), zap.Error(err))
			continue
		case len(txs) == 0:
			c.log.Warn("provider returned no data, falling through", zap.String("provider", p.Name()))
			continue
		}

		if len(txs) > maxCount {
			txs = txs[:maxCount]
		}
		c.log.Info("batch collected", zap.String("provider", p.Name()), zap.Int("count", len(txs)))
		return txs
	}

	c.log.Warn("no provider returned data")
	return nil
}
