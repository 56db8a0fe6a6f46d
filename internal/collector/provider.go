package collector

import (
	"context"
	"errors"

	"github.com/pvzzle/safescore/internal/model"
)

var (
	ErrNotConfigured = errors.New("provider not configured")
	ErrNoEndpoints   = errors.New("no endpoints configured")
)

// KeepFunc decides whether a normalized transaction enters the batch.
type KeepFunc func(model.CanonicalTransaction) bool

// Provider is one source of transactions. Providers are tried in order by Collector.
type Provider interface {
	Name() string
	FetchBatch(ctx context.Context, maxCount int, keep KeepFunc) ([]model.CanonicalTransaction, error)
}

func keepAll(model.CanonicalTransaction) bool { return true }
