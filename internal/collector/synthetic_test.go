package collector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pvzzle/safescore/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_Generate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSynthetic(42, func() time.Time { return now })

	batch, err := s.FetchBatch(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, batch, SyntheticBatchSize+1)

	for _, tx := range batch[:SyntheticBatchSize] {
		assert.Equal(t, SyntheticChain, tx.Chain)
		assert.Len(t, tx.FromAddress, 42)
		assert.True(t, strings.HasPrefix(tx.TxID, "MOCK-"))
		assert.False(t, tx.Timestamp.After(now))
		assert.False(t, tx.Timestamp.Before(now.Add(-120*time.Minute)))
		assert.Contains(t, []string{model.MethodTransfer, model.MethodApprove, model.MethodSwap}, tx.Method)

		if tx.Token == "ETH" {
			assert.True(t, tx.Amount.GreaterThanOrEqual(decimal.RequireFromString("0.01")))
			assert.True(t, tx.Amount.LessThanOrEqual(decimal.RequireFromString("2.5")))
		} else {
			assert.True(t, tx.Amount.GreaterThanOrEqual(decimal.NewFromInt(5)))
			assert.True(t, tx.Amount.LessThanOrEqual(decimal.NewFromInt(25000)))
		}
	}

	last := batch[SyntheticBatchSize]
	assert.Equal(t, SuspiciousSender, last.FromAddress)
	assert.Equal(t, "USDT", last.Token)
	assert.Equal(t, model.MethodApprove, last.Method)
	assert.True(t, last.Amount.Equal(decimal.RequireFromString("23529.2")))
	assert.True(t, strings.HasSuffix(last.TxID, "-X"))
}

func TestSynthetic_SeedIsReproducible(t *testing.T) {
	now := func() time.Time { return time.Unix(1700000000, 0) }
	a := NewSynthetic(7, now).Generate()
	b := NewSynthetic(7, now).Generate()
	assert.Equal(t, a, b)
}
