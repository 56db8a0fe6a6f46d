package collector

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/model"

	"github.com/shopspring/decimal"
)

const (
	SyntheticChain      = "MOCK"
	SyntheticBatchSize  = 12
	SuspiciousSender    = "0x8856599b86858a4c61cb67c26c5b1d7d41faa49d"
	syntheticMaxAgeMins = 120
)

var (
	syntheticTokens  = []string{"ETH", "USDT", "USDC", "DAI"}
	syntheticMethods = []string{model.MethodTransfer, model.MethodApprove, model.MethodSwap}
	suspiciousAmount = decimal.RequireFromString("23529.2")
)

// Synthetic generates an offline batch: random rows plus one row built to trip several rules.
type Synthetic struct {
	rnd *rand.Rand
	now func() time.Time
}

func NewSynthetic(seed int64, now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}
	return &Synthetic{rnd: rand.New(rand.NewSource(seed)), now: now}
}

func (s *Synthetic) Name() string { return "synthetic" }

// FetchBatch ignores maxCount and keep: the offline batch always has a fixed shape.
func (s *Synthetic) FetchBatch(_ context.Context, _ int, _ KeepFunc) ([]model.CanonicalTransaction, error) {
	return s.Generate(), nil
}

func (s *Synthetic) Generate() []model.CanonicalTransaction {
	now := s.now().UTC()
	stamp := now.Unix()

	out := make([]model.CanonicalTransaction, 0, SyntheticBatchSize+1)
	for i := 0; i < SyntheticBatchSize; i++ {
		token := syntheticTokens[s.rnd.Intn(len(syntheticTokens))]

		var amount decimal.Decimal
		if token == "ETH" {
			amount = decimal.NewFromFloat(0.01 + s.rnd.Float64()*(2.5-0.01)).Round(8)
		} else {
			amount = decimal.NewFromFloat(5 + s.rnd.Float64()*(25000-5)).Round(2)
		}

		out = append(out, model.CanonicalTransaction{
			TxID:        fmt.Sprintf("MOCK-%d-%d", stamp, i),
			Timestamp:   now.Add(-time.Duration(s.rnd.Intn(syntheticMaxAgeMins+1)) * time.Minute),
			FromAddress: s.address(),
			ToAddress:   s.address(),
			Amount:      amount,
			Token:       token,
			Method:      syntheticMethods[s.rnd.Intn(len(syntheticMethods))],
			Chain:       SyntheticChain,
		})
	}

	out = append(out, model.CanonicalTransaction{
		TxID:        fmt.Sprintf("MOCK-%d-X", stamp),
		Timestamp:   now.Add(-time.Minute),
		FromAddress: SuspiciousSender,
		ToAddress:   s.address(),
		Amount:      suspiciousAmount,
		Token:       "USDT",
		Method:      model.MethodApprove,
		Chain:       SyntheticChain,
	})
	return out
}

func (s *Synthetic) address() string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.Grow(42)
	b.WriteString("0x")
	for i := 0; i < 40; i++ {
		b.WriteByte(hex[s.rnd.Intn(len(hex))])
	}
	return b.String()
}

// Collect satisfies the pipeline source contract for the offline batch.
func (s *Synthetic) Collect(_ context.Context, _ int) []model.CanonicalTransaction {
	return s.Generate()
}
