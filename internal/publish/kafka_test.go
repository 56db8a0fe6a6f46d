package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pvzzle/safescore/internal/lists"
	"github.com/pvzzle/safescore/internal/model"
	"github.com/pvzzle/safescore/internal/scoring"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func scored(t *testing.T, id string) scoring.ScoredTransaction {
	t.Helper()
	noon := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l := lists.Empty()
	l.Watchlist.Add("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	e := scoring.NewEngine(l, nil, scoring.DefaultConfig(), nil, nil, scoring.WithNow(noon))
	return e.Evaluate(model.CanonicalTransaction{
		TxID:        id,
		Timestamp:   noon,
		FromAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		ToAddress:   "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Amount:      decimal.RequireFromString("1.5"),
		Token:       "ETH",
		Method:      model.MethodTransfer,
		Chain:       "ETH",
	})
}

func TestKafka_Publish(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev map[string]any
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev["run_id"] != "run-1" || ev["tx_id"] != "0x1" || ev["amount"] != "1.5" {
			return errors.New("unexpected event payload: " + string(val))
		}
		explain, ok := ev["explain"].(map[string]any)
		if !ok || explain["weights"] == nil {
			return errors.New("explain must be an object")
		}
		return nil
	})
	p.ExpectSendMessageAndSucceed()

	k := NewKafkaWithProducer(p, "safescore.scored", zaptest.NewLogger(t))
	require.NoError(t, k.Publish(context.Background(), "run-1", []scoring.ScoredTransaction{scored(t, "0x1"), scored(t, "0x2")}))
	require.NoError(t, k.Close())
}

func TestKafka_PublishError(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafkaWithProducer(p, "safescore.scored", zaptest.NewLogger(t))
	err := k.Publish(context.Background(), "run-1", []scoring.ScoredTransaction{scored(t, "0x1")})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, k.Close())
}

func TestKafka_EmptyBatch(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	k := NewKafkaWithProducer(p, "t", nil)
	assert.NoError(t, k.Publish(context.Background(), "run", nil))
	assert.NoError(t, k.Close())
}

func TestNewScoredEvent(t *testing.T) {
	ev := NewScoredEvent("r", scored(t, "0x9"))
	assert.Equal(t, 30, ev.Score)
	assert.Equal(t, 70, ev.PenaltyTotal)
	assert.Equal(t, []string{"Endereço em watchlist", "Endereço remetente não conhecido"}, ev.Reasons)
	assert.True(t, ev.IsNewAddress)
}
