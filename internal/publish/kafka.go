package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pvzzle/safescore/internal/scoring"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Sink receives the scored rows of a run.
type Sink interface {
	Publish(ctx context.Context, runID string, rows []scoring.ScoredTransaction) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, string, []scoring.ScoredTransaction) error { return nil }
func (Nop) Close() error                                                       { return nil }

type ScoredEvent struct {
	RunID         string          `json:"run_id"`
	TxID          string          `json:"tx_id"`
	Timestamp     time.Time       `json:"timestamp"`
	FromAddress   string          `json:"from_address"`
	ToAddress     string          `json:"to_address"`
	Amount        string          `json:"amount"`
	Token         string          `json:"token"`
	Method        string          `json:"method"`
	Chain         string          `json:"chain"`
	IsNewAddress  bool            `json:"is_new_address"`
	VelocityCount int             `json:"velocity_last_window"`
	Score         int             `json:"score"`
	PenaltyTotal  int             `json:"penalty_total"`
	Reasons       []string        `json:"reasons"`
	Explain       scoring.Explain `json:"explain"`
}

func NewScoredEvent(runID string, s scoring.ScoredTransaction) ScoredEvent {
	reasons := s.Result.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return ScoredEvent{
		RunID:         runID,
		TxID:          s.TxID,
		Timestamp:     s.Timestamp.UTC(),
		FromAddress:   s.FromAddress,
		ToAddress:     s.ToAddress,
		Amount:        s.Amount.String(),
		Token:         s.Token,
		Method:        s.Method,
		Chain:         s.Chain,
		IsNewAddress:  s.IsNewAddress,
		VelocityCount: s.Result.VelocityCount,
		Score:         s.Score(),
		PenaltyTotal:  s.PenaltyTotal,
		Reasons:       reasons,
		Explain:       s.Explain,
	}
}

type Kafka struct {
	topic string
	p     sarama.SyncProducer
	log   *zap.Logger
}

func NewKafka(brokers []string, topic string, log *zap.Logger) (*Kafka, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "safescore"
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaWithProducer(p, topic, log), nil
}

func NewKafkaWithProducer(p sarama.SyncProducer, topic string, log *zap.Logger) *Kafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &Kafka{topic: topic, p: p, log: log.Named("kafka")}
}

// Publish sends one message per row keyed by tx id.
func (k *Kafka) Publish(ctx context.Context, runID string, rows []scoring.ScoredTransaction) error {
	if len(rows) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(rows))
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := json.Marshal(NewScoredEvent(runID, r))
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.TxID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(r.TxID),
			Value: sarama.ByteEncoder(b),
		})
	}

	// SyncProducer не принимает ctx
	if err := k.p.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	k.log.Debug("scored rows published", zap.String("topic", k.topic), zap.Int("count", len(msgs)))
	return nil
}

func (k *Kafka) Close() error {
	if k.p != nil {
		return k.p.Close()
	}
	return nil
}
