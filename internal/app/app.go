package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pvzzle/safescore/internal/alert"
	"github.com/pvzzle/safescore/internal/collector"
	"github.com/pvzzle/safescore/internal/lists"
	"github.com/pvzzle/safescore/internal/logger"
	"github.com/pvzzle/safescore/internal/pipeline"
	"github.com/pvzzle/safescore/internal/publish"
	"github.com/pvzzle/safescore/internal/scoring"
	"github.com/pvzzle/safescore/internal/storage"
	"github.com/pvzzle/safescore/internal/storage/csvfile"
	"github.com/pvzzle/safescore/internal/storage/pg"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Options come from the command line and win over the environment.
type Options struct {
	Collector string
	Threshold int // < 0: SCORE_ALERT_THRESHOLD
}

func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	repo, closeRepo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeRepo()

	eth, closeEth := buildCollector(cfg, log)
	defer closeEth()

	sink := buildSink(cfg.Kafka, log)
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn("close sink", zap.Error(err))
		}
	}()

	notifier := alert.New(alert.TelegramConfig{
		Token:     cfg.Telegram.Token,
		ChatID:    cfg.Telegram.ChatID,
		ServerURL: cfg.Telegram.ServerURL,
		Timeout:   cfg.Telegram.Timeout,
	}, log)

	orch := pipeline.New(
		repo,
		lists.NewDirStore(cfg.Storage.DataDir, log),
		collector.NewSynthetic(time.Now().UnixNano(), time.Now),
		notifier,
		pipeline.Config{
			MaxTx: cfg.MaxTx,
			Scoring: scoring.Config{
				AmountThreshold:   cfg.Scoring.AmountThreshold,
				VelocityWindowMin: cfg.Scoring.VelocityWindowMin,
				VelocityMaxTx:     cfg.Scoring.VelocityMaxTx,
			},
			WeightsPath: cfg.Scoring.WeightsPath,
		},
		log,
		pipeline.WithSource(pipeline.ChoiceETH, eth),
		pipeline.WithSink(sink),
	)

	choice := cfg.Collector
	if opts.Collector != "" {
		choice = opts.Collector
	}
	threshold := cfg.AlertThreshold
	if opts.Threshold >= 0 {
		threshold = opts.Threshold
	}

	log.Info("starting run",
		zap.String("collector", choice),
		zap.Int("threshold", threshold),
		zap.String("storage", cfg.Storage.Backend),
	)
	if _, err := orch.Run(ctx, choice, threshold); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func openRepository(ctx context.Context, cfg StorageConfig) (storage.Repository, func(), error) {
	if cfg.Backend != BackendPostgres {
		return csvfile.New(cfg.DataDir), func() {}, nil
	}

	pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool new: %w", err)
	}
	return pg.New(pgPool), pgPool.Close, nil
}

// buildCollector wires the live chain providers: etherscan first, json-rpc as the fallback.
func buildCollector(cfg Config, log *zap.Logger) (*collector.Collector, func()) {
	retry := collector.RetryPolicy{Attempts: cfg.RPC.Retries, Backoff: cfg.RPC.Backoff}
	hc := &http.Client{Timeout: cfg.RPC.Timeout}

	etherscan := collector.NewEtherscanProvider(collector.EtherscanConfig{
		APIKey:        cfg.Etherscan.APIKey,
		URLs:          cfg.Etherscan.URLs,
		ChainID:       cfg.Etherscan.ChainID,
		Addresses:     cfg.Etherscan.Addresses,
		BlocksBack:    cfg.BlocksBack,
		MaxPerAddress: cfg.Etherscan.MaxPerAddress,
		AddressDelay:  cfg.Etherscan.AddressDelay,
		Chain:         cfg.ChainName,
		Retry:         retry,
	}, hc, log)

	rpc := collector.NewRPCProvider(collector.RPCConfig{
		URLs:    cfg.RPC.URLs,
		Timeout: cfg.RPC.Timeout,
		Depth:   cfg.BlocksBack,
		Chain:   cfg.ChainName,
		Retry:   retry,
	}, hc, log)

	filter := collector.Filter{
		MinAmount:    cfg.Filter.MinValue,
		From:         lists.NewSet(cfg.Filter.From...),
		To:           lists.NewSet(cfg.Filter.To...),
		Monitor:      lists.NewSet(cfg.Filter.Monitor...),
		RequireMatch: cfg.Filter.RequireMatch,
	}

	return collector.New(log, filter, etherscan, rpc), rpc.Close
}

func buildSink(cfg KafkaConfig, log *zap.Logger) publish.Sink {
	if len(cfg.Brokers) == 0 {
		return publish.Nop{}
	}
	k, err := publish.NewKafka(cfg.Brokers, cfg.Topic, log)
	if err != nil {
		// поток результатов опционален
		log.Warn("kafka unavailable, scored rows will not be published", zap.Error(err))
		return publish.Nop{}
	}
	return k
}
