package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/alert"
	"github.com/pvzzle/safescore/internal/lists"
	"github.com/pvzzle/safescore/internal/model"
	"github.com/pvzzle/safescore/internal/publish"
	"github.com/pvzzle/safescore/internal/scoring"
	"github.com/pvzzle/safescore/internal/storage"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	ChoiceMock    = "mock"
	ChoiceETH     = "eth"
	SourceOffline = "synthetic"
)

// Source yields a batch of transactions. An empty batch means no data.
type Source interface {
	Collect(ctx context.Context, maxCount int) []model.CanonicalTransaction
}

type ListLoader interface {
	Load(ctx context.Context) (lists.AddressLists, error)
}

type Config struct {
	MaxTx       int
	Scoring     scoring.Config
	WeightsPath string
}

type Option func(*Orchestrator)

// WithSource registers a named collector choice.
func WithSource(name string, src Source) Option {
	return func(o *Orchestrator) { o.sources[strings.ToLower(name)] = src }
}

func WithSink(s publish.Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type Orchestrator struct {
	repo     storage.Repository
	lists    ListLoader
	fallback Source
	sources  map[string]Source
	notifier alert.Notifier
	sink     publish.Sink
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func New(
	repo storage.Repository,
	ll ListLoader,
	fallback Source,
	notifier alert.Notifier,
	cfg Config,
	log *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if notifier == nil {
		notifier = alert.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{
		repo:     repo,
		lists:    ll,
		fallback: fallback,
		sources:  make(map[string]Source),
		notifier: notifier,
		sink:     publish.Nop{},
		cfg:      cfg,
		log:      log.Named("pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one batch: collect, score, grow the known-address set, persist,
// queue low scores for review and alert on them. Only persistence failures are returned.
func (o *Orchestrator) Run(ctx context.Context, choice string, threshold int) (RunReport, error) {
	rep := RunReport{
		RunID:     uuid.NewString(),
		Collector: choice,
		Threshold: threshold,
		StartedAt: o.now().UTC(),
	}
	log := o.log.With(zap.String("run_id", rep.RunID))

	// 1-2. хранилища и состояние прошлых прогонов
	if err := o.repo.EnsureSchema(ctx); err != nil {
		return rep, errors.Wrap(err, "ensure stores")
	}
	prevRecs, err := o.repo.LoadTransactions(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "load previous transactions")
	}
	knownRecs, err := o.repo.LoadKnownAddresses(ctx)
	if err != nil {
		return rep, errors.Wrap(err, "load known addresses")
	}

	// 3. движок
	engine, err := o.newEngine(ctx, log, prevRecs, knownRecs, rep.StartedAt)
	if err != nil {
		return rep, err
	}

	// 4. сбор
	txs, source := o.collect(ctx, log, choice)
	rep.Source = source

	// 5. скоринг
	scored := make([]scoring.ScoredTransaction, 0, len(txs))
	for _, tx := range txs {
		scored = append(scored, engine.Evaluate(tx))
	}

	// 6. новые адреса
	added, err := o.appendKnown(ctx, scored)
	if err != nil {
		return rep, err
	}
	rep.NewAddresses = added

	// 7. лог транзакций
	records := make([]storage.TxRecord, 0, len(scored))
	for _, s := range scored {
		records = append(records, storage.NewTxRecord(s))
	}
	if err := o.repo.AppendTransactions(ctx, o.now().UTC(), records); err != nil {
		return rep, errors.Wrap(err, "append transaction log")
	}
	rep.Processed = len(records)

	// 8. очередь на ревью и алерты
	var (
		pending []storage.PendingRecord
		flagged []scoring.ScoredTransaction
	)
	for i, s := range scored {
		if s.Score() < threshold {
			pending = append(pending, records[i].Pending())
			flagged = append(flagged, s)
		}
	}
	if err := o.repo.AppendPending(ctx, pending); err != nil {
		return rep, errors.Wrap(err, "append pending review")
	}
	rep.Held = len(pending)

	for _, s := range flagged {
		o.notifier.Send(ctx, alert.FormatAlert(s, threshold))
		rep.Alerts++
	}

	if err := o.sink.Publish(ctx, rep.RunID, scored); err != nil {
		log.Warn("publish scored rows failed", zap.Error(err))
	}

	rep.FinishedAt = o.now().UTC()
	log.Info("run finished",
		zap.String("collector", rep.Collector),
		zap.String("source", rep.Source),
		zap.Int("processed", rep.Processed),
		zap.Int("held", rep.Held),
		zap.Int("threshold", threshold),
		zap.Int("new_addresses", rep.NewAddresses),
		zap.Duration("took", rep.Duration()),
	)
	return rep, nil
}

func (o *Orchestrator) newEngine(
	ctx context.Context,
	log *zap.Logger,
	prevRecs []storage.TxRecord,
	knownRecs []storage.KnownAddress,
	now time.Time,
) (*scoring.Engine, error) {
	l, err := o.lists.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load lists")
	}

	w, err := scoring.LoadWeights(o.cfg.WeightsPath)
	if err != nil {
		log.Warn("weights override ignored, using defaults", zap.String("path", o.cfg.WeightsPath), zap.Error(err))
	}

	prev := make([]model.CanonicalTransaction, 0, len(prevRecs))
	for _, r := range prevRecs {
		prev = append(prev, r.Canonical())
	}
	known := lists.NewSet()
	for _, k := range knownRecs {
		known.Add(k.Address)
	}

	log.Debug("engine ready", zap.Int("history", len(prev)), zap.Int("known", len(known)))
	return scoring.NewEngine(l, w, o.cfg.Scoring, prev, known, scoring.WithNow(now)), nil
}

// collect runs the chosen source; an unknown choice or an empty batch falls back to the offline generator.
func (o *Orchestrator) collect(ctx context.Context, log *zap.Logger, choice string) ([]model.CanonicalTransaction, string) {
	name := strings.ToLower(strings.TrimSpace(choice))

	src, ok := o.sources[name]
	if !ok {
		if name != ChoiceMock {
			log.Warn("unknown collector, using synthetic batch", zap.String("collector", choice))
		}
		return o.fallback.Collect(ctx, o.cfg.MaxTx), SourceOffline
	}

	txs := src.Collect(ctx, o.cfg.MaxTx)
	if len(txs) == 0 {
		log.Warn("collector returned no data, using synthetic batch", zap.String("collector", name))
		return o.fallback.Collect(ctx, o.cfg.MaxTx), SourceOffline
	}
	return txs, name
}

func (o *Orchestrator) appendKnown(ctx context.Context, scored []scoring.ScoredTransaction) (int, error) {
	seen := make(map[string]struct{})
	added := 0
	for _, s := range scored {
		if !s.IsNewAddress {
			continue
		}
		addr := strings.ToLower(strings.TrimSpace(s.FromAddress))
		if _, dup := seen[addr]; dup || addr == "" {
			continue
		}
		seen[addr] = struct{}{}

		ok, err := o.repo.AppendKnownAddress(ctx, storage.KnownAddress{Address: addr, FirstSeen: o.now().UTC()})
		if err != nil {
			return added, errors.Wrap(err, "append known address")
		}
		if ok {
			added++
		}
	}
	return added, nil
}
