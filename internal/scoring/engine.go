package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/lists"
	"github.com/pvzzle/safescore/internal/model"

	"github.com/shopspring/decimal"
)

type Config struct {
	AmountThreshold   decimal.Decimal
	VelocityWindowMin int
	VelocityMaxTx     int
}

func DefaultConfig() Config {
	return Config{
		AmountThreshold:   decimal.NewFromInt(10000),
		VelocityWindowMin: 10,
		VelocityMaxTx:     5,
	}
}

type Hit struct {
	Rule   Rule
	Weight int
}

type ScoreResult struct {
	Score         int
	Hits          []Hit // порядок = порядок правил
	Reasons       []string
	VelocityCount int
}

func (r ScoreResult) PenaltyTotal() int {
	total := 0
	for _, h := range r.Hits {
		total += h.Weight
	}
	return total
}

func (r ScoreResult) Matched(rule Rule) bool {
	for _, h := range r.Hits {
		if h.Rule == rule {
			return true
		}
	}
	return false
}

type Option func(*Engine)

// WithNow fixes the instant used for transactions without a timestamp.
func WithNow(now time.Time) Option {
	return func(e *Engine) { e.now = now.UTC() }
}

// Engine scores transactions against state frozen at construction.
// It is safe for concurrent use since nothing is mutated after NewEngine.
type Engine struct {
	lists   lists.AddressLists
	weights Weights
	cfg     Config
	known   lists.Set

	// from_address -> отсортированные timestamps прошлых транзакций
	history map[string][]time.Time

	now time.Time
}

func NewEngine(
	l lists.AddressLists,
	w Weights,
	cfg Config,
	previous []model.CanonicalTransaction,
	known lists.Set,
	opts ...Option,
) *Engine {
	if w == nil {
		w = DefaultWeights()
	}
	if known == nil {
		known = lists.NewSet()
	}

	e := &Engine{
		lists:   l,
		weights: w.Clone(),
		cfg:     cfg,
		known:   known,
		history: make(map[string][]time.Time),
		now:     time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, tx := range previous {
		from := strings.ToLower(strings.TrimSpace(tx.FromAddress))
		if from == "" || tx.Timestamp.IsZero() {
			continue
		}
		e.history[from] = append(e.history[from], tx.Timestamp.UTC())
	}
	for _, ts := range e.history {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	}

	return e
}

func (e *Engine) Weights() Weights { return e.weights.Clone() }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Score(tx model.CanonicalTransaction) ScoreResult {
	from := strings.ToLower(strings.TrimSpace(tx.FromAddress))
	to := strings.ToLower(strings.TrimSpace(tx.ToAddress))
	token := strings.ToLower(strings.TrimSpace(tx.Token))
	method := strings.ToLower(strings.TrimSpace(tx.Method))

	amount := tx.Amount
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	ts := tx.Timestamp.UTC()
	if tx.Timestamp.IsZero() {
		ts = e.now
	}

	var res ScoreResult
	hit := func(r Rule, reason string) {
		res.Hits = append(res.Hits, Hit{Rule: r, Weight: e.weights[r]})
		res.Reasons = append(res.Reasons, reason)
	}

	if e.lists.Blacklist.MatchAny(from, to) {
		hit(RuleBlacklist, "Endereço em blacklist")
	}
	if e.lists.Watchlist.MatchAny(from, to) {
		hit(RuleWatchlist, "Endereço em watchlist")
	}
	if amount.GreaterThanOrEqual(e.cfg.AmountThreshold) {
		hit(RuleHighAmount, fmt.Sprintf("Valor alto (>= %s)", e.cfg.AmountThreshold.String()))
	}
	if h := ts.Hour(); h >= 0 && h <= 5 {
		hit(RuleUnusualHour, "Horário incomum (madrugada)")
	}
	if from != "" && !e.known.Has(from) {
		hit(RuleNewAddress, "Endereço remetente não conhecido")
	}

	res.VelocityCount = e.velocity(from, ts)
	if res.VelocityCount > e.cfg.VelocityMaxTx {
		hit(RuleVelocity, fmt.Sprintf("Velocidade alta (%d txs em %dmin)", res.VelocityCount, e.cfg.VelocityWindowMin))
	}

	if token != "" && e.lists.SensitiveTokens.Has(token) {
		hit(RuleSensitiveToken, fmt.Sprintf("Token sensível (%s)", token))
	}
	if method != "" && e.lists.SensitiveMethods.Has(method) {
		hit(RuleSensitiveMethod, fmt.Sprintf("Método sensível (%s)", method))
	}

	res.Score = 100 - res.PenaltyTotal()
	if res.Score < 0 {
		res.Score = 0
	}
	return res
}

// velocity counts prior transactions of from within [ts-window, ts], both ends inclusive.
func (e *Engine) velocity(from string, ts time.Time) int {
	if from == "" {
		return 0
	}
	hist := e.history[from]
	if len(hist) == 0 {
		return 0
	}

	start := ts.Add(-time.Duration(e.cfg.VelocityWindowMin) * time.Minute)
	lo := sort.Search(len(hist), func(i int) bool { return !hist[i].Before(start) })
	hi := sort.Search(len(hist), func(i int) bool { return hist[i].After(ts) })
	if hi < lo {
		return 0
	}
	return hi - lo
}

// Evaluate scores tx and attaches the derived penalty and explain payload.
func (e *Engine) Evaluate(tx model.CanonicalTransaction) ScoredTransaction {
	res := e.Score(tx)
	if tx.Timestamp.IsZero() {
		tx.Timestamp = e.now
	}
	tx.Timestamp = tx.Timestamp.UTC()

	return ScoredTransaction{
		CanonicalTransaction: tx,
		Result:               res,
		IsNewAddress:         res.Matched(RuleNewAddress),
		PenaltyTotal:         res.PenaltyTotal(),
		Explain:              NewExplain(res.Hits),
	}
}
