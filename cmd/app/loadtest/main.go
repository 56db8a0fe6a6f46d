package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pvzzle/safescore/internal/model"
	"github.com/pvzzle/safescore/internal/storage"
	"github.com/pvzzle/safescore/internal/storage/pg"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

type opType int

const (
	opAppendLog opType = iota
	opKnown
	opPending
)

func (o opType) String() string {
	switch o {
	case opAppendLog:
		return "tx_log"
	case opKnown:
		return "known"
	default:
		return "pending"
	}
}

func main() {
	var (
		dsn       = flag.String("dsn", os.Getenv("POSTGRES_URL"), "Postgres DSN")
		dur       = flag.Duration("dur", 60*time.Second, "test duration")
		warmup    = flag.Duration("warmup", 5*time.Second, "warmup duration (not counted)")
		avgRPS    = flag.Int("avg-rps", 100, "avg RPS")
		peakRPS   = flag.Int("peak-rps", 500, "peak RPS (during ramp)")
		ramp      = flag.Duration("ramp", 10*time.Second, "ramp-up duration to peak")
		knownPer  = flag.Int("known", 3, "known-address upserts per 1 tx_log batch")
		workers   = flag.Int("workers", 32, "concurrent workers")
		batch     = flag.Int("batch", 50, "rows per tx_log batch (a run writes one batch)")
		addrPool  = flag.Int("addr-pool", 5000, "distinct sender addresses (smaller = more conflicts)")
		heldShare = flag.Float64("held", 0.1, "share of rows that also go to pending_review")
	)
	flag.Parse()

	if *dsn == "" {
		panic("dsn required")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		panic(err)
	}

	w := workload{batch: *batch, addrPool: *addrPool, held: *heldShare}

	fmt.Println("starting warmup:", *warmup)
	runPhase(ctx, repo, w, *workers, *avgRPS, *avgRPS, 0, *warmup, *knownPer, false)

	fmt.Println("starting measured test:", *dur)
	res := runPhase(ctx, repo, w, *workers, *avgRPS, *peakRPS, *ramp, *dur, *knownPer, true)

	printReport(res)
}

type workload struct {
	batch    int
	addrPool int
	held     float64
}

type results struct {
	totalOps   uint64
	opCounts   [3]uint64
	errOps     uint64
	latencies  []time.Duration // measured ops only
	startedAt  time.Time
	finishedAt time.Time
}

func runPhase(
	ctx context.Context,
	repo storage.Repository,
	w workload,
	workers int,
	avgRPS int,
	peakRPS int,
	ramp time.Duration,
	dur time.Duration,
	knownPer int,
	collect bool,
) results {
	ctx, cancel := context.WithTimeout(ctx, dur)
	defer cancel()

	// If ramp == 0 => constant avgRPS
	lim := rate.NewLimiter(rate.Limit(avgRPS), avgRPS)

	jobs := make(chan opType, 1024)

	var (
		res results
		mu  sync.Mutex
	)

	res.startedAt = time.Now()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano()))
			for op := range jobs {
				t0 := time.Now()
				err := doOp(ctx, repo, op, r, w)
				dt := time.Since(t0)

				atomic.AddUint64(&res.totalOps, 1)
				atomic.AddUint64(&res.opCounts[op], 1)
				if err != nil {
					atomic.AddUint64(&res.errOps, 1)
					continue
				}
				if collect {
					mu.Lock()
					res.latencies = append(res.latencies, dt)
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)

		// knownPer upserts, then one log batch, then one pending batch
		pattern := make([]opType, 0, knownPer+2)
		for i := 0; i < knownPer; i++ {
			pattern = append(pattern, opKnown)
		}
		pattern = append(pattern, opAppendLog, opPending)
		idx := 0

		rampStart := time.Now()

		for {
			if err := lim.Wait(ctx); err != nil {
				return
			}

			if ramp > 0 {
				el := time.Since(rampStart)
				if el < ramp {
					cur := float64(avgRPS) + (float64(peakRPS-avgRPS) * (float64(el) / float64(ramp)))
					lim.SetLimit(rate.Limit(cur))
				} else {
					lim.SetLimit(rate.Limit(peakRPS))
				}
			}

			jobs <- pattern[idx]
			idx = (idx + 1) % len(pattern)
		}
	}()

	wg.Wait()
	res.finishedAt = time.Now()
	return res
}

func doOp(ctx context.Context, repo storage.Repository, op opType, r *rand.Rand, w workload) error {
	switch op {
	case opKnown:
		_, err := repo.AppendKnownAddress(ctx, storage.KnownAddress{
			Address:   address(r, w.addrPool),
			FirstSeen: time.Now().UTC(),
		})
		return err
	case opAppendLog:
		rows := make([]storage.TxRecord, 0, w.batch)
		for i := 0; i < w.batch; i++ {
			rows = append(rows, fakeTx(r, w.addrPool))
		}
		return repo.AppendTransactions(ctx, time.Now().UTC(), rows)
	case opPending:
		n := int(float64(w.batch) * w.held)
		if n == 0 {
			return nil
		}
		rows := make([]storage.PendingRecord, 0, n)
		for i := 0; i < n; i++ {
			rec := fakeTx(r, w.addrPool)
			rec.Score = r.Intn(50)
			rec.PenaltyTotal = 100 - rec.Score
			rows = append(rows, rec.Pending())
		}
		return repo.AppendPending(ctx, rows)
	default:
		return nil
	}
}

// address picks from a fixed pool so that known-address upserts collide.
func address(r *rand.Rand, pool int) string {
	return fmt.Sprintf("0x%040x", r.Intn(max(pool, 1)))
}

func fakeTx(r *rand.Rand, pool int) storage.TxRecord {
	return storage.TxRecord{
		TxID:          fmt.Sprintf("0x%064x", r.Uint64()),
		Timestamp:     time.Now().UTC(),
		FromAddr:      address(r, pool),
		ToAddr:        fmt.Sprintf("0x%040x", r.Uint64()),
		Amount:        decimal.New(r.Int63n(1_000_000_000), -6),
		Token:         "ETH",
		Method:        model.MethodTransfer,
		Chain:         "ETH",
		VelocityCount: r.Intn(8),
		Score:         100,
	}
}

func printReport(res results) {
	d := res.finishedAt.Sub(res.startedAt)
	total := atomic.LoadUint64(&res.totalOps)
	errs := atomic.LoadUint64(&res.errOps)

	fmt.Printf("\n== REPORT ==\n")
	fmt.Printf("duration: %s\n", d)
	fmt.Printf("ops: total=%d errors=%d", total, errs)
	for op := opAppendLog; op <= opPending; op++ {
		fmt.Printf(" %s=%d", op, atomic.LoadUint64(&res.opCounts[op]))
	}
	fmt.Println()
	if d > 0 {
		fmt.Printf("throughput: %.2f ops/s\n", float64(total)/d.Seconds())
	}
	if len(res.latencies) == 0 {
		fmt.Println("no latency samples")
		return
	}
	sort.Slice(res.latencies, func(i, j int) bool { return res.latencies[i] < res.latencies[j] })
	p := func(q float64) time.Duration {
		i := int(q * float64(len(res.latencies)-1))
		return res.latencies[i]
	}
	fmt.Printf("latency p50=%s p95=%s p99=%s max=%s\n",
		p(0.50), p(0.95), p(0.99), res.latencies[len(res.latencies)-1],
	)
}
