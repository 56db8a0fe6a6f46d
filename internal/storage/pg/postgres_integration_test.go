//go:build integration

package pg_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pvzzle/safescore/internal/storage"
	"github.com/pvzzle/safescore/internal/storage/pg"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func TestRepo_AppendAndLoad(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("PG_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_PG_DSN/PG_DSN is not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	repo := pg.New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// повторный прогон миграций не должен падать
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema twice: %v", err)
	}

	_, _ = pool.Exec(ctx, "TRUNCATE tx_log, tx_log_daily, known_addresses, pending_review RESTART IDENTITY")

	ts := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := storage.TxRecord{
		TxID:          "0x" + repeat("1", 64),
		Timestamp:     ts,
		FromAddr:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		ToAddr:        "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Amount:        decimal.RequireFromString("23529.2"),
		Token:         "USDT",
		Method:        "APPROVE",
		Chain:         "ETH",
		IsNewAddress:  true,
		VelocityCount: 1,
		Score:         15,
		PenaltyTotal:  85,
		Reasons:       "Endereço em blacklist; Valor alto (>= 10000)",
		Explain:       `{"weights":{"blacklist":60,"high_amount":25},"contrib_pct":{"blacklist":70.6,"high_amount":29.4}}`,
	}

	if err := repo.AppendTransactions(ctx, ts, []storage.TxRecord{rec}); err != nil {
		t.Fatalf("AppendTransactions: %v", err)
	}
	if err := repo.AppendPending(ctx, []storage.PendingRecord{rec.Pending()}); err != nil {
		t.Fatalf("AppendPending: %v", err)
	}

	rows, err := repo.LoadTransactions(ctx)
	if err != nil {
		t.Fatalf("LoadTransactions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got=%d", len(rows))
	}
	if !rows[0].Amount.Equal(rec.Amount) || rows[0].Score != 15 || !rows[0].Timestamp.Equal(ts) {
		t.Fatalf("unexpected row: %+v", rows[0])
	}

	var daily int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM tx_log_daily WHERE day = $1::date", "2025-03-10").Scan(&daily); err != nil {
		t.Fatalf("count daily: %v", err)
	}
	if daily != 1 {
		t.Fatalf("expected 1 daily row, got=%d", daily)
	}

	added, err := repo.AppendKnownAddress(ctx, storage.KnownAddress{Address: rec.FromAddr, FirstSeen: ts})
	if err != nil || !added {
		t.Fatalf("first AppendKnownAddress: added=%v err=%v", added, err)
	}
	added, err = repo.AppendKnownAddress(ctx, storage.KnownAddress{Address: rec.FromAddr, FirstSeen: ts.Add(time.Hour)})
	if err != nil || added {
		t.Fatalf("second AppendKnownAddress: added=%v err=%v", added, err)
	}

	known, err := repo.LoadKnownAddresses(ctx)
	if err != nil {
		t.Fatalf("LoadKnownAddresses: %v", err)
	}
	if len(known) != 1 || !known[0].FirstSeen.Equal(ts) {
		t.Fatalf("unexpected known: %+v", known)
	}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
