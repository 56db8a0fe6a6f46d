package pg

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pvzzle/safescore/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose держит состояние глобально
var gooseMu sync.Mutex

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "goose dialect")
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

func (r *Postgres) LoadTransactions(ctx context.Context) ([]storage.TxRecord, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	q := `
SELECT tx_id, ts, from_address, to_address, amount, token, method, chain,
       is_new_address, velocity_last_window, score, penalty_total, reasons, explain::text
FROM tx_log
ORDER BY id
`
	rows, err := r.pool.Query(cctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "query tx_log")
	}
	defer rows.Close()

	var out []storage.TxRecord
	for rows.Next() {
		var (
			rec    storage.TxRecord
			amount pgtype.Numeric
			score  int16
		)
		if err := rows.Scan(
			&rec.TxID, &rec.Timestamp, &rec.FromAddr, &rec.ToAddr, &amount, &rec.Token, &rec.Method, &rec.Chain,
			&rec.IsNewAddress, &rec.VelocityCount, &score, &rec.PenaltyTotal, &rec.Reasons, &rec.Explain,
		); err != nil {
			return nil, errors.Wrap(err, "scan tx_log")
		}
		rec.Amount = fromNumeric(amount)
		rec.Score = int(score)
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}

	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "iterate tx_log")
	}
	return out, nil
}

func (r *Postgres) LoadKnownAddresses(ctx context.Context) ([]storage.KnownAddress, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(cctx, `SELECT address, first_seen FROM known_addresses ORDER BY first_seen, address`)
	if err != nil {
		return nil, errors.Wrap(err, "query known_addresses")
	}
	defer rows.Close()

	var out []storage.KnownAddress
	for rows.Next() {
		var k storage.KnownAddress
		if err := rows.Scan(&k.Address, &k.FirstSeen); err != nil {
			return nil, errors.Wrap(err, "scan known_addresses")
		}
		k.FirstSeen = k.FirstSeen.UTC()
		out = append(out, k)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "iterate known_addresses")
	}
	return out, nil
}

func (r *Postgres) AppendKnownAddress(ctx context.Context, addr storage.KnownAddress) (bool, error) {
	a := strings.ToLower(strings.TrimSpace(addr.Address))
	if a == "" {
		return false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// PK + ON CONFLICT: повторная вставка ничего не меняет
	tag, err := r.pool.Exec(cctx,
		`INSERT INTO known_addresses(address, first_seen) VALUES ($1, $2)
		 ON CONFLICT (address) DO NOTHING`,
		a, addr.FirstSeen.UTC(),
	)
	if err != nil {
		return false, errors.Wrap(err, "insert known address")
	}
	return tag.RowsAffected() == 1, nil
}

const (
	insertTxLog = `
INSERT INTO tx_log(
  tx_id, ts, from_address, to_address, amount, token, method, chain,
  is_new_address, velocity_last_window, score, penalty_total, reasons, explain
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb)`

	insertTxLogDaily = `
INSERT INTO tx_log_daily(
  day, tx_id, ts, from_address, to_address, amount, token, method, chain,
  is_new_address, velocity_last_window, score, penalty_total, reasons, explain
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::jsonb)`

	insertPending = `
INSERT INTO pending_review(
  tx_id, ts, from_address, to_address, amount, token, method, chain,
  score, penalty_total, reasons, explain
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)`
)

func (r *Postgres) AppendTransactions(ctx context.Context, day time.Time, rows []storage.TxRecord) error {
	if len(rows) == 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	d := day.UTC()
	dayDate := pgtype.Date{Time: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), Valid: true}

	// мастер-лог и дневной раздел пишутся в одной транзакции
	err := pgx.BeginFunc(cctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, row := range rows {
			args := []any{
				row.TxID, row.Timestamp.UTC(), row.FromAddr, row.ToAddr, toNumeric(row.Amount), row.Token, row.Method, row.Chain,
				row.IsNewAddress, row.VelocityCount, int16(row.Score), row.PenaltyTotal, row.Reasons, explainOrEmpty(row.Explain),
			}
			b.Queue(insertTxLog, args...)
			b.Queue(insertTxLogDaily, append([]any{dayDate}, args...)...)
		}
		return tx.SendBatch(cctx, b).Close()
	})
	return errors.Wrap(err, "append transactions")
}

func (r *Postgres) AppendPending(ctx context.Context, rows []storage.PendingRecord) error {
	if len(rows) == 0 {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := pgx.BeginFunc(cctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, row := range rows {
			b.Queue(insertPending,
				row.TxID, row.Timestamp.UTC(), row.FromAddr, row.ToAddr, toNumeric(row.Amount), row.Token, row.Method, row.Chain,
				int16(row.Score), row.PenaltyTotal, row.Reasons, explainOrEmpty(row.Explain),
			)
		}
		return tx.SendBatch(cctx, b).Close()
	})
	return errors.Wrap(err, "append pending")
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func explainOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}

func (r *Postgres) String() string { return fmt.Sprintf("pgrepo(%p)", r.pool) }
