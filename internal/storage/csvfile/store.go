package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/model"
	"github.com/pvzzle/safescore/internal/storage"

	pkgerrors "github.com/pkg/errors"
)

const (
	TransactionsFile = "transactions.csv"
	PendingFile      = "pending_review.csv"
	KnownFile        = "known_addresses.csv"
)

var (
	txHeader = []string{
		"tx_id", "timestamp", "from_address", "to_address", "amount", "token", "method", "chain",
		"is_new_address", "velocity_last_window", "score", "penalty_total", "reasons", "explain",
	}
	pendingHeader = []string{
		"tx_id", "timestamp", "from_address", "to_address", "amount", "token", "method", "chain",
		"score", "penalty_total", "reasons", "explain",
	}
	knownHeader = []string{"address", "first_seen"}
)

// Store keeps the run state as CSV files in one directory.
type Store struct {
	dir string
}

func New(dir string) *Store { return &Store{dir: dir} }

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func DailyFile(day time.Time) string {
	return "transactions_" + storage.DayKey(day) + ".csv"
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return pkgerrors.Wrap(err, "create data dir")
	}
	if _, err := os.Stat(s.path(KnownFile)); errors.Is(err, fs.ErrNotExist) {
		return appendRows(s.path(KnownFile), knownHeader, nil)
	} else if err != nil {
		return pkgerrors.Wrap(err, "stat known addresses")
	}
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]storage.TxRecord, error) {
	rows, err := readRows(s.path(TransactionsFile))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read transactions")
	}

	out := make([]storage.TxRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.TxRecord{
			TxID:          r["tx_id"],
			Timestamp:     model.ParseTimestamp(r["timestamp"], time.Time{}),
			FromAddr:      r["from_address"],
			ToAddr:        r["to_address"],
			Amount:        model.ParseAmount(r["amount"], model.EncodingDecimal),
			Token:         r["token"],
			Method:        r["method"],
			Chain:         r["chain"],
			IsNewAddress:  r["is_new_address"] == "yes",
			VelocityCount: atoi(r["velocity_last_window"]),
			Score:         atoi(r["score"]),
			PenaltyTotal:  atoi(r["penalty_total"]),
			Reasons:       r["reasons"],
			Explain:       r["explain"],
		})
	}
	return out, nil
}

func (s *Store) LoadKnownAddresses(ctx context.Context) ([]storage.KnownAddress, error) {
	rows, err := readRows(s.path(KnownFile))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read known addresses")
	}

	out := make([]storage.KnownAddress, 0, len(rows))
	for _, r := range rows {
		addr := strings.TrimSpace(r["address"])
		if addr == "" {
			continue
		}
		out = append(out, storage.KnownAddress{
			Address:   addr,
			FirstSeen: model.ParseTimestamp(r["first_seen"], time.Time{}),
		})
	}
	return out, nil
}

func (s *Store) AppendKnownAddress(ctx context.Context, addr storage.KnownAddress) (bool, error) {
	a := strings.ToLower(strings.TrimSpace(addr.Address))
	if a == "" {
		return false, nil
	}

	// свежее чтение перед каждой записью
	current, err := s.LoadKnownAddresses(ctx)
	if err != nil {
		return false, err
	}
	for _, k := range current {
		if strings.EqualFold(k.Address, a) {
			return false, nil
		}
	}

	row := []string{a, formatTime(addr.FirstSeen)}
	if err := appendRows(s.path(KnownFile), knownHeader, [][]string{row}); err != nil {
		return false, pkgerrors.Wrap(err, "append known address")
	}
	return true, nil
}

func (s *Store) AppendTransactions(ctx context.Context, day time.Time, rows []storage.TxRecord) error {
	if len(rows) == 0 {
		return nil
	}

	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		isNew := "no"
		if r.IsNewAddress {
			isNew = "yes"
		}
		recs = append(recs, []string{
			r.TxID, formatTime(r.Timestamp), r.FromAddr, r.ToAddr, r.Amount.String(), r.Token, r.Method, r.Chain,
			isNew, strconv.Itoa(r.VelocityCount), strconv.Itoa(r.Score), strconv.Itoa(r.PenaltyTotal), r.Reasons, r.Explain,
		})
	}

	if err := appendRows(s.path(TransactionsFile), txHeader, recs); err != nil {
		return pkgerrors.Wrap(err, "append transactions")
	}
	if err := appendRows(s.path(DailyFile(day)), txHeader, recs); err != nil {
		return pkgerrors.Wrap(err, "append daily transactions")
	}
	return nil
}

func (s *Store) AppendPending(ctx context.Context, rows []storage.PendingRecord) error {
	if len(rows) == 0 {
		return nil
	}

	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{
			r.TxID, formatTime(r.Timestamp), r.FromAddr, r.ToAddr, r.Amount.String(), r.Token, r.Method, r.Chain,
			strconv.Itoa(r.Score), strconv.Itoa(r.PenaltyTotal), r.Reasons, r.Explain,
		})
	}
	return pkgerrors.Wrap(appendRows(s.path(PendingFile), pendingHeader, recs), "append pending")
}

// appendRows appends recs to path, writing header first when the file is new or empty.
func appendRows(path string, header []string, recs [][]string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.WriteAll(recs); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readRows reads a headed CSV into header-keyed maps. A missing file is empty.
func readRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	var out []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[strings.TrimSpace(h)] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
