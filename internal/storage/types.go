package storage

import (
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/model"
	"github.com/pvzzle/safescore/internal/scoring"

	"github.com/shopspring/decimal"
)

const DayLayout = "20060102"

type TxRecord struct {
	TxID      string
	Timestamp time.Time
	FromAddr  string
	ToAddr    string
	Amount    decimal.Decimal
	Token     string
	Method    string
	Chain     string

	IsNewAddress  bool
	VelocityCount int
	Score         int
	PenaltyTotal  int
	Reasons       string // "; "-separated
	Explain       string // JSON
}

type PendingRecord struct {
	TxID      string
	Timestamp time.Time
	FromAddr  string
	ToAddr    string
	Amount    decimal.Decimal
	Token     string
	Method    string
	Chain     string

	Score        int
	PenaltyTotal int
	Reasons      string
	Explain      string
}

type KnownAddress struct {
	Address   string
	FirstSeen time.Time
}

func NewTxRecord(s scoring.ScoredTransaction) TxRecord {
	return TxRecord{
		TxID:          s.TxID,
		Timestamp:     s.Timestamp.UTC(),
		FromAddr:      s.FromAddress,
		ToAddr:        s.ToAddress,
		Amount:        s.Amount,
		Token:         s.Token,
		Method:        s.Method,
		Chain:         s.Chain,
		IsNewAddress:  s.IsNewAddress,
		VelocityCount: s.Result.VelocityCount,
		Score:         s.Score(),
		PenaltyTotal:  s.PenaltyTotal,
		Reasons:       s.ReasonsText(),
		Explain:       s.Explain.String(),
	}
}

func (r TxRecord) Pending() PendingRecord {
	return PendingRecord{
		TxID:         r.TxID,
		Timestamp:    r.Timestamp,
		FromAddr:     r.FromAddr,
		ToAddr:       r.ToAddr,
		Amount:       r.Amount,
		Token:        r.Token,
		Method:       r.Method,
		Chain:        r.Chain,
		Score:        r.Score,
		PenaltyTotal: r.PenaltyTotal,
		Reasons:      r.Reasons,
		Explain:      r.Explain,
	}
}

// Canonical is the part of a logged row the scoring engine needs as history.
func (r TxRecord) Canonical() model.CanonicalTransaction {
	return model.CanonicalTransaction{
		TxID:        r.TxID,
		Timestamp:   r.Timestamp,
		FromAddress: strings.ToLower(r.FromAddr),
		ToAddress:   strings.ToLower(r.ToAddr),
		Amount:      r.Amount,
		Token:       r.Token,
		Method:      r.Method,
		Chain:       r.Chain,
	}
}

// DayKey names the daily partition of t (UTC calendar date).
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}
