package collector

import (
	"github.com/pvzzle/safescore/internal/lists"
	"github.com/pvzzle/safescore/internal/model"

	"github.com/shopspring/decimal"
)

// Filter is the acceptance check shared by every provider.
type Filter struct {
	MinAmount    decimal.Decimal
	From         lists.Set
	To           lists.Set
	Monitor      lists.Set
	RequireMatch bool
}

func (f Filter) Keep(tx model.CanonicalTransaction) bool {
	if f.MinAmount.IsPositive() && tx.Amount.LessThan(f.MinAmount) {
		return false
	}

	hasMonitor := f.Monitor.MatchAny(tx.FromAddress, tx.ToAddress)
	hasFrom := f.From.Has(tx.FromAddress)
	hasTo := f.To.Has(tx.ToAddress)

	if f.RequireMatch {
		return hasMonitor || hasFrom || hasTo
	}

	if len(f.From) > 0 && !hasFrom {
		return false
	}
	if len(f.To) > 0 && !hasTo {
		return false
	}
	return true
}
