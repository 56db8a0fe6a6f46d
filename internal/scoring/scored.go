package scoring

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pvzzle/safescore/internal/model"

	"github.com/shopspring/decimal"
)

const ReasonSeparator = "; "

type ScoredTransaction struct {
	model.CanonicalTransaction

	Result       ScoreResult
	IsNewAddress bool
	PenaltyTotal int
	Explain      Explain
}

func (s ScoredTransaction) Score() int { return s.Result.Score }

func (s ScoredTransaction) ReasonsText() string {
	return strings.Join(s.Result.Reasons, ReasonSeparator)
}

// Explain is the per-rule breakdown of a penalty: the weights that fired and
// each one's share of the total, in percent rounded to one decimal.
type Explain struct {
	hits  []Hit
	total int
}

func NewExplain(hits []Hit) Explain {
	x := Explain{hits: append([]Hit(nil), hits...)}
	for _, h := range hits {
		x.total += h.Weight
	}
	return x
}

type Contribution struct {
	Rule Rule
	Pct  float64
}

// Contributions is empty when the total penalty is zero.
func (x Explain) Contributions() []Contribution {
	if x.total <= 0 {
		return nil
	}
	total := decimal.NewFromInt(int64(x.total))
	out := make([]Contribution, 0, len(x.hits))
	for _, h := range x.hits {
		pct := decimal.NewFromInt(int64(h.Weight)).
			Mul(decimal.NewFromInt(100)).
			Div(total).
			Round(1)
		f, _ := pct.Float64()
		out = append(out, Contribution{Rule: h.Rule, Pct: f})
	}
	return out
}

// MarshalJSON keeps rule order in both objects, which map marshalling would not.
func (x Explain) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"weights":{`)
	for i, h := range x.hits {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, string(h.Rule))
		buf.WriteString(strconv.Itoa(h.Weight))
	}

	buf.WriteString(`},"contrib_pct":{`)
	for i, c := range x.Contributions() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, string(c.Rule))
		buf.WriteString(strconv.FormatFloat(c.Pct, 'f', -1, 64))
	}
	buf.WriteString(`}}`)

	return buf.Bytes(), nil
}

func (x Explain) String() string {
	b, _ := x.MarshalJSON()
	return string(b)
}

func writeKey(buf *bytes.Buffer, k string) {
	kb, _ := json.Marshal(k)
	buf.Write(kb)
	buf.WriteByte(':')
}
