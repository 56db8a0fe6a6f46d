package alert

import (
	"fmt"

	"github.com/pvzzle/safescore/internal/model"
	"github.com/pvzzle/safescore/internal/scoring"
)

// Abbreviate shortens long addresses to 0x1234…abcd.
func Abbreviate(addr string) string {
	r := []rune(addr)
	if len(r) <= 10 {
		return addr
	}
	return string(r[:6]) + "…" + string(r[len(r)-4:])
}

func FormatAlert(s scoring.ScoredTransaction, threshold int) string {
	reasons := s.ReasonsText()
	if reasons == "" {
		reasons = "n/d"
	}
	return fmt.Sprintf(
		"🚨 SafeScore ALERTA\nTX: %s\nScore: %d (< %d)\nDe: %s\nPara: %s\nValor: %s %s\nMotivos: %s",
		s.TxID,
		s.Score(),
		threshold,
		Abbreviate(s.FromAddress),
		Abbreviate(s.ToAddress),
		model.FormatAmount(s.Amount),
		s.Token,
		reasons,
	)
}
