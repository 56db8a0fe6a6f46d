package collector

import (
	"strings"
	"time"

	"github.com/pvzzle/safescore/internal/model"
)

// Normalize converts a provider record to the canonical form.
// Records without a hash are dropped (ok == false); every other field falls back to a default.
func Normalize(raw model.RawTransaction, now time.Time) (model.CanonicalTransaction, bool) {
	id := strings.TrimSpace(raw.Hash)
	if id == "" {
		return model.CanonicalTransaction{}, false
	}

	method := strings.ToUpper(strings.TrimSpace(raw.Method))
	if method == "" {
		method = model.ClassifyMethod(strings.TrimSpace(raw.Input))
	}
	token := strings.ToUpper(strings.TrimSpace(raw.Token))
	if token == "" {
		token = "ETH"
	}

	return model.CanonicalTransaction{
		TxID:        id,
		Timestamp:   model.ParseTimestamp(raw.Timestamp, now),
		FromAddress: strings.ToLower(strings.TrimSpace(raw.From)),
		ToAddress:   strings.ToLower(strings.TrimSpace(raw.To)),
		Amount:      model.ParseAmount(raw.Value, raw.Encoding),
		Token:       token,
		Method:      method,
		Chain:       strings.TrimSpace(raw.Chain),
	}, true
}
