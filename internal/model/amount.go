package model

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// wei -> ether
const weiExp = -18

// ParseAmount converts a provider value to a non-negative decimal amount.
// Anything unparseable is zero.
func ParseAmount(raw string, enc ValueEncoding) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero
	}

	switch enc {
	case EncodingHexWei:
		wei, err := hexutil.DecodeBig(raw)
		if err != nil {
			// на случай "0x00..." с ведущими нулями
			v, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(raw), "0x"), 16)
			if !ok {
				return decimal.Zero
			}
			wei = v
		}
		return nonNegative(decimal.NewFromBigInt(wei, weiExp))

	case EncodingDecimalWei:
		wei, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return decimal.Zero
		}
		return nonNegative(decimal.NewFromBigInt(wei, weiExp))

	default:
		d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
		if err != nil {
			return decimal.Zero
		}
		return nonNegative(d)
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseTimestamp accepts unix seconds (decimal or 0x-hex) and RFC3339.
// Unparseable input yields fallback.
func ParseTimestamp(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback.UTC()
	}

	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		sec, err := hexutil.DecodeUint64(strings.ToLower(raw))
		if err != nil {
			return fallback.UTC()
		}
		return time.Unix(int64(sec), 0).UTC()
	}

	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC()
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return fallback.UTC()
}

// FormatAmount renders an amount for humans: integers stay integers,
// fractions are cut to 6 places.
func FormatAmount(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.String()
	}
	return d.Truncate(6).String()
}
