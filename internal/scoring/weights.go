package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
)

type Rule string

const (
	RuleBlacklist       Rule = "blacklist"
	RuleWatchlist       Rule = "watchlist"
	RuleHighAmount      Rule = "high_amount"
	RuleUnusualHour     Rule = "unusual_hour"
	RuleNewAddress      Rule = "new_address"
	RuleVelocity        Rule = "velocity"
	RuleSensitiveToken  Rule = "sensitive_token"
	RuleSensitiveMethod Rule = "sensitive_method"
)

// Rules lists every rule in evaluation order.
var Rules = []Rule{
	RuleBlacklist,
	RuleWatchlist,
	RuleHighAmount,
	RuleUnusualHour,
	RuleNewAddress,
	RuleVelocity,
	RuleSensitiveToken,
	RuleSensitiveMethod,
}

const (
	minWeight = 0
	maxWeight = 100
)

type Weights map[Rule]int

func DefaultWeights() Weights {
	return Weights{
		RuleBlacklist:       60,
		RuleWatchlist:       30,
		RuleHighAmount:      25,
		RuleUnusualHour:     15,
		RuleNewAddress:      40,
		RuleVelocity:        20,
		RuleSensitiveToken:  15,
		RuleSensitiveMethod: 15,
	}
}

func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func isRule(name string) bool {
	for _, r := range Rules {
		if string(r) == name {
			return true
		}
	}
	return false
}

// Merge returns base with override applied key-wise. Unknown keys are ignored.
// If any known key fails to coerce to an integer, the whole override is rejected
// and base is returned together with the error.
func Merge(base Weights, override map[string]any) (Weights, error) {
	out := base.Clone()
	for k, raw := range override {
		if !isRule(k) {
			continue
		}
		v, err := coerceWeight(raw)
		if err != nil {
			return base.Clone(), fmt.Errorf("weight %q: %w", k, err)
		}
		out[Rule(k)] = v
	}
	return out, nil
}

func coerceWeight(raw any) (int, error) {
	var v int
	switch x := raw.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			v = int(i)
			break
		}
		f, err := x.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number: %s", x)
		}
		v = int(f)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("not a number: %v", x)
		}
		v = int(x)
	case int:
		v = x
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", x)
		}
		v = i
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}

	if v < minWeight {
		v = minWeight
	}
	if v > maxWeight {
		v = maxWeight
	}
	return v, nil
}

// LoadWeights reads a JSON object override from path and merges it over the defaults.
// An empty path or a missing file yields the defaults. On a corrupt override the defaults
// are returned along with the error so the caller can report it.
func LoadWeights(path string) (Weights, error) {
	def := DefaultWeights()
	if strings.TrimSpace(path) == "" {
		return def, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	defer f.Close()

	var override map[string]any
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&override); err != nil {
		return def, fmt.Errorf("decode weights override: %w", err)
	}

	return Merge(def, override)
}
