package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverride(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "weights.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadWeights_Defaults(t *testing.T) {
	w, err := LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)

	w, err = LoadWeights(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)
}

func TestLoadWeights_Merge(t *testing.T) {
	p := writeOverride(t, `{"blacklist": 70, "velocity": "25", "new_address": 12.9, "bogus": 99, "watchlist": 500}`)

	w, err := LoadWeights(p)
	require.NoError(t, err)

	assert.Equal(t, 70, w[RuleBlacklist])
	assert.Equal(t, 25, w[RuleVelocity])
	assert.Equal(t, 12, w[RuleNewAddress])
	assert.Equal(t, 100, w[RuleWatchlist], "clamped to 100")
	assert.Equal(t, 25, w[RuleHighAmount], "untouched keys keep defaults")
	_, ok := w[Rule("bogus")]
	assert.False(t, ok)
}

func TestLoadWeights_CorruptIgnoredWholesale(t *testing.T) {
	for _, body := range []string{
		`{not json`,
		`{"blacklist": 10, "watchlist": "lots"}`,
		`{"blacklist": null}`,
		`[1,2,3]`,
	} {
		w, err := LoadWeights(writeOverride(t, body))
		assert.Error(t, err, body)
		assert.Equal(t, DefaultWeights(), w, body)
	}
}

func TestMerge_NegativeClamped(t *testing.T) {
	w, err := Merge(DefaultWeights(), map[string]any{"unusual_hour": -5})
	require.NoError(t, err)
	assert.Equal(t, 0, w[RuleUnusualHour])
}
