package app

import (
	"context"
	"testing"

	"github.com/pvzzle/safescore/internal/publish"
	"github.com/pvzzle/safescore/internal/storage/csvfile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenRepository_CSV(t *testing.T) {
	dir := t.TempDir()
	repo, closeRepo, err := openRepository(context.Background(), StorageConfig{Backend: BackendCSV, DataDir: dir})
	require.NoError(t, err)
	defer closeRepo()

	store, ok := repo.(*csvfile.Store)
	require.True(t, ok)
	assert.Equal(t, dir, store.Dir())
}

func TestBuildSink_NoBrokers(t *testing.T) {
	sink := buildSink(KafkaConfig{}, zap.NewNop())
	assert.IsType(t, publish.Nop{}, sink)
}

func TestBuildCollector(t *testing.T) {
	cfg, err := parseConfig()
	require.NoError(t, err)

	c, closeFn := buildCollector(cfg, zap.NewNop())
	defer closeFn()
	require.NotNil(t, c)
}
