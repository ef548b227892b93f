package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"competitor-watch/config"
	"competitor-watch/models"
	"competitor-watch/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DBDriver:         "sqlite",
		SQLitePath:       filepath.Join(dir, "cw.db"),
		ArchiveBackend:   "disk",
		RawDir:           filepath.Join(dir, "raw"),
		PubMedBatchSize:  100,
		CTGovPageSize:    100,
		PubMedWindowDays: 30,
		SummaryQueue:     services.DefaultSummaryQueue,
		RosterPath:       "../config/roster.yaml",
	}
}

func TestNew_WiresEverything(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NotNil(t, a.Service)
	assert.Equal(t, "pubmed", a.Service.PubMed.Name())
	assert.Equal(t, "ctgov", a.Service.Trials.Name())
	assert.IsType(t, &services.NopSummaryQueue{}, a.Service.Queue)
	assert.True(t, a.DB.Migrator().HasTable(&models.Document{}))
}

func TestNew_RedisQueueWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	q, ok := a.Service.Queue.(*services.RedisSummaryQueue)
	require.True(t, ok)
	assert.Equal(t, services.DefaultSummaryQueue, q.Key)
}

func TestSeedRoster(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	require.NoError(t, a.SeedRoster(context.Background()))
	comps, err := a.Store.Competitors(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, comps)

	a.Config.RosterPath = filepath.Join(t.TempDir(), "missing.yaml")
	assert.NoError(t, a.SeedRoster(context.Background()), "missing roster is only a warning")
}

func TestSeedRoster_InvalidFileIsWarning(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("competitors: [\n"), 0o644))
	a.Config.RosterPath = bad
	assert.NoError(t, a.SeedRoster(context.Background()))
}
