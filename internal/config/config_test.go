package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Ledger.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "./reports", cfg.Paths.ReportDir)
	assert.Equal(t, "gaussian", cfg.Analysis.Estimator)
	assert.Equal(t, 1, cfg.Analysis.History)
	assert.Equal(t, 1, cfg.Analysis.CausalDelay)
	assert.Equal(t, 500, cfg.Analysis.Permutations)
	assert.True(t, cfg.Analysis.Normalise)
	assert.Zero(t, cfg.Analysis.LogBase)
	assert.Zero(t, cfg.Analysis.Seed)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_FILE", "/data/sfi.csv")
	t.Setenv("HISTORY", "2")
	t.Setenv("LOG_BASE", "2")
	t.Setenv("NORMALISE", "false")
	t.Setenv("PERMUTATIONS", "100")
	t.Setenv("SEED", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/data/sfi.csv", cfg.Paths.DataFile)
	assert.Equal(t, 2, cfg.Analysis.History)
	assert.Equal(t, 2.0, cfg.Analysis.LogBase)
	assert.False(t, cfg.Analysis.Normalise)
	assert.Equal(t, 100, cfg.Analysis.Permutations)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
}

func TestLoadPostgresBackendRequiresURL(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/infodyn")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Ledger.Backend)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "cassandra")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_BACKEND")
}

func TestLoadRejectsInvalidAnalysisDefaults(t *testing.T) {
	t.Setenv("HISTORY", "0")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("HISTORY", "1")
	t.Setenv("PERMUTATIONS", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestMalformedNumericFallsBackToDefault(t *testing.T) {
	t.Setenv("HISTORY", "two")
	t.Setenv("LOG_BASE", "ten")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Analysis.History)
	assert.Zero(t, cfg.Analysis.LogBase)
}
