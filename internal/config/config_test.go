package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultEvents, cfg.Analysis.Events)
	assert.Equal(t, 7, cfg.Analysis.WindowDays)
	assert.Equal(t, 5*time.Second, cfg.FMP.Timeout)
	assert.Equal(t, PriceSourceYahoo, cfg.Prices.Source)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, "test", cfg.App.Environment)
	assert.Empty(t, cfg.FMP.APIKey)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("EARNINGS_FMP_API_KEY", "from-env")
	t.Setenv("EARNINGS_ANALYSIS_EVENTS", "12")

	cfg, err := Load(writeConfig(t, "fmp:\n  api_key: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.FMP.APIKey)
	assert.Equal(t, 12, cfg.Analysis.Events)
}

func TestLoadRejectsOutOfRangeEvents(t *testing.T) {
	_, err := Load(writeConfig(t, "analysis:\n  events: 50\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Events")
}

func TestLoadPostgresNeedsDSN(t *testing.T) {
	_, err := Load(writeConfig(t, "prices:\n  source: postgres\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")

	cfg, err := Load(writeConfig(t, "prices:\n  source: postgres\ndatabase:\n  dsn: postgres://localhost/bars\n"))
	require.NoError(t, err)
	assert.Equal(t, PriceSourcePostgres, cfg.Prices.Source)
}

func TestLoadRejectsUnknownPriceSource(t *testing.T) {
	_, err := Load(writeConfig(t, "prices:\n  source: bloomberg\n"))
	require.Error(t, err)
}

func TestValidateEvents(t *testing.T) {
	assert.NoError(t, ValidateEvents(4))
	assert.NoError(t, ValidateEvents(37))
	assert.Error(t, ValidateEvents(3))
	assert.Error(t, ValidateEvents(38))
}

func TestResolveEvents(t *testing.T) {
	cfg := &Config{Analysis: AnalysisConfig{Events: 8}}
	assert.Equal(t, 8, cfg.ResolveEvents(0))
	assert.Equal(t, 20, cfg.ResolveEvents(20))
}
