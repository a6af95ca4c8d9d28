package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_Defaults(t *testing.T) {
	cfg, err := Get("")
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 5*time.Minute, cfg.UpdateInterval)
	assert.Contains(t, cfg.Sources, "coingecko")
	assert.Contains(t, cfg.CryptoCurrencies, "BTC")
}

func TestGet_YamlOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
data_dir: /tmp/hub
update_interval: 30s
sources:
  - binance
crypto_currencies:
  - BTC
  - ETH
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Get(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/hub", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.UpdateInterval)
	assert.Equal(t, []string{"binance"}, cfg.Sources)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.CryptoCurrencies)
	// untouched keys keep defaults
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestGet_EnvOverride(t *testing.T) {
	t.Setenv("VALUTAHUB_DATA_DIR", "/var/lib/hub")
	t.Setenv("VALUTAHUB_UPDATE_INTERVAL", "90")

	cfg, err := Get("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/hub", cfg.DataDir)
	assert.Equal(t, 90*time.Second, cfg.UpdateInterval)
}

func TestGet_MissingFile(t *testing.T) {
	_, err := Get(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
