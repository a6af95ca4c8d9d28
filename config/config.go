// Package config loads platform configuration from YAML with env overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings.
type Config struct {
	DataDir        string
	UpdateInterval time.Duration
	RequestTimeout time.Duration

	Sources            []string
	CoinGeckoURL       string
	ExchangeRateAPIURL string
	ExchangeRateAPIKey string

	FiatCurrencies   []string
	CryptoCurrencies []string
}

type configYaml struct {
	DataDir            string        `yaml:"data_dir,omitempty"`
	UpdateInterval     time.Duration `yaml:"update_interval,omitempty"`
	RequestTimeout     time.Duration `yaml:"request_timeout,omitempty"`
	Sources            []string      `yaml:"sources,omitempty"`
	CoinGeckoURL       string        `yaml:"coingecko_url,omitempty"`
	ExchangeRateAPIURL string        `yaml:"exchangerate_api_url,omitempty"`
	ExchangeRateAPIKey string        `yaml:"exchangerate_api_key,omitempty"`
	FiatCurrencies     []string      `yaml:"fiat_currencies,omitempty"`
	CryptoCurrencies   []string      `yaml:"crypto_currencies,omitempty"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		DataDir:            "data",
		UpdateInterval:     5 * time.Minute,
		RequestTimeout:     10 * time.Second,
		Sources:            []string{"coingecko", "exchangerate", "binance", "bybit"},
		CoinGeckoURL:       "https://api.coingecko.com/api/v3/simple/price",
		ExchangeRateAPIURL: "https://v6.exchangerate-api.com/v6",
		FiatCurrencies:     []string{"EUR", "GBP", "RUB", "JPY"},
		CryptoCurrencies:   []string{"BTC", "ETH", "LTC", "SOL", "DOGE"},
	}
}

// Get loads configuration: defaults, then the YAML file at path (if any),
// then VALUTAHUB_* environment overrides.
func Get(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}

		var y configYaml
		if err := yaml.Unmarshal(f, &y); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
		cfg.apply(y)
	}

	cfg.applyEnv()

	if cfg.UpdateInterval <= 0 {
		return Config{}, errors.Errorf("update_interval must be positive, got %s", cfg.UpdateInterval)
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, errors.Errorf("request_timeout must be positive, got %s", cfg.RequestTimeout)
	}
	if len(cfg.Sources) == 0 {
		return Config{}, errors.New("at least one rate source must be enabled")
	}

	return cfg, nil
}

func (c *Config) apply(y configYaml) {
	if y.DataDir != "" {
		c.DataDir = y.DataDir
	}
	if y.UpdateInterval != 0 {
		c.UpdateInterval = y.UpdateInterval
	}
	if y.RequestTimeout != 0 {
		c.RequestTimeout = y.RequestTimeout
	}
	if len(y.Sources) > 0 {
		c.Sources = y.Sources
	}
	if y.CoinGeckoURL != "" {
		c.CoinGeckoURL = y.CoinGeckoURL
	}
	if y.ExchangeRateAPIURL != "" {
		c.ExchangeRateAPIURL = y.ExchangeRateAPIURL
	}
	if y.ExchangeRateAPIKey != "" {
		c.ExchangeRateAPIKey = y.ExchangeRateAPIKey
	}
	if len(y.FiatCurrencies) > 0 {
		c.FiatCurrencies = y.FiatCurrencies
	}
	if len(y.CryptoCurrencies) > 0 {
		c.CryptoCurrencies = y.CryptoCurrencies
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VALUTAHUB_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("VALUTAHUB_UPDATE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.UpdateInterval = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			c.UpdateInterval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("VALUTAHUB_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	if v := os.Getenv("EXCHANGERATE_API_KEY"); v != "" {
		c.ExchangeRateAPIKey = v
	}
}
