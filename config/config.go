package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppName string `envconfig:"APP_NAME" yaml:"app_name"`
	BaseURL string `envconfig:"AEMET_API_BASE" yaml:"base_url"`

	// APIKey is normally resolved through ResolveAPIKey; the env var is
	// just one link of the chain.
	APIKey     string `envconfig:"AEMET_API_KEY" yaml:"-"`
	APIKeyFile string `envconfig:"AEMET_API_KEY_FILE" yaml:"api_key_file"`

	DataFile  string `envconfig:"AEMET_DATA_FILE" yaml:"data_file"`
	CacheFile string `envconfig:"AEMET_CACHE_FILE" yaml:"cache_file"`
	LogFile   string `envconfig:"AEMET_LOG_FILE" yaml:"log_file"`

	RetentionDays int `envconfig:"AEMET_RETENTION_DAYS" yaml:"retention_days"`

	RequestTimeout    time.Duration `envconfig:"AEMET_REQUEST_TIMEOUT" yaml:"request_timeout"`
	MaxRetries        int           `envconfig:"AEMET_MAX_RETRIES" yaml:"max_retries"`
	RateLimitBackoff  time.Duration `envconfig:"AEMET_RATE_LIMIT_BACKOFF" yaml:"rate_limit_backoff"`
	NetworkRetryPause time.Duration `envconfig:"AEMET_NETWORK_RETRY_PAUSE" yaml:"network_retry_pause"`

	// AEMET allows ~50 requests/min and each municipality costs two, so
	// 22 municipalities per 62-second window stays under the quota.
	BatchSize     int           `envconfig:"AEMET_BATCH_SIZE" yaml:"batch_size"`
	BatchWindow   time.Duration `envconfig:"AEMET_BATCH_WINDOW" yaml:"batch_window"`
	RequestPause  time.Duration `envconfig:"AEMET_REQUEST_PAUSE" yaml:"request_pause"`
	CapitalPause  time.Duration `envconfig:"AEMET_CAPITAL_PAUSE" yaml:"capital_pause"`
	ProgressEvery int           `envconfig:"AEMET_PROGRESS_EVERY" yaml:"progress_every"`
}

// defaultConfig seeds every tunable. Defaults live here instead of in
// envconfig `default` tags: those are re-applied whenever the env var is
// unset and would clobber values loaded from the YAML file.
func defaultConfig() Config {
	return Config{
		AppName:           "aemet-temperaturas",
		BaseURL:           "https://opendata.aemet.es/opendata/api",
		APIKeyFile:        "aemet_api_key.txt",
		DataFile:          "data.json",
		CacheFile:         "municipios_cache.json",
		LogFile:           "aemet_temperaturas.log",
		RetentionDays:     7,
		RequestTimeout:    30 * time.Second,
		MaxRetries:        3,
		RateLimitBackoff:  30 * time.Second,
		NetworkRetryPause: 5 * time.Second,
		BatchSize:         22,
		BatchWindow:       62 * time.Second,
		RequestPause:      100 * time.Millisecond,
		CapitalPause:      300 * time.Millisecond,
		ProgressEvery:     100,
	}
}

// NewConfig builds the configuration in three layers: baked-in defaults,
// then an optional YAML file, then environment variables. A missing file
// is fine; a broken one is not.
func NewConfig(path string) (*Config, error) {
	cnf := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cnf); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cnf); err != nil {
		return nil, fmt.Errorf("processing environment variables: %w", err)
	}

	return &cnf, nil
}

// ResolveAPIKey picks the API key from, in order: the CLI flag, the
// AEMET_API_KEY environment variable (already loaded into c.APIKey), or
// the local key file.
func (c *Config) ResolveAPIKey(cliKey string) (string, error) {
	if key := strings.TrimSpace(cliKey); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key, nil
	}
	if data, err := os.ReadFile(c.APIKeyFile); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
	}
	return "", fmt.Errorf(
		"no AEMET API key found: register for free at https://opendata.aemet.es/centrodedescargas/altaUsuario, "+
			"then save the key to %s, pass it with --api-key, or set AEMET_API_KEY", c.APIKeyFile)
}
