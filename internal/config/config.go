package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/rowloom-cli/internal/datasets"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. ROWLOOM_API_KEY.
const EnvPrefix = "ROWLOOM"

// Global configuration structure.
type Global struct {
	// Dataset API
	APIBaseURL      string `mapstructure:"api_base_url" yaml:"api_base_url"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	UploadBatchSize int    `mapstructure:"upload_batch_size" yaml:"upload_batch_size"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Mapping
	SampleRows    int  `mapstructure:"sample_rows" yaml:"sample_rows"`
	StrictMapping bool `mapstructure:"strict_mapping" yaml:"strict_mapping"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Dir returns ~/.rowloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".rowloom"), nil
}

// DatasetConfig builds the dataset client configuration.
func (c *Global) DatasetConfig() datasets.Config {
	return datasets.Config{
		BaseURL:          c.APIBaseURL,
		APIKey:           c.APIKey,
		HTTPTimeout:      time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMaxAttempts: c.RetryMaxAttempts,
		RetryBaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		RetryMaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		BatchSize:        c.UploadBatchSize,
	}
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.rowloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// the file may hold an api key
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api_base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("upload_batch_size", datasets.DefaultBatchSize)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("sample_rows", mapping.DefaultSampleRows)
	v.SetDefault("strict_mapping", false)
	v.SetDefault("log_level", "warn")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a missing file is not an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
