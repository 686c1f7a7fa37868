package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides, e.g. GDCMATRIX_WORKERS.
const EnvPrefix = "GDCMATRIX_"

// Load builds a Config by layering defaults, an optional YAML file, and
// environment variables. Precedence (low -> high):
//  1. Default()
//  2. YAML file (path argument, or $GDCMATRIX_CONFIG when path is empty)
//  3. env vars with prefix GDCMATRIX_
func Load(path string) (Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// GDCMATRIX_OUTPUT_DIR -> output_dir, matching the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return cfg, fmt.Errorf("load env config: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks settings the rest of the pipeline depends on.
func (c Config) Validate() error {
	if c.FilesEndpoint == "" || c.DataEndpoint == "" {
		return fmt.Errorf("files_endpoint and data_endpoint must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be at least 1, got %d", c.PageSize)
	}
	return nil
}
