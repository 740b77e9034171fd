// Package config provides configuration loading and validation for the
// textfang pipeline.
//
// Defaults live in code; an optional YAML config file overrides them and
// command-line flags override both. The core pipeline reads no
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Sentinel validation errors, reported before any work starts.
var (
	ErrInvalidBands     = errors.New("config: num bands must be positive")
	ErrInvalidBandWidth = errors.New("config: band width must be positive")
	ErrInvalidJaccard   = errors.New("config: jaccard threshold must be in (0, 1]")
	ErrInvalidBatch     = errors.New("config: batch size must be positive")
	ErrInvalidWindow    = errors.New("config: window size must be positive")
	ErrInvalidTokenizer = errors.New("config: unknown tokenizer")
	ErrInvalidLevel     = errors.New("config: compression level must be in 1..22")
	ErrInvalidCapacity  = errors.New("config: channel capacity must be positive")
)

// tokenizerNames are the accepted tokenizer spellings.
var tokenizerNames = map[string]bool{
	"whitespace": true,
	"vectorizer": true,
	"char":       true,
}

// Config holds all pipeline configuration.
type Config struct {
	Index IndexConfig `mapstructure:"index" yaml:"index"`
	Exact ExactConfig `mapstructure:"exact" yaml:"exact"`
}

// IndexConfig holds near-duplicate indexing parameters.
type IndexConfig struct {
	BatchSize              int     `mapstructure:"batch_size"               yaml:"batch_size"`
	NumBands               int     `mapstructure:"num_bands"                yaml:"num_bands"`
	BandWidth              int     `mapstructure:"band_width"               yaml:"band_width"`
	WindowSize             int     `mapstructure:"window_size"              yaml:"window_size"`
	JaccardThreshold       float64 `mapstructure:"jaccard_threshold"        yaml:"jaccard_threshold"`
	NumDuplicatesThreshold int     `mapstructure:"num_duplicates_threshold" yaml:"num_duplicates_threshold"`
	Tokenizer              string  `mapstructure:"tokenizer"                yaml:"tokenizer"`
	CompressionLevel       int     `mapstructure:"compression_level"        yaml:"compression_level"`
}

// ExactConfig holds exact-dedup parameters.
type ExactConfig struct {
	ShardSize        string `mapstructure:"shard_size"        yaml:"shard_size"`
	CompressionLevel int    `mapstructure:"compression_level" yaml:"compression_level"`
	ZstdWorkers      int    `mapstructure:"zstd_workers"      yaml:"zstd_workers"`
	ChannelCapacity  int    `mapstructure:"channel_capacity"  yaml:"channel_capacity"`
}

// Load reads the optional config file on top of the defaults. An empty
// path yields the defaults unchanged.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every parameter bound before the pipeline starts.
func (c *Config) Validate() error {
	idx := c.Index

	switch {
	case idx.NumBands <= 0:
		return ErrInvalidBands
	case idx.BandWidth <= 0:
		return ErrInvalidBandWidth
	case idx.JaccardThreshold <= 0 || idx.JaccardThreshold > 1:
		return ErrInvalidJaccard
	case idx.BatchSize <= 0:
		return ErrInvalidBatch
	case idx.WindowSize <= 0:
		return ErrInvalidWindow
	case !tokenizerNames[idx.Tokenizer]:
		return fmt.Errorf("%w: %q", ErrInvalidTokenizer, idx.Tokenizer)
	case idx.CompressionLevel < 1 || idx.CompressionLevel > 22:
		return ErrInvalidLevel
	}

	exact := c.Exact

	switch {
	case exact.CompressionLevel < 1 || exact.CompressionLevel > 22:
		return ErrInvalidLevel
	case exact.ZstdWorkers <= 0:
		return fmt.Errorf("%w: zstd workers", ErrInvalidCapacity)
	case exact.ChannelCapacity <= 0:
		return ErrInvalidCapacity
	}

	return nil
}

// Dump renders the effective configuration as YAML.
func (c *Config) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)

	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	return nil
}
