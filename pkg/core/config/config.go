// Package config loads the pipeline configuration from YAML, filling in
// defaults for anything the file omits.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the top-level pipeline configuration.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Tables     TablesConfig     `yaml:"tables"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Bias       BiasConfig       `yaml:"bias"`
	Storage    StorageConfig    `yaml:"storage"`
}

type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type TablesConfig struct {
	MinTableSize int `yaml:"min_table_size"`
}

type SummarizerConfig struct {
	Model            string `yaml:"model"`
	RateLimitRPM     int    `yaml:"rate_limit_rpm"`
	MaxSummaryLength int    `yaml:"max_summary_length"`
}

type BiasConfig struct {
	CoveragePath    string `yaml:"coverage_path"`
	BoostConfigPath string `yaml:"boost_config_path"`
	// Method selects company classification: "percentile" or "ratio".
	Method string `yaml:"method"`
}

type StorageConfig struct {
	TableDir string `yaml:"table_dir"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Chunking: ChunkingConfig{
			ChunkSize:    1500,
			ChunkOverlap: 150,
		},
		Tables: TablesConfig{
			MinTableSize: 3,
		},
		Summarizer: SummarizerConfig{
			Model:            "gemini-2.0-flash",
			RateLimitRPM:     10,
			MaxSummaryLength: 200,
		},
		Bias: BiasConfig{
			CoveragePath:    "bias_config/coverage_metrics.json",
			BoostConfigPath: "bias_config/boost_config.json",
			Method:          "percentile",
		},
		Storage: StorageConfig{
			TableDir: "data/tables",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Chunking.ChunkSize <= 0 {
		return cfg, fmt.Errorf("chunk_size must be positive, got %d", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.ChunkOverlap < 0 || cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return cfg, fmt.Errorf("chunk_overlap %d must be in [0, chunk_size)", cfg.Chunking.ChunkOverlap)
	}
	return cfg, nil
}
