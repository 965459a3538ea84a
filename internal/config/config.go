// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const (
	HashSHA256 = "sha256"
	HashBLAKE3 = "blake3"

	CodecNone = "none"
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"

	MaterializeLink = "link"
	MaterializeCopy = "copy"
)

type Config struct {
	RepoName    string `json:"repo_name"`    // directory holding files/, patches/, current.json
	CurrentName string `json:"current_name"` // working tree directory
	Workers     int    `json:"workers"`
	BlockSize   int    `json:"block_size"`  // hashing read size in bytes
	Hash        string `json:"hash"`        // sha256, blake3
	Codec       string `json:"codec"`       // none, zstd, lz4
	Materialize string `json:"materialize"` // link, copy
	CacheSize   int    `json:"cache_size"`  // known-object cache entries
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

func Default() *Config {
	return &Config{
		RepoName:    "lvcs",
		CurrentName: "current",
		Workers:     4,
		BlockSize:   64 * 1024,
		Hash:        HashSHA256,
		Codec:       CodecNone,
		Materialize: MaterializeLink,
		CacheSize:   4096,
		LogLevel:    "info",
	}
}

func getConfigPath() string {
	env := os.Getenv("LVCS_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// LoadDefault reads the environment's config file if there is one and
// falls back to Default otherwise.
func LoadDefault() (*Config, error) {
	cfg, err := Load(getConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Load overlays the JSON file at path on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.RepoName == "" || c.CurrentName == "" {
		return fmt.Errorf("repo_name and current_name are required")
	}
	if c.RepoName == c.CurrentName {
		return fmt.Errorf("repo_name and current_name must differ")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}

	switch c.Hash {
	case HashSHA256, HashBLAKE3:
	default:
		return fmt.Errorf("unknown hash %q", c.Hash)
	}

	switch c.Codec {
	case CodecNone, CodecZstd, CodecLZ4:
	default:
		return fmt.Errorf("unknown codec %q", c.Codec)
	}

	switch c.Materialize {
	case MaterializeLink, MaterializeCopy:
	default:
		return fmt.Errorf("unknown materialize mode %q", c.Materialize)
	}

	return nil
}
