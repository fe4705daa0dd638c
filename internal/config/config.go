package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	configPathEnv = "T2C_CONFIG"
	tokenEnv      = "T2C_TOKEN"
	archiveEnv    = "T2C_ARCHIVE"
	logLevelEnv   = "T2C_LOG_LEVEL"
)

type Config struct {
	ArchiveRoot string    `toml:"archive_root"`
	DBPath      string    `toml:"db_path"`
	LogLevel    string    `toml:"log_level"`
	LogFile     string    `toml:"log_file"` // used while the TUI owns the terminal
	Crossbell   Crossbell `toml:"crossbell"`

	// Path is the config file that was read, empty when only defaults apply.
	Path string `toml:"-"`
}

// Crossbell holds the endpoints and operator credential for publishing.
type Crossbell struct {
	IndexerURL        string   `toml:"indexer_url"`
	IPFSURL           string   `toml:"ipfs_url"`
	Token             string   `toml:"token"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	MediaConcurrency  int      `toml:"media_concurrency"`
}

// duration lets TOML carry values like "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (c Crossbell) RequestTimeout() time.Duration {
	return c.Timeout.Duration
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := defaults(home)

	cfgPath := filepath.Join(home, ".config", "t2c", "config.toml")
	if v := os.Getenv(configPathEnv); v != "" {
		cfgPath = expandHome(v, home)
	}
	if _, err := os.Stat(cfgPath); err == nil {
		if _, err := toml.DecodeFile(cfgPath, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
		cfg.Path = cfgPath
	}

	cfg.applyEnv()

	// expand ~ in paths
	cfg.ArchiveRoot = expandHome(cfg.ArchiveRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	if cfg.Crossbell.MediaConcurrency < 1 {
		cfg.Crossbell.MediaConcurrency = 1
	}
	return cfg, nil
}

func defaults(home string) *Config {
	dir := filepath.Join(home, ".config", "t2c")
	return &Config{
		ArchiveRoot: filepath.Join(home, "twitter-archive"),
		DBPath:      filepath.Join(dir, "t2c.db"),
		LogLevel:    "info",
		LogFile:     filepath.Join(dir, "t2c.log"),
		Crossbell: Crossbell{
			IndexerURL:        "https://indexer.crossbell.io",
			IPFSURL:           "https://ipfs-relay.crossbell.io",
			Timeout:           duration{30 * time.Second},
			RequestsPerSecond: 2,
			MediaConcurrency:  3,
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(tokenEnv); v != "" {
		c.Crossbell.Token = v
	}
	if v := os.Getenv(archiveEnv); v != "" {
		c.ArchiveRoot = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
