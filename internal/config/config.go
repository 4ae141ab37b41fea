package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/eargollo/selector/internal/grid"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	LibraryRoot         string `yaml:"library_root"          json:"library_root"`
	DBPath              string `yaml:"db_path"               json:"-"`
	HTTPAddr            string `yaml:"http_addr"             json:"-"`
	BackupDir           string `yaml:"backup_dir"            json:"-"`
	BackupRetentionDays int    `yaml:"backup_retention_days" json:"backup_retention_days"`
	DefaultRows         int    `yaml:"default_rows"          json:"default_rows"`
	DefaultCols         int    `yaml:"default_cols"          json:"default_cols"`
	LocateWorkers       int    `yaml:"locate_workers"        json:"locate_workers"`
	LogLevel            string `yaml:"log_level"             json:"-"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	home, _ := os.UserHomeDir()
	if c.LibraryRoot == "" {
		c.LibraryRoot = filepath.Join(home, "Pictures")
	}
	if c.DBPath == "" {
		c.DBPath = "selector.db"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(home, "Pictures", "_deduplicate_backup")
	}
	if c.BackupRetentionDays == 0 {
		c.BackupRetentionDays = 30
	}
	if c.DefaultRows == 0 {
		c.DefaultRows = 2
	}
	if c.DefaultCols == 0 {
		c.DefaultCols = 2
	}
	if c.LocateWorkers == 0 {
		c.LocateWorkers = 4
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// validate rejects values the grid cannot represent.
func (c *Config) validate() error {
	if c.DefaultRows < 1 || c.DefaultRows > grid.RowsMax {
		return fmt.Errorf("default_rows %d outside 1..%d", c.DefaultRows, grid.RowsMax)
	}
	if c.DefaultCols < 1 || c.DefaultCols > grid.ColsMax {
		return fmt.Errorf("default_cols %d outside 1..%d", c.DefaultCols, grid.ColsMax)
	}
	return nil
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the server
// can start without one.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}
