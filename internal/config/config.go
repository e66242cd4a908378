// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

const (
	BackendRCS      = "rcs"
	BackendEmbedded = "embedded"
)

// Project maps a source tree to the object directories its build writes to.
// History for files under Root is kept below the first object directory.
type Project struct {
	Root       string   `json:"root"`
	ObjectDirs []string `json:"object_dirs"`
}

type Config struct {
	HistoryDir   string    `json:"history_dir"`
	MaxDays      int       `json:"max_days"`
	MaxRevisions int       `json:"max_revisions"`
	Backend      string    `json:"backend"`     // rcs, embedded
	Environment  string    `json:"environment"` // development, production
	LogLevel     string    `json:"log_level"`   // debug, info, warn, error
	Projects     []Project `json:"projects"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		HistoryDir:   ".gpsrcs",
		MaxDays:      2,
		MaxRevisions: 200,
		Backend:      BackendRCS,
		Environment:  "production",
		LogLevel:     "info",
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			defer file.Close()
			if err := json.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", path, err)
			}
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"LOCALHIST_MAX_DAYS":      &c.MaxDays,
		"LOCALHIST_MAX_REVISIONS": &c.MaxRevisions,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	strs := map[string]*string{
		"LOCALHIST_DIR":       &c.HistoryDir,
		"LOCALHIST_BACKEND":   &c.Backend,
		"LOCALHIST_LOG_LEVEL": &c.LogLevel,
		"LOCALHIST_ENV":       &c.Environment,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.HistoryDir == "" {
		return errors.New("history_dir must not be empty")
	}
	if c.MaxDays < 0 {
		return fmt.Errorf("max_days must not be negative, got %d", c.MaxDays)
	}
	if c.MaxRevisions < 0 {
		return fmt.Errorf("max_revisions must not be negative, got %d", c.MaxRevisions)
	}
	switch c.Backend {
	case BackendRCS, BackendEmbedded:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}
