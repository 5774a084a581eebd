// Package config loads bimrepr settings from a YAML file and BIMREPR_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chazu/bimrepr/pkg/engine"
	"github.com/chazu/bimrepr/pkg/kernel/sdfx"
	"github.com/chazu/bimrepr/pkg/reprnode"
)

const defaultDocumentPath = "bimrepr.db"

// Config holds the runtime settings of the CLI.
type Config struct {
	DocumentPath      string          `yaml:"document_path"`
	MeshCells         int             `yaml:"mesh_cells"`
	EvalTimeout       time.Duration   `yaml:"eval_timeout"`
	RollbackOnFailure bool            `yaml:"rollback_on_failure"`
	LogLevel          string          `yaml:"log_level"`
	Defaults          reprnode.Config `yaml:"defaults"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DocumentPath: defaultDocumentPath,
		MeshCells:    sdfx.DefaultMeshCells,
		EvalTimeout:  engine.EvalTimeout,
		LogLevel:     "info",
		Defaults:     reprnode.DefaultConfig(),
	}
}

// Load reads path (if not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Defaults = cfg.Defaults.WithDefaults(reprnode.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals YAML into cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DocumentPath = envOrDefault("BIMREPR_DB", cfg.DocumentPath)
	cfg.LogLevel = envOrDefault("BIMREPR_LOG_LEVEL", cfg.LogLevel)
	cfg.Defaults.ContextType = envOrDefault("BIMREPR_CONTEXT_TYPE", cfg.Defaults.ContextType)
	cfg.Defaults.ContextIdentifier = envOrDefault("BIMREPR_CONTEXT_IDENTIFIER", cfg.Defaults.ContextIdentifier)
	cfg.Defaults.TargetView = envOrDefault("BIMREPR_TARGET_VIEW", cfg.Defaults.TargetView)
	cfg.Defaults.Paradigm = reprnode.Paradigm(envOrDefault("BIMREPR_PARADIGM", string(cfg.Defaults.Paradigm)))

	if v := os.Getenv("BIMREPR_MESH_CELLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BIMREPR_MESH_CELLS: %w", err)
		}
		cfg.MeshCells = n
	}
	if v := os.Getenv("BIMREPR_EVAL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BIMREPR_EVAL_TIMEOUT: %w", err)
		}
		cfg.EvalTimeout = d
	}
	if v := os.Getenv("BIMREPR_ROLLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BIMREPR_ROLLBACK: %w", err)
		}
		cfg.RollbackOnFailure = b
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Validate checks the settings for consistency.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DocumentPath) == "" {
		return errors.New("document_path cannot be empty")
	}
	if c.MeshCells <= 0 {
		return fmt.Errorf("mesh_cells must be positive, got %d", c.MeshCells)
	}
	if c.EvalTimeout <= 0 {
		return fmt.Errorf("eval_timeout must be positive, got %s", c.EvalTimeout)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// SlogLevel parses LogLevel (debug, info, warn, error).
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
