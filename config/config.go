// Package config loads the optional YAML configuration of the archive tool.
//
//   transform: deflate        # none | deflate | zstd | lz4, optional suffix '+aes'
//   keyfile: ~/.splitarc.key  # required for '+aes'
//   journal: history.cbor     # empty: no journal
//   log_level: info           # logrus level
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	enc "github.com/SchnorcherSepp/splitarc/encoding"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// packageName is used for debug and error messages
const packageName = "config"

// Config holds the default settings of the CLI. Flags override them.
type Config struct {
	Transform string `yaml:"transform"`
	KeyFile   string `yaml:"keyfile"`
	Journal   string `yaml:"journal"`
	LogLevel  string `yaml:"log_level"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Transform: "deflate",
		LogLevel:  "info",
	}
}

// FromFile loads the config file on top of the defaults.
// A missing file is not an error: the defaults are returned with a warning.
func FromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("%s/FromFile: '%s' not found, use defaults", packageName, path)
		return cfg, nil // SOFT FAIL
	}
	if err != nil {
		log.Errorf("%s/FromFile: %v", packageName, err)
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		log.Errorf("%s/FromFile: %v", packageName, err)
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}

	// paths relative to the config file
	cfg.KeyFile = expandPath(cfg.KeyFile, filepath.Dir(path))
	cfg.Journal = expandPath(cfg.Journal, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config '%s': %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	// the key is checked when the processor is built
	if _, err := enc.ByName(c.Transform, make([]byte, 32)); err != nil {
		errs = append(errs, fmt.Errorf("transform: %w", err))
	}
	if strings.HasSuffix(strings.ToLower(c.Transform), "+aes") && c.KeyFile == "" {
		errs = append(errs, errors.New("transform with '+aes' requires a keyfile"))
	}

	return errors.Join(errs...)
}

// Processor builds the transform processor (nil: no transform).
// The key file is loaded for encrypted transforms only.
func (c *Config) Processor() (enc.Processor, error) {
	if !strings.HasSuffix(strings.ToLower(c.Transform), "+aes") {
		return enc.ByName(c.Transform, nil)
	}
	keyFile, err := enc.LoadKeyFile(c.KeyFile)
	if err != nil {
		return nil, err
	}
	return enc.ByName(c.Transform, keyFile.ArchiveKey())
}

// Level returns the logrus level (info if invalid).
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// ----------  HELPER  -----------------------------------------------------------------------------------------------//

// expandPath resolves '~' and paths relative to base.
func expandPath(path, base string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return path
}
