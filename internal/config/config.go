package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"icalcodec/internal/model"
	"icalcodec/internal/tz"
)

// Config controls the codec defaults used by the command-line tool.
type Config struct {
	// ProductID is written as PRODID when a calendar does not set one.
	ProductID string `yaml:"product_id" json:"product_id"`

	// Version is written as VERSION when a calendar does not set one.
	Version string `yaml:"version" json:"version"`

	// TZIDPrefix is prepended to Olson names to form TZID parameter values.
	// It must end with a slash.
	TZIDPrefix string `yaml:"tzid_prefix" json:"tzid_prefix"`

	// AutoIncludeTimezones emits a VTIMEZONE block for every zone referenced
	// by an encoded calendar.
	AutoIncludeTimezones bool `yaml:"auto_include_timezones" json:"auto_include_timezones"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		ProductID:            model.DefaultProductID,
		Version:              model.DefaultVersion,
		TZIDPrefix:           tz.DefaultPrefix,
		AutoIncludeTimezones: true,
		LogLevel:             "info",
	}
}

// Normalize fills in missing values so partially-filled files still behave.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.ProductID) == "" {
		c.ProductID = model.DefaultProductID
	}
	if strings.TrimSpace(c.Version) == "" {
		c.Version = model.DefaultVersion
	}
	if c.TZIDPrefix == "" {
		c.TZIDPrefix = tz.DefaultPrefix
	}
	if !strings.HasSuffix(c.TZIDPrefix, "/") {
		c.TZIDPrefix += "/"
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - An empty path yields the defaults without touching the filesystem.
//   - A missing file is created with the defaults (0600) and they are returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := cfg.Save(path); err != nil {
				// Callers may still run with the defaults.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	// Keys absent from the file keep their defaults.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename. The parent
// directory is created (0700) if needed and the file ends up 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "create config dir")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	tmp, err := os.CreateTemp(dir, ".icalcodec-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
