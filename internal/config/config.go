// Package config loads habitual settings from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/utils"
)

// ErrExists is returned by WriteDefault when the file is already there.
var ErrExists = errors.New("config file already exists")

type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Time      TimeConfig      `yaml:"time"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

type StorageConfig struct {
	Driver       string        `yaml:"driver"        env:"HABITUAL_STORAGE_DRIVER" env-default:"sqlite"`
	Path         string        `yaml:"path"          env:"HABITUAL_STORAGE_PATH"   env-default:"~/.config/habitual/habitual.db"`
	DSN          string        `yaml:"dsn,omitempty" env:"HABITUAL_DB_CONNECTION"`
	PollInterval time.Duration `yaml:"poll_interval" env:"HABITUAL_POLL_INTERVAL"  env-default:"2s"`
}

type TimeConfig struct {
	Timezone string `yaml:"timezone" env:"HABITUAL_TIMEZONE" env-default:"Local"`
}

type ReconcileConfig struct {
	// PruneOrphans deletes today's untouched logs of habits no longer due.
	PruneOrphans bool `yaml:"prune_orphans" env:"HABITUAL_PRUNE_ORPHANS" env-default:"false"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret,omitempty" env:"HABITUAL_JWT_SECRET"`
	PollInterval time.Duration `yaml:"poll_interval"        env:"HABITUAL_AUTH_POLL_INTERVAL" env-default:"5s"`
}

type LogConfig struct {
	Debug bool   `yaml:"debug" env:"HABITUAL_DEBUG"   env-default:"false"`
	Dir   string `yaml:"dir"   env:"HABITUAL_LOG_DIR" env-default:"~/.config/habitual"`
}

// DefaultPath is where the config file lives unless overridden.
func DefaultPath() string {
	if p := os.Getenv(constants.EnvConfigPath); p != "" {
		return utils.ExpandPath(p)
	}
	return utils.ExpandPath(filepath.Join(constants.DefaultConfigDir, constants.DefaultConfigFile))
}

// Load reads configuration with priority ENV > YAML > defaults. An empty
// path means DefaultPath; a missing file at the default location is not an
// error, but an explicitly requested file must exist.
func Load(path string) (*Config, error) {
	var cfg Config

	explicit := path != "" || os.Getenv(constants.EnvConfigPath) != ""
	if path == "" {
		path = DefaultPath()
	}
	path = utils.ExpandPath(path)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	case explicit:
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	default:
		return FromEnv()
	}

	return finish(&cfg)
}

// FromEnv builds the configuration from defaults and the environment only.
// `habitual init` uses it before a config file exists.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Default is the configuration written by `habitual init`.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:       constants.DriverSQLite,
			Path:         filepath.Join(constants.DefaultConfigDir, constants.DefaultDBFile),
			PollInterval: constants.DefaultPollInterval,
		},
		Time: TimeConfig{Timezone: "Local"},
		Auth: AuthConfig{PollInterval: 5 * time.Second},
		Log:  LogConfig{Dir: constants.DefaultConfigDir},
	}
}

func (c *Config) expand() {
	c.Storage.Path = utils.ExpandPath(c.Storage.Path)
	c.Log.Dir = utils.ExpandPath(c.Log.Dir)
}

var drivers = []string{constants.DriverSQLite, constants.DriverPostgres, constants.DriverMemory}

func (c *Config) Validate() error {
	if !slices.Contains(drivers, c.Storage.Driver) {
		return fmt.Errorf("storage.driver must be one of %v, got %q", drivers, c.Storage.Driver)
	}
	if c.Storage.Driver == constants.DriverSQLite && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite driver")
	}
	if c.Storage.PollInterval <= 0 {
		return fmt.Errorf("storage.poll_interval must be positive, got %s", c.Storage.PollInterval)
	}
	if c.Auth.PollInterval <= 0 {
		return fmt.Errorf("auth.poll_interval must be positive, got %s", c.Auth.PollInterval)
	}
	if !utils.ValidateTimezone(c.Time.Timezone) {
		return fmt.Errorf("time.timezone %q is not a valid IANA timezone", c.Time.Timezone)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := utils.LoadLocation(c.Time.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Time.Timezone, err)
	}
	return loc, nil
}

// Dir is the directory holding the config file, lockfile and backups.
func Dir(path string) string {
	if path == "" {
		path = DefaultPath()
	}
	return filepath.Dir(utils.ExpandPath(path))
}

// WriteDefault writes Default() to path. An existing file is kept unless
// force is set.
func WriteDefault(path string, force bool) error {
	path = utils.ExpandPath(path)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Default().Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Marshal renders c as YAML with durations in their string form.
func (c *Config) Marshal() ([]byte, error) {
	doc := map[string]any{
		"storage": map[string]any{
			"driver":        c.Storage.Driver,
			"path":          c.Storage.Path,
			"poll_interval": c.Storage.PollInterval.String(),
		},
		"time": map[string]any{
			"timezone": c.Time.Timezone,
		},
		"reconcile": map[string]any{
			"prune_orphans": c.Reconcile.PruneOrphans,
		},
		"auth": map[string]any{
			"poll_interval": c.Auth.PollInterval.String(),
		},
		"log": map[string]any{
			"debug": c.Log.Debug,
			"dir":   c.Log.Dir,
		},
	}
	if c.Storage.DSN != "" {
		doc["storage"].(map[string]any)["dsn"] = c.Storage.DSN
	}
	if c.Auth.JWTSecret != "" {
		doc["auth"].(map[string]any)["jwt_secret"] = c.Auth.JWTSecret
	}
	return yaml.Marshal(doc)
}
