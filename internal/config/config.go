// Package config loads daemon settings from an optional YAML file, a .env
// file and SIGNAL_RESET_* environment variables, in that order; later
// sources override earlier ones.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/signal-reset/internal/boot"
	"github.com/sweeney/signal-reset/internal/clock"
	"github.com/sweeney/signal-reset/internal/permission"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SIGNAL_RESET_"

// DefaultPath is where the daemon looks for a config file when none is given.
const DefaultPath = "/etc/signal-reset/config.yaml"

// Config holds every daemon setting.
type Config struct {
	FireTime     string `yaml:"fire_time"`
	Timezone     string `yaml:"timezone"`
	DB           string `yaml:"db"`
	Broker       string `yaml:"broker"`
	HTTP         string `yaml:"http"`
	ArmPin       int    `yaml:"arm_pin"`
	ArmChip      string `yaml:"arm_chip"`
	ArmActiveLow bool   `yaml:"arm_active_low"`
	BootIDPath   string `yaml:"boot_id_path"`
	LogLevel     string `yaml:"log_level"`
}

// Default returns the built-in settings. ArmPin -1 means no arm line:
// precise scheduling is always permitted.
func Default() Config {
	return Config{
		FireTime:   clock.DefaultFireTime.String(),
		Timezone:   "Local",
		DB:         "/var/lib/signal-reset/reset.db",
		Broker:     "tcp://127.0.0.1:1883",
		HTTP:       ":8080",
		ArmPin:     -1,
		ArmChip:    permission.DefaultChip,
		BootIDPath: boot.DefaultIDPath,
		LogLevel:   "info",
	}
}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty or the file does not exist) and then the environment.
func Load(fsys afero.Fs, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv copies variables from a .env file into the process
// environment without overriding ones already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: load %s: %w", path, err)
}

// ApplyEnv overrides cfg fields from SIGNAL_RESET_* variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"FIRE_TIME":    &cfg.FireTime,
		"TIMEZONE":     &cfg.Timezone,
		"DB":           &cfg.DB,
		"BROKER":       &cfg.Broker,
		"HTTP":         &cfg.HTTP,
		"ARM_CHIP":     &cfg.ArmChip,
		"BOOT_ID_PATH": &cfg.BootIDPath,
		"LOG_LEVEL":    &cfg.LogLevel,
	}
	for key, dst := range str {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "ARM_PIN"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sARM_PIN=%q: %v", ErrInvalid, EnvPrefix, v, err)
		}
		cfg.ArmPin = n
	}
	if v, ok := lookup(EnvPrefix + "ARM_ACTIVE_LOW"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %sARM_ACTIVE_LOW=%q: %v", ErrInvalid, EnvPrefix, v, err)
		}
		cfg.ArmActiveLow = b
	}
	return nil
}

// Validate checks every field that the daemon parses.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.ParsedFireTime(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.DB) == "" {
		errs = append(errs, errors.New("db must not be empty"))
	}
	if c.ArmPin < -1 {
		errs = append(errs, fmt.Errorf("arm_pin %d: use -1 to disable", c.ArmPin))
	}
	if c.BootIDPath == "" {
		errs = append(errs, errors.New("boot_id_path must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ParsedFireTime parses FireTime.
func (c Config) ParsedFireTime() (clock.FireTime, error) {
	return clock.ParseFireTime(c.FireTime)
}

// Location resolves Timezone. "Local" and "" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level parses LogLevel.
func (c Config) Level() (log.Level, error) {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
