// Package config loads the calendar service settings from an optional .env
// file, an optional YAML file and CALENDAR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/example/office-calendar/internal/logging"
)

const envPrefix = "CALENDAR_"

// Config captures configuration values for the calendar service.
type Config struct {
	HTTPPort                  int           `yaml:"http_port"`
	SQLitePath                string        `yaml:"sqlite_path"`
	SessionTTL                time.Duration `yaml:"session_ttl"`
	Timezone                  string        `yaml:"timezone"`
	AllowedOrigins            []string      `yaml:"allowed_origins"`
	CookieSecure              bool          `yaml:"cookie_secure"`
	AllowDirectJoin           bool          `yaml:"allow_direct_join"`
	LockRegistrySize          int           `yaml:"lock_registry_size"`
	SessionSweepSchedule      string        `yaml:"session_sweep_schedule"`
	NotificationRetention     time.Duration `yaml:"notification_retention"`
	NotificationSweepSchedule string        `yaml:"notification_sweep_schedule"`
	LogLevel                  string        `yaml:"log_level"`

	// Location is resolved from Timezone by Load.
	Location *time.Location `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPPort:                  8080,
		SQLitePath:                "calendar.db",
		SessionTTL:                24 * time.Hour,
		Timezone:                  "UTC",
		AllowedOrigins:            []string{"http://localhost:5173"},
		AllowDirectJoin:           true,
		LockRegistrySize:          1024,
		SessionSweepSchedule:      "@every 15m",
		NotificationRetention:     30 * 24 * time.Hour,
		NotificationSweepSchedule: "@daily",
		LogLevel:                  "info",
	}
}

// Load reads .env from the working directory when present, then the YAML file
// named by CALENDAR_CONFIG_FILE, then CALENDAR_* variables. Invalid values are
// reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return LoadFrom(os.Getenv(envPrefix+"CONFIG_FILE"), os.LookupEnv)
}

// LoadFrom builds a configuration from an optional YAML file and an
// environment lookup function.
func LoadFrom(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	env := envReader{lookup: lookup}
	env.readInt("HTTP_PORT", &cfg.HTTPPort)
	env.readString("SQLITE_PATH", &cfg.SQLitePath)
	env.readDuration("SESSION_TTL", &cfg.SessionTTL)
	env.readString("TIMEZONE", &cfg.Timezone)
	env.readList("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	env.readBool("COOKIE_SECURE", &cfg.CookieSecure)
	env.readBool("ALLOW_DIRECT_JOIN", &cfg.AllowDirectJoin)
	env.readInt("LOCK_REGISTRY_SIZE", &cfg.LockRegistrySize)
	env.readString("SESSION_SWEEP_SCHEDULE", &cfg.SessionSweepSchedule)
	env.readDuration("NOTIFICATION_RETENTION", &cfg.NotificationRetention)
	env.readString("NOTIFICATION_SWEEP_SCHEDULE", &cfg.NotificationSweepSchedule)
	env.readString("LOG_LEVEL", &cfg.LogLevel)

	invalid := env.invalid
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = appendOnce(invalid, "HTTP_PORT")
	}
	if strings.TrimSpace(cfg.SQLitePath) == "" {
		invalid = appendOnce(invalid, "SQLITE_PATH")
	}
	if cfg.SessionTTL <= 0 {
		invalid = appendOnce(invalid, "SESSION_TTL")
	}
	if cfg.LockRegistrySize <= 0 {
		invalid = appendOnce(invalid, "LOCK_REGISTRY_SIZE")
	}
	if cfg.NotificationRetention <= 0 {
		invalid = appendOnce(invalid, "NOTIFICATION_RETENTION")
	}
	for key, spec := range map[string]string{
		"SESSION_SWEEP_SCHEDULE":      cfg.SessionSweepSchedule,
		"NOTIFICATION_SWEEP_SCHEDULE": cfg.NotificationSweepSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			invalid = appendOnce(invalid, key)
		}
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		invalid = appendOnce(invalid, "LOG_LEVEL")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		invalid = appendOnce(invalid, "TIMEZONE")
	}
	cfg.Location = loc

	if len(invalid) > 0 {
		sort.Strings(invalid)
		for i, key := range invalid {
			invalid[i] = envPrefix + key
		}
		return Config{}, fmt.Errorf("config: invalid values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

type envReader struct {
	lookup  func(string) (string, bool)
	invalid []string
}

func (r *envReader) value(key string) (string, bool) {
	if r.lookup == nil {
		return "", false
	}
	v, ok := r.lookup(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *envReader) readString(key string, dst *string) {
	if v, ok := r.value(key); ok {
		*dst = v
	}
}

func (r *envReader) readInt(key string, dst *int) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalid = appendOnce(r.invalid, key)
		return
	}
	*dst = n
}

func (r *envReader) readBool(key string, dst *bool) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.invalid = appendOnce(r.invalid, key)
		return
	}
	*dst = b
}

func (r *envReader) readDuration(key string, dst *time.Duration) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.invalid = appendOnce(r.invalid, key)
		return
	}
	*dst = d
}

func (r *envReader) readList(key string, dst *[]string) {
	v, ok := r.value(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func appendOnce(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}
