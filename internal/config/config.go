package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PollTTL  string `yaml:"poll_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bot struct {
		OwnerID int64 `yaml:"owner_id"`
	} `yaml:"bot"`
	Gateway struct {
		AckTimeout string `yaml:"ack_timeout"`
	} `yaml:"gateway"`
	Scheduler struct {
		DigestCron string `yaml:"digest_cron"`
		Timezone   string `yaml:"timezone"`
	} `yaml:"scheduler"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty
// or malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// DigestCron returns the configured daily digest schedule or the default,
// one minute past nine in the evening.
func (c Config) DigestCron() string {
	if c.Scheduler.DigestCron == "" {
		return "1 21 * * *"
	}
	return c.Scheduler.DigestCron
}

// Location resolves the scheduler timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
