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
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Game struct {
		RevealSeconds         int    `yaml:"reveal_seconds"`
		RevealFallbackSeconds int    `yaml:"reveal_fallback_seconds"`
		GraceSeconds          int    `yaml:"grace_seconds"`
		IdleTTL               string `yaml:"idle_ttl"`
		MaxAge                string `yaml:"max_age"`
		SweepInterval         string `yaml:"sweep_interval"`
		EndLingerSeconds      int    `yaml:"end_linger_seconds"`
		StreakCap             int    `yaml:"streak_cap"`
		CodeLength            int    `yaml:"code_length"`
	} `yaml:"game"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "json" or "text"
	} `yaml:"logging"`
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

// TTLDuration parses a duration string or returns the fallback if empty or invalid.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Seconds converts a config value to a duration, with a fallback for zero.
func Seconds(raw int, fallback time.Duration) time.Duration {
	if raw <= 0 {
		return fallback
	}
	return time.Duration(raw) * time.Second
}
