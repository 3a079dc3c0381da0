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
		// Pacing is "host" or "auto"; see app.PacingPolicy.
		Pacing     string `yaml:"pacing"`
		TimerGrace string `yaml:"timerGrace"`
		VocabTTL   string `yaml:"vocabTtl"`
	} `yaml:"quiz"`
	Scoring struct {
		BasePoints       int `yaml:"basePoints"`
		MaxTimeBonus     int `yaml:"maxTimeBonus"`
		StreakMultiplier int `yaml:"streakMultiplier"`
		MaxStreakBonus   int `yaml:"maxStreakBonus"`
	} `yaml:"scoring"`
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

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
