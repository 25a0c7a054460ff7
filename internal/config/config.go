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
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz Quiz `yaml:"quiz"`
}

// Quiz holds catalog and timing settings.
type Quiz struct {
	// CatalogSource is "file" (default) or "postgres".
	CatalogSource   string   `yaml:"catalog_source"`
	CatalogPath     string   `yaml:"catalog_path"`
	CatalogTTL      string   `yaml:"catalog_ttl"`
	Timezone        string   `yaml:"timezone"`
	QuestionTime    string   `yaml:"question_time"`
	RefreshInterval string   `yaml:"refresh_interval"`
	FeedbackDelay   string   `yaml:"feedback_delay"`
	LeaderboardSize int      `yaml:"leaderboard_size"`
	Admins          []string `yaml:"admins"`
	Bands           []Band   `yaml:"bands"`
}

// Band maps a minimum score to a closing remark.
type Band struct {
	MinScore int    `yaml:"min_score"`
	Label    string `yaml:"label"`
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

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}

// Location resolves the quiz time zone, defaulting to the local zone.
func (q Quiz) Location() (*time.Location, error) {
	if q.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(q.Timezone)
}
