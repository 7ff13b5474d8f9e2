package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string `yaml:"port"`
		Endpoint       string `yaml:"endpoint"`
		RequestTimeout string `yaml:"requestTimeout"`
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
	Pool struct {
		TTL string `yaml:"ttl"`
	} `yaml:"pool"`
	Game struct {
		ResetOffset    string `yaml:"resetOffset"`
		WeekStart      string `yaml:"weekStart"`
		MaxVoteRetries int    `yaml:"maxVoteRetries"`
		SeedQuestions  bool   `yaml:"seedQuestions"`
	} `yaml:"game"`
	Leaderboards struct {
		AllTime   string `yaml:"allTime"`
		Daily     string `yaml:"daily"`
		Weekly    string `yaml:"weekly"`
		AuthRetry string `yaml:"authRetry"`
	} `yaml:"leaderboards"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Client struct {
		BaseURL      string `yaml:"baseURL"`
		Endpoint     string `yaml:"endpoint"`
		Timeout      string `yaml:"timeout"`
		DataPath     string `yaml:"dataPath"`
		PollInterval string `yaml:"pollInterval"`
	} `yaml:"client"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Endpoint = "/normalzGame"
	cfg.Server.RequestTimeout = "15s"
	cfg.Redis.TTL = "24h"
	cfg.Pool.TTL = "30s"
	cfg.Game.ResetOffset = "2h"
	cfg.Game.WeekStart = "sunday"
	cfg.Game.MaxVoteRetries = 64
	cfg.Game.SeedQuestions = true
	cfg.Leaderboards.AllTime = "allTimeLeaderboardID"
	cfg.Leaderboards.Daily = "dailyLeaderboardID"
	cfg.Leaderboards.Weekly = "weeklyLeaderboardID"
	cfg.Leaderboards.AuthRetry = "30s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Client.BaseURL = "http://localhost:8080"
	cfg.Client.Endpoint = "/normalzGame"
	cfg.Client.Timeout = "10s"
	cfg.Client.DataPath = "normalz.db"
	cfg.Client.PollInterval = "5s"
	return cfg
}

// Load reads YAML config from path on top of Default. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.WrapIfWithDetails(err, "read config", "path", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapIfWithDetails(err, "parse config", "path", path)
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

// ResetLocation is the fixed zone whose midnight closes a daily period.
func (c Config) ResetLocation() (*time.Location, error) {
	offset, err := time.ParseDuration(c.Game.ResetOffset)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "parse reset offset", "resetOffset", c.Game.ResetOffset)
	}
	name := "UTC"
	switch {
	case offset == 0:
	case offset%time.Hour == 0:
		name += sign(offset) + strconv.Itoa(int(abs(offset).Hours()))
	default:
		name += sign(offset) + abs(offset).String()
	}
	return time.FixedZone(name, int(offset.Seconds())), nil
}

// WeekStart parses the weekday name a weekly period starts on.
func (c Config) WeekStart() (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), c.Game.WeekStart) {
			return d, nil
		}
	}
	return time.Sunday, errors.NewWithDetails("unknown week start", "weekStart", c.Game.WeekStart)
}

func sign(d time.Duration) string {
	if d < 0 {
		return "-"
	}
	return "+"
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
