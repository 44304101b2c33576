package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
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
	Storage struct {
		// Driver selects the snapshot backend: memory, file, redis or postgres.
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		Key    string `yaml:"key"`
	} `yaml:"storage"`
	Session struct {
		TimeLimit        string `yaml:"time_limit"`
		UrgencyThreshold int    `yaml:"urgency_threshold"`
		Tick             string `yaml:"tick"`
	} `yaml:"session"`
	Trivia struct {
		BaseURL       string `yaml:"base_url"`
		Timeout       string `yaml:"timeout"`
		CategoriesTTL string `yaml:"categories_ttl"`
	} `yaml:"trivia"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
}

// Load reads YAML config from path. Environment placeholders such as
// ${JWT_SECRET} are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
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

// TimeLimitSeconds is the quiz time limit in whole seconds, five minutes by default.
func (c Config) TimeLimitSeconds() int {
	return int(TTLDuration(c.Session.TimeLimit, 5*time.Minute) / time.Second)
}
