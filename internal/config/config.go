package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WorkerConfig struct {
	// MaxConcurrentJobs bounds how many scripts execute at once.
	// Zero or less means unbounded.
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
}

type ShellConfig struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	WaitDelayMs int      `yaml:"waitDelayMs"`
}

type BrowserConfig struct {
	// ControlURL points at a running Chrome DevTools endpoint. When empty
	// a local browser is launched.
	ControlURL string `yaml:"controlURL"`
}

// BackendConfig selects and configures the execution backend.
type BackendConfig struct {
	Kind    string        `yaml:"kind"`
	Shell   ShellConfig   `yaml:"shell"`
	Browser BrowserConfig `yaml:"browser"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// JobTTLConfig controls how long finished jobs stay listed.
type JobTTLConfig struct {
	TTLMinutes int `yaml:"ttlMinutes"`
}

// RetentionConfig controls TTL-like removal of finished jobs so that the
// registry does not grow without bound over time.
type RetentionConfig struct {
	Enabled                bool         `yaml:"enabled"`
	CleanupIntervalMinutes int          `yaml:"cleanupIntervalMinutes"`
	Jobs                   JobTTLConfig `yaml:"jobs"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Worker    WorkerConfig    `yaml:"worker"`
	Backend   BackendConfig   `yaml:"backend"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Retention RetentionConfig `yaml:"retention"`
}

const (
	BackendShell   = "shell"
	BackendBrowser = "browser"
)

// ApplyDefaults fills unset fields with working values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendShell
	}
	if c.Backend.Shell.Command == "" {
		c.Backend.Shell.Command = "sh"
	}
	if c.Backend.Shell.WaitDelayMs <= 0 {
		c.Backend.Shell.WaitDelayMs = 2000
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "scriptd:jobs"
	}
	if c.Retention.CleanupIntervalMinutes <= 0 {
		c.Retention.CleanupIntervalMinutes = 10
	}
}

// Default returns a config with only defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads the YAML config at path. A missing file yields defaults.
func Load(path string) *Config {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.Printf("config file %s not found, using defaults", path)
		return Default()
	}
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}
	cfg.ApplyDefaults()

	return &cfg
}
