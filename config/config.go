package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Session    SessionConfig    `yaml:"session"`
	Remote     RemoteConfig     `yaml:"remote"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`

	CacheTTL time.Duration `yaml:"-"`
}

// StorageConfig points at the on-device SQLite database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig describes the browser session this process serves.
type SessionConfig struct {
	// ShareBaseURL is the page URL the share link is built from.
	ShareBaseURL string `yaml:"share_base_url"`
	// RoomURL is the URL the session was opened with; a room=<id>
	// fragment selects the room.
	RoomURL       string `yaml:"room_url"`
	Timezone      string `yaml:"timezone"`
	DailyRollover *bool  `yaml:"daily_rollover"`

	Location *time.Location `yaml:"-"`
}

// RolloverEnabled defaults to true when the key is absent.
func (s SessionConfig) RolloverEnabled() bool {
	return s.DailyRollover == nil || *s.DailyRollover
}

// RemoteConfig holds the optional hosted document store credentials.
type RemoteConfig struct {
	URL                 string `yaml:"url"`
	AnonKey             string `yaml:"anon_key"`
	DebounceMS          int    `yaml:"debounce_ms"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	MaxIdleConns        int    `yaml:"max_idle_conns"`

	Debounce     time.Duration `yaml:"-"`
	WriteTimeout time.Duration `yaml:"-"`
}

// Enabled reports whether both credentials are configured. Without them the
// session runs local-only.
func (r RemoteConfig) Enabled() bool {
	return r.URL != "" && r.AnonKey != ""
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CUP_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv("CUP_REMOTE_ANON_KEY"); v != "" {
		cfg.Remote.AnonKey = v
	}
	if v := os.Getenv("CUP_ROOM_URL"); v != "" {
		cfg.Session.RoomURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./cup.db"
	}

	if cfg.Session.ShareBaseURL == "" {
		cfg.Session.ShareBaseURL = "http://localhost:8080/"
	}
	cfg.Session.Location = time.Local
	if cfg.Session.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Session.Timezone)
		if err != nil {
			log.Printf("Warning: invalid session timezone %q: %v. Using local time.", cfg.Session.Timezone, err)
		} else {
			cfg.Session.Location = loc
		}
	}

	if cfg.Remote.DebounceMS <= 0 {
		cfg.Remote.DebounceMS = 600
	}
	cfg.Remote.Debounce = time.Duration(cfg.Remote.DebounceMS) * time.Millisecond
	if cfg.Remote.WriteTimeoutSeconds <= 0 {
		cfg.Remote.WriteTimeoutSeconds = 10
	}
	cfg.Remote.WriteTimeout = time.Duration(cfg.Remote.WriteTimeoutSeconds) * time.Second
	if cfg.Remote.MaxOpenConns <= 0 {
		cfg.Remote.MaxOpenConns = 4
	}
	if cfg.Remote.MaxIdleConns <= 0 {
		cfg.Remote.MaxIdleConns = 2
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
