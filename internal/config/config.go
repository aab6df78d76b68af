package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"` // empty: in-memory bus, single replica only
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // minutes
	} `yaml:"jwt"`

	WS struct {
		SendQueueDepth  int `yaml:"send_queue_depth"`
		WriteTimeoutSec int `yaml:"write_timeout_sec"`
		PongTimeoutSec  int `yaml:"pong_timeout_sec"`
	} `yaml:"ws"`

	LinkMeta struct {
		Workers        int `yaml:"workers"`
		MaxAttempts    int `yaml:"max_attempts"`
		BackoffBaseSec int `yaml:"backoff_base_sec"`
		BackoffCapSec  int `yaml:"backoff_cap_sec"`
		PollIntervalMS int `yaml:"poll_interval_ms"`
		FetchTimeoutMS int `yaml:"fetch_timeout_ms"`
	} `yaml:"link_meta"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}
	} else {
		// Environment-driven configuration (containers, CI).
		cfg.Database.DSN = dbURL
		cfg.Server.Env = os.Getenv("SERVER_ENV")
		cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
		cfg.JWT.Secret = os.Getenv("JWT_SECRET")
		cfg.JWT.TTL = 60
		cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	}

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.WS.SendQueueDepth == 0 {
		cfg.WS.SendQueueDepth = 64
	}
	if cfg.WS.WriteTimeoutSec == 0 {
		cfg.WS.WriteTimeoutSec = 10
	}
	if cfg.WS.PongTimeoutSec == 0 {
		cfg.WS.PongTimeoutSec = 60
	}
	if cfg.LinkMeta.Workers == 0 {
		cfg.LinkMeta.Workers = 4
	}
	if cfg.LinkMeta.MaxAttempts == 0 {
		cfg.LinkMeta.MaxAttempts = 3
	}
	if cfg.LinkMeta.BackoffBaseSec == 0 {
		cfg.LinkMeta.BackoffBaseSec = 30
	}
	if cfg.LinkMeta.BackoffCapSec == 0 {
		cfg.LinkMeta.BackoffCapSec = 1800
	}
	if cfg.LinkMeta.PollIntervalMS == 0 {
		cfg.LinkMeta.PollIntervalMS = 2000
	}
	if cfg.LinkMeta.FetchTimeoutMS == 0 {
		cfg.LinkMeta.FetchTimeoutMS = 10000
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

// Convenience durations derived from the raw config integers.

func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WS.WriteTimeoutSec) * time.Second
}

func (c *Config) WSPongTimeout() time.Duration {
	return time.Duration(c.WS.PongTimeoutSec) * time.Second
}

func (c *Config) LinkMetaBackoffBase() time.Duration {
	return time.Duration(c.LinkMeta.BackoffBaseSec) * time.Second
}

func (c *Config) LinkMetaBackoffCap() time.Duration {
	return time.Duration(c.LinkMeta.BackoffCapSec) * time.Second
}

func (c *Config) LinkMetaPollInterval() time.Duration {
	return time.Duration(c.LinkMeta.PollIntervalMS) * time.Millisecond
}

func (c *Config) LinkMetaFetchTimeout() time.Duration {
	return time.Duration(c.LinkMeta.FetchTimeoutMS) * time.Millisecond
}
