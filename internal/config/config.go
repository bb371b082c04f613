package config

import "time"

// BrokerConfig is the root configuration for a broker instance.
type BrokerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Chat     ChatConfig     `yaml:"chat"`
	Client   ClientConfig   `yaml:"client"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this broker.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// ChatConfig holds routing and retention settings.
type ChatConfig struct {
	DefaultRoom     string `yaml:"default_room"`
	HistoryCapacity int    `yaml:"history_capacity"`
}

// ClientConfig holds per-connection websocket settings.
type ClientConfig struct {
	SendBuffer     int             `yaml:"send_buffer"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	PingInterval   time.Duration   `yaml:"ping_interval"`
	PongTimeout    time.Duration   `yaml:"pong_timeout"`
	WriteTimeout   time.Duration   `yaml:"write_timeout"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds token-bucket settings for inbound frames.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}
