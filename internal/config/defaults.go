package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultRoom            = "general"
	DefaultHistoryCapacity = 100
	DefaultSendBuffer      = 256
	DefaultMaxMessageSize  = 8192
	DefaultPingInterval    = 54 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultClientWriteWait = 10 * time.Second
	DefaultRateBurst       = 20
	DefaultRefillInterval  = time.Second
	DefaultLogLevel        = "info"
)

func (c *BrokerConfig) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Chat defaults
	if c.Chat.DefaultRoom == "" {
		c.Chat.DefaultRoom = DefaultRoom
	}
	if c.Chat.HistoryCapacity == 0 {
		c.Chat.HistoryCapacity = DefaultHistoryCapacity
	}

	// Client defaults
	if c.Client.SendBuffer == 0 {
		c.Client.SendBuffer = DefaultSendBuffer
	}
	if c.Client.MaxMessageSize == 0 {
		c.Client.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Client.PingInterval == 0 {
		c.Client.PingInterval = DefaultPingInterval
	}
	if c.Client.PongTimeout == 0 {
		c.Client.PongTimeout = DefaultPongTimeout
	}
	if c.Client.WriteTimeout == 0 {
		c.Client.WriteTimeout = DefaultClientWriteWait
	}
	if c.Client.RateLimit.Burst == 0 {
		c.Client.RateLimit.Burst = DefaultRateBurst
	}
	if c.Client.RateLimit.RefillInterval == 0 {
		c.Client.RateLimit.RefillInterval = DefaultRefillInterval
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
