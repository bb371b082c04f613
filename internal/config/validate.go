package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *BrokerConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Chat.DefaultRoom) == "" {
		return errors.New("chat.default_room must not be blank")
	}
	if c.Chat.HistoryCapacity < 1 {
		return errors.New("chat.history_capacity must be >= 1")
	}

	if c.Client.SendBuffer < 1 {
		return errors.New("client.send_buffer must be >= 1")
	}
	if c.Client.MaxMessageSize < 1 {
		return errors.New("client.max_message_size must be >= 1")
	}
	if c.Client.RateLimit.Burst < 1 {
		return errors.New("client.rate_limit.burst must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level)
	}

	return nil
}
