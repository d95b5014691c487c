package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads path (yaml) when given and then applies environment overrides.
// A missing file is an error; an empty path means environment and defaults only.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "pgx", "postgresql":
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DBURL) == "" {
		return errors.New("db_url is required")
	}
	if !strings.Contains(c.Complaints.IDFormat, "{seq") {
		return fmt.Errorf("complaints.id_format %q must contain {seq}", c.Complaints.IDFormat)
	}
	switch c.Notifications.Sink {
	case "log", "redis", "none":
	default:
		return fmt.Errorf("unsupported notifications.sink %q", c.Notifications.Sink)
	}
	if c.Notifications.MaxAttempts <= 0 {
		c.Notifications.MaxAttempts = 1
	}
	if c.Notifications.BatchSize <= 0 {
		c.Notifications.BatchSize = 50
	}
	return nil
}
