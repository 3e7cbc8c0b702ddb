package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config is the process configuration. Business parameters such as the
// dissolution allowance and stage schedules live in the configurations table.
type Config struct {
	DatabaseDSN    string `env:"DATABASE_DSN,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	JobTimezone    string `env:"JOB_TIMEZONE,default=America/Vancouver"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START,default=true"`
	RedisURL       string `env:"REDIS_URL"`
	RabbitMQURL    string `env:"RABBITMQ_URL"`
	NoticeQueue    string `env:"NOTICE_QUEUE,default=involuntary_dissolution.notices"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
}

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if strings.TrimSpace(c.NoticeQueue) == "" {
		return fmt.Errorf("NOTICE_QUEUE must not be empty")
	}
	return nil
}

// Location is the time zone calendar days and schedules are evaluated in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.JobTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_TIMEZONE %q: %w", c.JobTimezone, err)
	}
	return loc, nil
}

func (c *Config) NoticesEnabled() bool {
	return strings.TrimSpace(c.RabbitMQURL) != ""
}

// OutboxEnabled reports whether unpublished notices are parked in Redis.
// Without a broker there is nothing to park.
func (c *Config) OutboxEnabled() bool {
	return c.NoticesEnabled() && strings.TrimSpace(c.RedisURL) != ""
}

func (c *Config) MetricsPushEnabled() bool {
	return strings.TrimSpace(c.PushgatewayURL) != ""
}
