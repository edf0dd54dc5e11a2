package config

import (
	"fmt"
	"time"

	"github.com/borauni/ride-dispatch/pkg/configparser"
)

// Config contains all configuration variables of the dispatch service.
type (
	Config struct {
		Server   ServerConfig
		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Dispatch DispatchConfig
		Auth     Auth
		Log      LogConfig
	}

	ServerConfig struct {
		HTTPPort string `env:"SERVER_HTTP_PORT" default:"3000"`
	}

	DatabaseConfig struct {
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"dispatch_user"`
		Password string `env:"DATABASE_PASSWORD" default:"dispatch_pass"`
		Database string `env:"DATABASE_DATABASE" default:"dispatch_db"`

		MaxConns        int32         `env:"DATABASE_MAXCONNS" default:"20"`
		MinConns        int32         `env:"DATABASE_MINCONNS" default:"2"`
		MaxConnLifetime time.Duration `env:"DATABASE_MAXCONNLIFETIME" default:"30m"`
		MaxConnIdleTime time.Duration `env:"DATABASE_MAXCONNIDLETIME" default:"5m"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`

		// Disabled runs the service without the event bus; realtime delivery
		// then reaches only sessions on this instance.
		Disabled bool `env:"RABBITMQ_DISABLED" default:"false"`
	}

	DispatchConfig struct {
		// AcceptWindow is how long a ride request stays claimable.
		AcceptWindow time.Duration `env:"DISPATCH_ACCEPT_WINDOW" default:"120s"`

		// SweepInterval is how often stale requests are expired.
		SweepInterval time.Duration `env:"DISPATCH_SWEEP_INTERVAL" default:"10s"`
	}

	Auth struct {
		JWTSecret string `env:"AUTH_JWT_SECRET" default:"supersecretkey"`
	}

	LogConfig struct {
		Level string `env:"LOG_LEVEL" default:"info"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&pool_max_conns=%d&pool_min_conns=%d&pool_max_conn_lifetime=%s&pool_max_conn_idle_time=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.MaxConns,
		c.MinConns,
		c.MaxConnLifetime,
		c.MaxConnIdleTime,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

// NewConfig loads environment variables (optionally from a YAML file first)
// and parses them into the typed config.
func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	if err := configparser.LoadAndParseYaml(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}
