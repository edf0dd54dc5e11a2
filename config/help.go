package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `Ride dispatch service.

Usage:
  dispatch [flags]

Flags:
  -config-path string   path to a YAML config file (optional, env vars win)
  -help                 print this message

Configuration is read from environment variables; see config.Config for the
full list of keys and defaults.
`

func PrintHelp() {
	if HelpMessage != "" {
		fmt.Printf("%s", HelpMessage)
	} else {
		flag.Usage()
	}
}

// PrintConfig prints the effective non-secret configuration at startup.
func PrintConfig(cfg *Config) {
	fmt.Println("Configuration:")
	fmt.Printf("  http port:       %s\n", cfg.Server.HTTPPort)
	fmt.Printf("  database:        %s@%s:%s/%s\n", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	if cfg.RabbitMQ.Disabled {
		fmt.Printf("  rabbitmq:        disabled\n")
	} else {
		fmt.Printf("  rabbitmq:        %s:%s\n", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	}
	fmt.Printf("  accept window:   %s\n", cfg.Dispatch.AcceptWindow)
	fmt.Printf("  sweep interval:  %s\n", cfg.Dispatch.SweepInterval)
	fmt.Printf("  log level:       %s\n", cfg.Log.Level)
}
