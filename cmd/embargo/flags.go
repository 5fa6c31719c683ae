package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("EMBARGO_CONFIG", ""),
		"Path to configuration file (env: EMBARGO_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("EMBARGO_CONFIG", ""),
		"Path to configuration file (env: EMBARGO_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("EMBARGO_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: EMBARGO_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("EMBARGO_LOG_FORMAT", "json"),
		"Log format: json, text (env: EMBARGO_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("EMBARGO_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: EMBARGO_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "warning: invalid duration in %s: %q\n", key, value)
	}
	return fallback
}
