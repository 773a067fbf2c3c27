// Package config provides configuration management for the netto
// service and CLI.
package config

import (
	"time"
)

// Config holds the settings shared by the server and the database
// commands.
type Config struct {
	Addr           string
	DBURL          string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
}

// Default returns the development configuration: local sqlite file,
// loopback listener, JSON logs at info.
func Default() *Config {
	return &Config{
		Addr:           "127.0.0.1:8080",
		DBURL:          "sqlite://netto.db",
		RequestTimeout: 10 * time.Second,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}
