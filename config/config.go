// Package config assembles the server configuration from environment
// variables and the positional command line arguments.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultPort    = 1337
	DefaultPlayers = 2
)

// Config holds the server configuration.
type Config struct {
	Name        string        `env:"HANGTHEMAN_NAME" envDefault:"hangtheman"`
	Host        string        `env:"HANGTHEMAN_HOST" envDefault:"::"`
	Port        int           `env:"HANGTHEMAN_PORT" envDefault:"1337"`
	Players     int           `env:"HANGTHEMAN_PLAYERS" envDefault:"2"`
	MaxFails    int           `env:"HANGTHEMAN_MAX_FAILS" envDefault:"10"`
	TurnTimeout time.Duration `env:"HANGTHEMAN_TURN_TIMEOUT" envDefault:"0s"`

	WordsFile string        `env:"HANGTHEMAN_WORDS_FILE"`
	WordsURL  string        `env:"HANGTHEMAN_WORDS_URL"`
	WordsTTL  time.Duration `env:"HANGTHEMAN_WORDS_TTL" envDefault:"10m"`
	RedisAddr string        `env:"HANGTHEMAN_REDIS_ADDR"`

	LogLevel  string `env:"HANGTHEMAN_LOG_LEVEL" envDefault:"info"`
	LogDir    string `env:"HANGTHEMAN_LOG_DIR"`
	LogFormat string `env:"HANGTHEMAN_LOG_FORMAT" envDefault:"console"`
}

// Load reads the environment and then applies the positional arguments
// "[port] [players]". Arguments that do not parse are ignored.
//
// Parameters:
//   - args: Command line arguments without the program name
//
// Returns:
//   - The configuration, or an error if the environment is malformed or
//     the result is invalid
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyArgs(args)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyArgs(args []string) {
	if len(args) > 0 {
		if port, err := strconv.ParseUint(args[0], 10, 16); err == nil {
			c.Port = int(port)
		}
	}

	if len(args) > 1 {
		if players, err := strconv.Atoi(args[1]); err == nil && players > 0 {
			c.Players = players
		}
	}
}

// Validate reports configuration values no game can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Players < 1 {
		errs = append(errs, fmt.Errorf("players must be at least 1, got %d", c.Players))
	}
	if c.MaxFails < 1 {
		errs = append(errs, fmt.Errorf("max fails must be at least 1, got %d", c.MaxFails))
	}
	if c.TurnTimeout < 0 {
		errs = append(errs, fmt.Errorf("turn timeout must not be negative, got %s", c.TurnTimeout))
	}
	if c.WordsFile != "" && c.WordsURL != "" {
		errs = append(errs, errors.New("words file and words url are mutually exclusive"))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
